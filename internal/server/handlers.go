package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/GitMrBlaiquen/sensor-server/internal/auth"
	"github.com/GitMrBlaiquen/sensor-server/internal/counting"
	"github.com/GitMrBlaiquen/sensor-server/internal/protocol"
)

// maxBodyBytes bounds sensor payloads, mirroring the 2mb sensor firmware
// upload limit.
const maxBodyBytes = 2 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"time": s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string      `json:"username"`
	Role     string      `json:"role"`
	Stores   []StoreInfo `json:"stores"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "login is not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing username or password")
		return
	}

	grant, err := s.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	// Only stores present in the catalog are returned, matching the
	// permitted-store contract.
	catalog := make(map[string]StoreInfo, len(s.stores))
	for _, st := range s.stores {
		catalog[st.ID] = st
	}
	granted := make([]StoreInfo, 0, len(grant.Stores))
	for _, id := range grant.Stores {
		if st, ok := catalog[id]; ok {
			granted = append(granted, st)
		}
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Username: grant.Username,
		Role:     grant.Role,
		Stores:   granted,
	})
}

func (s *Server) handleDataUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		// Even an unreadable body gets a success ack; the sensor would
		// otherwise retry-loop.
		writeJSON(w, http.StatusOK, protocol.NewSensorAck(s.now()))
		return
	}

	if _, err := s.ingest.HandleDataUpload(r.Context(), body); err != nil {
		fmt.Printf("dataUpload from %s dropped: %v\n", r.RemoteAddr, err)
	}

	writeJSON(w, http.StatusOK, protocol.NewSensorAck(s.now()))
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var payload protocol.HeartbeatPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err == nil {
		if err := s.ingest.HandleHeartbeat(r.Context(), &payload); err != nil {
			fmt.Printf("heartBeat from %s not recorded: %v\n", r.RemoteAddr, err)
		}
	}

	writeJSON(w, http.StatusOK, protocol.NewHeartbeatAck(s.now()))
}

func (s *Server) handleSimulatorData(w http.ResponseWriter, r *http.Request) {
	var reading protocol.SimulatorReading
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if reading.StoreID == "" {
		writeError(w, http.StatusBadRequest, "missing storeId")
		return
	}
	if reading.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "missing deviceId")
		return
	}

	if _, err := s.ingest.HandleSimulatorReading(r.Context(), &reading); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record reading")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStoreCounters(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("storeId")
	if storeID == "" {
		writeError(w, http.StatusBadRequest, "missing storeId in query")
		return
	}

	writeJSON(w, http.StatusOK, s.counters.GetLive(storeID))
}

func (s *Server) handleStoreHistory(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("storeId")
	date := r.URL.Query().Get("date")
	if storeID == "" {
		writeError(w, http.StatusBadRequest, "missing storeId in query")
		return
	}
	if date == "" {
		writeError(w, http.StatusBadRequest, "missing date=YYYY-MM-DD in query")
		return
	}

	snapshot, err := s.counters.GetDaily(storeID, date)
	if err != nil {
		var invalidDate *counting.InvalidDateError
		if errors.As(err, &invalidDate) {
			writeError(w, http.StatusBadRequest, invalidDate.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

type displayResponse struct {
	SN string `json:"sn"`
	counting.LiveSnapshot
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	sn := r.URL.Query().Get("sn")
	if sn == "" {
		writeError(w, http.StatusBadRequest, "missing sn in query")
		return
	}

	storeID, ok := s.mapping.StoreForSerial(sn)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("serial %s is not mapped to a store", sn))
		return
	}

	writeJSON(w, http.StatusOK, displayResponse{
		SN:           sn,
		LiveSnapshot: s.counters.GetLive(storeID),
	})
}

type sensorStatus struct {
	SN                 string `json:"sn"`
	StoreID            string `json:"storeId,omitempty"`
	Online             bool   `json:"online"`
	LastHeartbeat      *int64 `json:"lastHeartbeat"`
	LastHeartbeatAgoMs *int64 `json:"lastHeartbeatAgoMs"`
}

func (s *Server) sensorStatusFor(r *http.Request, sn, storeID string) sensorStatus {
	status := sensorStatus{SN: sn, StoreID: storeID}

	last, ok, err := s.heartbeat.LastBeat(r.Context(), sn)
	if err != nil {
		fmt.Printf("Failed to read heartbeat for %s: %v\n", sn, err)
		return status
	}
	if !ok {
		return status
	}

	now := s.now()
	millis := last.UnixMilli()
	ago := now.Sub(last).Milliseconds()
	status.LastHeartbeat = &millis
	status.LastHeartbeatAgoMs = &ago
	status.Online = now.Sub(last) <= s.window
	return status
}

func (s *Server) handleSensorsStatus(w http.ResponseWriter, r *http.Request) {
	result := make(map[string]sensorStatus)
	for _, sn := range s.mapping.Serials() {
		storeID, _ := s.mapping.StoreForSerial(sn)
		result[sn] = s.sensorStatusFor(r, sn, storeID)
	}
	writeJSON(w, http.StatusOK, result)
}

type storeStatusResponse struct {
	StoreID            string  `json:"storeId"`
	SN                 *string `json:"sn"`
	Online             bool    `json:"online"`
	LastHeartbeat      *int64  `json:"lastHeartbeat"`
	LastHeartbeatAgoMs *int64  `json:"lastHeartbeatAgoMs"`
	Note               string  `json:"note,omitempty"`
}

func (s *Server) handleStoreStatus(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("storeId")
	if storeID == "" {
		writeError(w, http.StatusBadRequest, "missing storeId in query")
		return
	}

	sn, ok := s.mapping.SerialForStore(storeID)
	if !ok {
		writeJSON(w, http.StatusOK, storeStatusResponse{
			StoreID: storeID,
			Note:    "no serial mapped to this store in the device mapping",
		})
		return
	}

	status := s.sensorStatusFor(r, sn, storeID)
	writeJSON(w, http.StatusOK, storeStatusResponse{
		StoreID:            storeID,
		SN:                 &status.SN,
		Online:             status.Online,
		LastHeartbeat:      status.LastHeartbeat,
		LastHeartbeatAgoMs: status.LastHeartbeatAgoMs,
	})
}

func (s *Server) handleStores(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stores)
}

func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleDebugCounters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.counters.LiveCounters())
}

func (s *Server) handleDebugDaily(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.counters.DailyCounters())
}

func (s *Server) handleDebugHourly(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.counters.HourlyCounters())
}

func (s *Server) handleDebugHeartbeat(w http.ResponseWriter, r *http.Request) {
	result := make(map[string]int64)
	for _, sn := range s.mapping.Serials() {
		last, ok, err := s.heartbeat.LastBeat(r.Context(), sn)
		if err != nil || !ok {
			continue
		}
		result[sn] = last.UnixMilli()
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Printf("Failed to encode response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
