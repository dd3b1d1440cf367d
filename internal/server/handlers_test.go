package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GitMrBlaiquen/sensor-server/internal/auth"
	"github.com/GitMrBlaiquen/sensor-server/internal/counting"
	"github.com/GitMrBlaiquen/sensor-server/internal/devices"
	"github.com/GitMrBlaiquen/sensor-server/internal/ingest"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	mapping := devices.NewMapping(map[string]string{
		"221000002507152508": "arrow-01",
	})
	counters := counting.NewAggregateStore(time.UTC)
	registry := devices.NewRegistry()
	tracker := devices.NewMemoryTracker(90 * time.Second)
	registerer := prometheus.NewRegistry()

	testNow := func() time.Time {
		return time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	}

	svc := ingest.NewService(mapping, counters, registry, tracker, nil, ingest.NewMetrics(registerer))
	svc.SetClock(testNow)

	authorizer := auth.NewStaticAuthorizer([]auth.User{
		{Username: "arrow", Password: "arrowpass", Role: "owner", Stores: []string{"arrow-01", "ghost-99"}},
	})

	srv := New(Config{
		Ingest:     svc,
		Counters:   counters,
		Mapping:    mapping,
		Registry:   registry,
		Heartbeat:  tracker,
		Authorizer: authorizer,
		StoreNames: map[string]string{
			"arrow-01": "Tienda Arrow 01",
			"arrow-02": "Tienda Arrow 02",
		},
		HeartbeatWindow: 90 * time.Second,
		Metrics:         registerer,
	})
	srv.now = testNow
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, true, body["ok"])
}

func TestDataUpload_AlwaysAcksSuccess(t *testing.T) {
	srv := newTestServer(t)

	cases := []string{
		`{"sn":"221000002507152508","in":10,"out":8,"inChild":2,"outChild":3,"attributes":[{"workcard":1}]}`,
		`{"sn":"999-unmapped","in":5}`,
		`{broken json`,
	}

	for _, body := range cases {
		rec := doRequest(t, srv, http.MethodPost, "/api/camera/dataUpload", body)
		require.Equal(t, http.StatusOK, rec.Code, "body %s", body)

		var ack struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
			Data struct {
				Time int64 `json:"time"`
			} `json:"data"`
		}
		decodeBody(t, rec, &ack)
		assert.Equal(t, 0, ack.Code)
		assert.Equal(t, "success", ack.Msg)
		assert.NotZero(t, ack.Data.Time)
	}

	// Only the mapped payload reached the aggregates.
	rec := doRequest(t, srv, http.MethodGet, "/api/store/counters?storeId=arrow-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var live counting.LiveSnapshot
	decodeBody(t, rec, &live)
	assert.Equal(t, 7, live.CustomerEntries)
	assert.Equal(t, 5, live.CustomerExits)
	assert.Equal(t, 2, live.InsideEstimate)
}

func TestStoreCounters_MissingStoreID(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/api/store/counters", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoreCounters_UnknownStoreIsZero(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/api/store/counters?storeId=nope", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var live counting.LiveSnapshot
	decodeBody(t, rec, &live)
	assert.Equal(t, "nope", live.StoreID)
	assert.Zero(t, live.CustomerEntries)
}

func TestStoreHistory(t *testing.T) {
	srv := newTestServer(t)
	doRequest(t, srv, http.MethodPost, "/api/camera/dataUpload",
		`{"sn":"221000002507152508","in":5,"out":2}`)

	rec := doRequest(t, srv, http.MethodGet, "/api/store/history?storeId=arrow-01&date=2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap counting.DailySnapshot
	decodeBody(t, rec, &snap)
	assert.Equal(t, 5, snap.CustomerEntries)
	assert.Equal(t, 2, snap.CustomerExits)
	assert.Equal(t, 3, snap.InsideEstimate)
	assert.Len(t, snap.ByHour, 24)
	assert.Equal(t, 5, snap.ByHour["14"].CustomerEntries)
}

func TestStoreHistory_Validation(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/store/history?date=2024-03-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/store/history?storeId=arrow-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/store/history?storeId=arrow-01&date=01-03-2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "invalid date")
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/login", `{"username":"arrow"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/login", `{"username":"arrow","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/login", `{"username":"arrow","password":"arrowpass"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Username string      `json:"username"`
		Role     string      `json:"role"`
		Stores   []StoreInfo `json:"stores"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "arrow", resp.Username)
	assert.Equal(t, "owner", resp.Role)
	// "ghost-99" is granted but not in the catalog, so it is filtered out.
	require.Len(t, resp.Stores, 1)
	assert.Equal(t, "arrow-01", resp.Stores[0].ID)
	assert.Equal(t, "Tienda Arrow 01", resp.Stores[0].Name)
}

func TestDisplay(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/display", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/display?sn=999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	doRequest(t, srv, http.MethodPost, "/api/camera/dataUpload", `{"sn":"221000002507152508","in":3}`)
	rec = doRequest(t, srv, http.MethodGet, "/api/display?sn=221000002507152508", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SN              string `json:"sn"`
		StoreID         string `json:"storeId"`
		CustomerEntries int    `json:"customerEntries"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "221000002507152508", resp.SN)
	assert.Equal(t, "arrow-01", resp.StoreID)
	assert.Equal(t, 3, resp.CustomerEntries)
}

func TestHeartbeatAndStatus(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/camera/heartBeat", `{"sn":"221000002507152508"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var ack struct {
		Data struct {
			UploadInterval int    `json:"uploadInterval"`
			DataMode       string `json:"dataMode"`
		} `json:"data"`
	}
	decodeBody(t, rec, &ack)
	assert.Equal(t, 1, ack.Data.UploadInterval)
	assert.Equal(t, "Add", ack.Data.DataMode)

	rec = doRequest(t, srv, http.MethodGet, "/api/sensors/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var statuses map[string]struct {
		StoreID string `json:"storeId"`
		Online  bool   `json:"online"`
	}
	decodeBody(t, rec, &statuses)
	require.Contains(t, statuses, "221000002507152508")
	assert.True(t, statuses["221000002507152508"].Online)
	assert.Equal(t, "arrow-01", statuses["221000002507152508"].StoreID)

	rec = doRequest(t, srv, http.MethodGet, "/api/store/status?storeId=arrow-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var storeStatus struct {
		StoreID string  `json:"storeId"`
		SN      *string `json:"sn"`
		Online  bool    `json:"online"`
	}
	decodeBody(t, rec, &storeStatus)
	require.NotNil(t, storeStatus.SN)
	assert.True(t, storeStatus.Online)
}

func TestStoreStatus_UnmappedStore(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/api/store/status?storeId=leonisa-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SN     *string `json:"sn"`
		Online bool    `json:"online"`
		Note   string  `json:"note"`
	}
	decodeBody(t, rec, &resp)
	assert.Nil(t, resp.SN)
	assert.False(t, resp.Online)
	assert.NotEmpty(t, resp.Note)
}

func TestStores_SortedCatalog(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/api/stores", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stores []StoreInfo
	decodeBody(t, rec, &stores)
	require.Len(t, stores, 2)
	assert.Equal(t, "arrow-01", stores[0].ID)
	assert.Equal(t, "arrow-02", stores[1].ID)
}

func TestSimulatorData(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/sensors/data", `{"deviceId":"d1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/sensors/data", `{"storeId":"arrow-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/sensors/data",
		`{"storeId":"arrow-01","deviceId":"puerta-1","type":"entrada","value":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var live counting.LiveSnapshot
	rec = doRequest(t, srv, http.MethodGet, "/api/store/counters?storeId=arrow-01", "")
	decodeBody(t, rec, &live)
	assert.Equal(t, 2, live.CustomerEntries)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	doRequest(t, srv, http.MethodPost, "/api/camera/dataUpload", `{"sn":"221000002507152508","in":1}`)

	rec := doRequest(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sensor_events_ingested_total")
}
