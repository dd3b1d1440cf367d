package server

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GitMrBlaiquen/sensor-server/internal/auth"
	"github.com/GitMrBlaiquen/sensor-server/internal/counting"
	"github.com/GitMrBlaiquen/sensor-server/internal/devices"
	"github.com/GitMrBlaiquen/sensor-server/internal/ingest"
)

// StoreInfo is one entry of the configured store catalog.
type StoreInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Config wires the HTTP server's collaborators.
type Config struct {
	Ingest          *ingest.Service
	Counters        *counting.AggregateStore
	Mapping         *devices.Mapping
	Registry        *devices.Registry
	Heartbeat       devices.HeartbeatTracker
	Authorizer      auth.Authorizer
	StoreNames      map[string]string
	HeartbeatWindow time.Duration
	Metrics         prometheus.Gatherer
}

// Server serves the sensor ingestion endpoints and the dashboard query API.
type Server struct {
	ingest    *ingest.Service
	counters  *counting.AggregateStore
	mapping   *devices.Mapping
	registry  *devices.Registry
	heartbeat devices.HeartbeatTracker
	auth      auth.Authorizer
	stores    []StoreInfo
	window    time.Duration
	gatherer  prometheus.Gatherer

	now func() time.Time
}

// New creates the HTTP server.
func New(cfg Config) *Server {
	stores := make([]StoreInfo, 0, len(cfg.StoreNames))
	for id, name := range cfg.StoreNames {
		stores = append(stores, StoreInfo{ID: id, Name: name})
	}
	sort.Slice(stores, func(i, j int) bool { return stores[i].ID < stores[j].ID })

	gatherer := cfg.Metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		ingest:    cfg.Ingest,
		counters:  cfg.Counters,
		mapping:   cfg.Mapping,
		registry:  cfg.Registry,
		heartbeat: cfg.Heartbeat,
		auth:      cfg.Authorizer,
		stores:    stores,
		window:    cfg.HeartbeatWindow,
		gatherer:  gatherer,
		now:       time.Now,
	}
}

// Router builds the route table. CORS and access logging are layered on by
// the caller.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	r.HandleFunc("/api/login", s.handleLogin).Methods("POST")

	// Physical sensor endpoints
	r.HandleFunc("/api/camera/dataUpload", s.handleDataUpload).Methods("POST")
	r.HandleFunc("/api/camera/heartBeat", s.handleHeartbeat).Methods("POST")

	// Legacy simulator endpoint
	r.HandleFunc("/api/sensors/data", s.handleSimulatorData).Methods("POST")

	// Dashboard queries
	r.HandleFunc("/api/store/counters", s.handleStoreCounters).Methods("GET")
	r.HandleFunc("/api/store/history", s.handleStoreHistory).Methods("GET")
	r.HandleFunc("/api/display", s.handleDisplay).Methods("GET")
	r.HandleFunc("/api/sensors/status", s.handleSensorsStatus).Methods("GET")
	r.HandleFunc("/api/store/status", s.handleStoreStatus).Methods("GET")
	r.HandleFunc("/api/stores", s.handleStores).Methods("GET")

	// Debug views
	r.HandleFunc("/api/sensors", s.handleSensors).Methods("GET")
	r.HandleFunc("/api/debug/counters", s.handleDebugCounters).Methods("GET")
	r.HandleFunc("/api/debug/daily", s.handleDebugDaily).Methods("GET")
	r.HandleFunc("/api/debug/hourly", s.handleDebugHourly).Methods("GET")
	r.HandleFunc("/api/debug/heartbeat", s.handleDebugHeartbeat).Methods("GET")

	return r
}

// ListenAndServe runs the server on the given port with the provided
// handler (usually the router wrapped in middleware).
func (s *Server) ListenAndServe(port int, handler http.Handler) error {
	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("HTTP server listening on %s\n", addr)
	return http.ListenAndServe(addr, handler)
}
