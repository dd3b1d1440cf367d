package devices

import (
	"encoding/json"
	"sync"
	"time"
)

// SensorRecord is the last payload seen from a device, kept for operator
// inspection. Unmapped sensors appear here too, which is how a technician
// finds the serial to add to the device mapping.
type SensorRecord struct {
	StoreID    string          `json:"storeId,omitempty"`
	DeviceID   string          `json:"deviceId"`
	Type       string          `json:"type"`
	Value      *int            `json:"value"`
	Unit       string          `json:"unit"`
	Extra      json.RawMessage `json:"extra,omitempty"`
	LastUpdate time.Time       `json:"lastUpdate"`
}

// Registry holds the most recent SensorRecord per device key.
type Registry struct {
	mu      sync.RWMutex
	sensors map[string]SensorRecord
}

// NewRegistry creates an empty sensor registry.
func NewRegistry() *Registry {
	return &Registry{sensors: make(map[string]SensorRecord)}
}

// Record stores the latest record under the given device key, replacing any
// previous one.
func (r *Registry) Record(key string, rec SensorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sensors[key] = rec
}

// Get returns the record for a device key.
func (r *Registry) Get(key string) (SensorRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sensors[key]
	return rec, ok
}

// All returns a copy of every record, for the debug endpoint.
func (r *Registry) All() []SensorRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SensorRecord, 0, len(r.sensors))
	for _, rec := range r.sensors {
		out = append(out, rec)
	}
	return out
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}
