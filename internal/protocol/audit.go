package protocol

import (
	"encoding/json"
	"time"

	"github.com/GitMrBlaiquen/sensor-server/internal/counting"
)

// AuditEvent is the internal Kafka message recorded for every ingested
// payload, mapped or not. Unmapped events carry an empty StoreID and a zero
// delta; the raw body is preserved for operator inspection.
type AuditEvent struct {
	EventID    string                 `json:"event_id"`
	SN         string                 `json:"sn"`
	StoreID    string                 `json:"store_id,omitempty"`
	Mapped     bool                   `json:"mapped"`
	ReceivedAt time.Time              `json:"received_at"`
	Delta      counting.CounterBucket `json:"delta"`
	Raw        json.RawMessage        `json:"raw,omitempty"`
}

// EncodeAuditEvent encodes an AuditEvent to JSON.
func EncodeAuditEvent(ev *AuditEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeAuditEvent decodes JSON to an AuditEvent.
func DecodeAuditEvent(data []byte) (*AuditEvent, error) {
	var ev AuditEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
