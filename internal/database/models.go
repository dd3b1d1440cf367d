package database

import (
	"encoding/json"
	"time"
)

// SensorEvent is one ingested payload in the audit trail. The delta fields
// are flattened so operators can query them with plain SQL.
type SensorEvent struct {
	ID         int64
	EventID    string
	SN         string
	StoreID    string
	Mapped     bool
	ReceivedAt time.Time

	TotalEntries    int
	TotalExits      int
	CustomerEntries int
	CustomerExits   int
	ChildEntries    int
	ChildExits      int
	StaffEntries    int

	Raw       json.RawMessage
	CreatedAt time.Time
}
