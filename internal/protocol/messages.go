package protocol

import (
	"encoding/json"
	"time"

	"github.com/GitMrBlaiquen/sensor-server/internal/counting"
)

// AttributeRecord is one per-person detection record as it appears on the
// wire. workcard and eventType are 0/1-style flags that some firmware sends
// as strings.
type AttributeRecord struct {
	Workcard  FlexCount `json:"workcard"`
	EventType FlexCount `json:"eventType"`
}

// DataUploadPayload is the raw body of a sensor data upload. Different
// firmware revisions use different key names for the same count, so every
// known alias is declared here and resolved by RawCounts with a fixed
// precedence; the rest of the system only ever sees the resolved form.
type DataUploadPayload struct {
	SN FlexString `json:"sn"`

	In       *FlexCount `json:"in"`
	Enter    *FlexCount `json:"enter"`
	EnterAlt *FlexCount `json:"Enter"`
	InAlt    *FlexCount `json:"In"`
	InNum    *FlexCount `json:"inNum"`
	InNumAlt *FlexCount `json:"InNum"`

	Out       *FlexCount `json:"out"`
	Leave     *FlexCount `json:"leave"`
	LeaveAlt  *FlexCount `json:"Leave"`
	OutAlt    *FlexCount `json:"Out"`
	OutNum    *FlexCount `json:"outNum"`
	OutNumAlt *FlexCount `json:"OutNum"`

	InChild     *FlexCount `json:"inChild"`
	InChildAlt  *FlexCount `json:"InChild"`
	OutChild    *FlexCount `json:"outChild"`
	OutChildAlt *FlexCount `json:"OutChild"`

	Attributes []AttributeRecord `json:"attributes"`
}

// ParseDataUpload decodes a data upload body. Count fields are individually
// coerced, so only structurally broken JSON fails.
func ParseDataUpload(data []byte) (*DataUploadPayload, error) {
	var p DataUploadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RawCounts resolves the alias fields into typed raw totals.
//
// Precedence (first present key wins, JSON null counts as absent):
//
//	entries:  in, enter, Enter, In, inNum, InNum
//	exits:    out, leave, Leave, Out, outNum, OutNum
//	children: inChild, InChild / outChild, OutChild
func (p *DataUploadPayload) RawCounts() counting.RawCounts {
	return counting.RawCounts{
		TotalEntries: firstCount(p.In, p.Enter, p.EnterAlt, p.InAlt, p.InNum, p.InNumAlt),
		TotalExits:   firstCount(p.Out, p.Leave, p.LeaveAlt, p.OutAlt, p.OutNum, p.OutNumAlt),
		ChildEntries: firstCount(p.InChild, p.InChildAlt),
		ChildExits:   firstCount(p.OutChild, p.OutChildAlt),
	}
}

// AttributeList converts the wire attribute records to classifier input.
// A record is staff only when workcard is exactly 1.
func (p *DataUploadPayload) AttributeList() []counting.Attribute {
	if len(p.Attributes) == 0 {
		return nil
	}
	attrs := make([]counting.Attribute, 0, len(p.Attributes))
	for _, a := range p.Attributes {
		attrs = append(attrs, counting.Attribute{
			Workcard:  a.Workcard.Int() == 1,
			EventType: a.EventType.Int(),
		})
	}
	return attrs
}

func firstCount(fields ...*FlexCount) int {
	for _, f := range fields {
		if f != nil {
			return f.Int()
		}
	}
	return 0
}

// HeartbeatPayload is the body of a sensor heartbeat.
type HeartbeatPayload struct {
	SN FlexString `json:"sn"`
}

// SimulatorReading is the legacy simulator ingestion body, kept for the
// in-house payload generator.
type SimulatorReading struct {
	StoreID  string          `json:"storeId"`
	DeviceID string          `json:"deviceId"`
	Type     string          `json:"type"`
	Value    *FlexCount      `json:"value"`
	Unit     string          `json:"unit"`
	Extra    json.RawMessage `json:"extra"`
}

const (
	ReadingTypeEntry = "entrada"
	ReadingTypeExit  = "salida"
)

// Count returns the reading's count value, defaulting to 1 when absent.
func (r *SimulatorReading) Count() int {
	if r.Value == nil {
		return 1
	}
	return r.Value.Int()
}

// SensorAck is the acknowledgement envelope physical sensors expect. The
// ingestion endpoints always answer success; an error response would make
// the device retry-loop or halt uploads.
type SensorAck struct {
	Code int     `json:"code"`
	Msg  string  `json:"msg"`
	Data AckData `json:"data"`
}

// AckData carries the server time and, on heartbeats, the upload settings
// the sensor should apply.
type AckData struct {
	Time           int64  `json:"time"`
	UploadInterval int    `json:"uploadInterval,omitempty"`
	DataMode       string `json:"dataMode,omitempty"`
}

// NewSensorAck builds the success acknowledgement for a data upload.
func NewSensorAck(now time.Time) SensorAck {
	return SensorAck{
		Code: 0,
		Msg:  "success",
		Data: AckData{Time: now.Unix()},
	}
}

// NewHeartbeatAck builds the heartbeat acknowledgement, instructing the
// sensor to keep uploading incremental counts every minute.
func NewHeartbeatAck(now time.Time) SensorAck {
	return SensorAck{
		Code: 0,
		Msg:  "success",
		Data: AckData{Time: now.Unix(), UploadInterval: 1, DataMode: "Add"},
	}
}
