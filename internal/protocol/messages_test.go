package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GitMrBlaiquen/sensor-server/internal/counting"
)

func TestParseDataUpload_CanonicalKeys(t *testing.T) {
	body := `{
		"sn": "221000002507152508",
		"in": 10, "out": 8,
		"inChild": 2, "outChild": 3,
		"attributes": [{"workcard": 1, "eventType": 1}, {"workcard": 0}, {"workcard": 1, "eventType": 2}]
	}`

	p, err := ParseDataUpload([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "221000002507152508", p.SN.String())
	assert.Equal(t, counting.RawCounts{
		TotalEntries: 10,
		TotalExits:   8,
		ChildEntries: 2,
		ChildExits:   3,
	}, p.RawCounts())

	attrs := p.AttributeList()
	require.Len(t, attrs, 3)
	assert.Equal(t, 2, counting.CountStaff(attrs))
}

func TestParseDataUpload_AliasPrecedence(t *testing.T) {
	cases := []struct {
		name string
		body string
		want counting.RawCounts
	}{
		{
			name: "enter and leave aliases",
			body: `{"sn":"x","enter":4,"leave":2}`,
			want: counting.RawCounts{TotalEntries: 4, TotalExits: 2},
		},
		{
			name: "capitalized aliases",
			body: `{"sn":"x","Enter":6,"Leave":1,"InChild":2,"OutChild":1}`,
			want: counting.RawCounts{TotalEntries: 6, TotalExits: 1, ChildEntries: 2, ChildExits: 1},
		},
		{
			name: "inNum last in precedence",
			body: `{"sn":"x","inNum":9,"OutNum":5}`,
			want: counting.RawCounts{TotalEntries: 9, TotalExits: 5},
		},
		{
			name: "in wins over enter even when zero",
			body: `{"sn":"x","in":0,"enter":7}`,
			want: counting.RawCounts{TotalEntries: 0},
		},
		{
			name: "null counts as absent",
			body: `{"sn":"x","in":null,"enter":7}`,
			want: counting.RawCounts{TotalEntries: 7},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParseDataUpload([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.RawCounts())
		})
	}
}

func TestParseDataUpload_CoercesStringsAndGarbage(t *testing.T) {
	body := `{"sn": 221000002507152508, "in": "12", "out": "nope", "inChild": " 3 ", "outChild": true}`

	p, err := ParseDataUpload([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "221000002507152508", p.SN.String())
	raw := p.RawCounts()
	assert.Equal(t, 12, raw.TotalEntries)
	assert.Equal(t, 0, raw.TotalExits, "non-numeric string coerces to zero")
	assert.Equal(t, 3, raw.ChildEntries)
	assert.Equal(t, 0, raw.ChildExits, "boolean coerces to zero")
}

func TestParseDataUpload_MissingFieldsDefaultToZero(t *testing.T) {
	p, err := ParseDataUpload([]byte(`{"sn":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, counting.RawCounts{}, p.RawCounts())
	assert.Nil(t, p.AttributeList())
}

func TestParseDataUpload_WorkcardStringFlag(t *testing.T) {
	p, err := ParseDataUpload([]byte(`{"sn":"abc","attributes":[{"workcard":"1"},{"workcard":"2"},{"workcard":1}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, counting.CountStaff(p.AttributeList()), "only workcard == 1 counts as staff")
}

func TestSensorAcks(t *testing.T) {
	now := time.Unix(1709301600, 0)

	ack := NewSensorAck(now)
	assert.Equal(t, 0, ack.Code)
	assert.Equal(t, "success", ack.Msg)
	assert.Equal(t, int64(1709301600), ack.Data.Time)
	assert.Zero(t, ack.Data.UploadInterval)

	hb := NewHeartbeatAck(now)
	assert.Equal(t, 1, hb.Data.UploadInterval)
	assert.Equal(t, "Add", hb.Data.DataMode)
}

func TestSimulatorReading_CountDefaultsToOne(t *testing.T) {
	var r SimulatorReading
	assert.Equal(t, 1, r.Count())

	v := FlexCount(4)
	r.Value = &v
	assert.Equal(t, 4, r.Count())
}

func TestAuditEvent_Roundtrip(t *testing.T) {
	ev := &AuditEvent{
		EventID:    "evt-1",
		SN:         "221000002507152508",
		StoreID:    "arrow-01",
		Mapped:     true,
		ReceivedAt: time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
		Delta:      counting.CounterBucket{TotalEntries: 3, CustomerEntries: 2, StaffEntries: 1},
	}

	data, err := EncodeAuditEvent(ev)
	require.NoError(t, err)

	got, err := DecodeAuditEvent(data)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}
