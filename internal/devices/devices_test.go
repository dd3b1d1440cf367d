package devices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping("221000002507152508=arrow-01, 211000002507152051=arrow-02,")
	require.NoError(t, err)

	storeID, ok := m.StoreForSerial("221000002507152508")
	require.True(t, ok)
	assert.Equal(t, "arrow-01", storeID)

	storeID, ok = m.StoreForSerial("211000002507152051")
	require.True(t, ok)
	assert.Equal(t, "arrow-02", storeID)

	_, ok = m.StoreForSerial("999")
	assert.False(t, ok)

	sn, ok := m.SerialForStore("arrow-01")
	require.True(t, ok)
	assert.Equal(t, "221000002507152508", sn)

	assert.Len(t, m.Serials(), 2)
}

func TestParseMapping_Invalid(t *testing.T) {
	for _, raw := range []string{"no-equals-sign", "=arrow-01", "123="} {
		_, err := ParseMapping(raw)
		assert.Error(t, err, "mapping %q", raw)
	}
}

func TestMemoryTracker_OnlineWindow(t *testing.T) {
	tracker := NewMemoryTracker(90 * time.Second)
	ctx := context.Background()
	now := time.Now()

	// Never heard from: offline, no error.
	online, err := tracker.Online(ctx, "sn-1", now)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, tracker.Beat(ctx, "sn-1", now.Add(-30*time.Second)))
	online, err = tracker.Online(ctx, "sn-1", now)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, tracker.Beat(ctx, "sn-1", now.Add(-2*time.Minute)))
	online, err = tracker.Online(ctx, "sn-1", now)
	require.NoError(t, err)
	assert.False(t, online, "beat older than the window is offline")

	last, ok, err := tracker.LastBeat(ctx, "sn-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, now.Add(-2*time.Minute), last)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, reg.All())

	reg.Record("arrow-01:SN:123", SensorRecord{
		StoreID:  "arrow-01",
		DeviceID: "SN:123",
		Type:     "sensor-real",
	})
	reg.Record("arrow-01:SN:123", SensorRecord{
		StoreID:  "arrow-01",
		DeviceID: "SN:123",
		Type:     "sensor-real",
		Unit:     "personas",
	})

	assert.Equal(t, 1, reg.Count(), "same key replaces the record")
	rec, ok := reg.Get("arrow-01:SN:123")
	require.True(t, ok)
	assert.Equal(t, "personas", rec.Unit)
}
