package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GitMrBlaiquen/sensor-server/internal/counting"
	"github.com/GitMrBlaiquen/sensor-server/internal/devices"
	"github.com/GitMrBlaiquen/sensor-server/internal/protocol"
)

// Publisher sends audit events to the message queue. A nil Publisher on the
// Service disables audit publishing.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Result is the outcome of one data upload, for handler logging. The
// transport acknowledges success regardless of the outcome.
type Result struct {
	SN      string
	StoreID string
	Mapped  bool
	Delta   counting.CounterBucket
	Daily   counting.DailyTotals
}

// Service is the ingestion pipeline: resolve the device, classify
// attributes, normalize counts, apply the delta, record the event for
// audit. It is the only component that mutates the aggregate store.
type Service struct {
	mapping   *devices.Mapping
	store     *counting.AggregateStore
	registry  *devices.Registry
	heartbeat devices.HeartbeatTracker
	producer  Publisher
	metrics   *Metrics

	now func() time.Time
}

// NewService wires the ingestion pipeline. producer may be nil when Kafka
// is disabled.
func NewService(
	mapping *devices.Mapping,
	store *counting.AggregateStore,
	registry *devices.Registry,
	heartbeat devices.HeartbeatTracker,
	producer Publisher,
	metrics *Metrics,
) *Service {
	return &Service{
		mapping:   mapping,
		store:     store,
		registry:  registry,
		heartbeat: heartbeat,
		producer:  producer,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetClock overrides the service's time source, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// HandleDataUpload processes one raw sensor upload body.
//
// An unmapped serial is not an error: the event is recorded in the registry
// and the audit trail so an operator can spot the unconfigured sensor, but
// no aggregate is touched. An undecodable body contributes nothing at all.
// In every case the caller must still acknowledge success to the sensor.
func (s *Service) HandleDataUpload(ctx context.Context, body []byte) (Result, error) {
	payload, err := protocol.ParseDataUpload(body)
	if err != nil {
		s.metrics.InvalidPayloads.Inc()
		return Result{}, fmt.Errorf("undecodable payload: %w", err)
	}

	now := s.now()
	sn := payload.SN.String()
	if sn != "" {
		if err := s.heartbeat.Beat(ctx, sn, now); err != nil {
			fmt.Printf("Failed to record heartbeat for %s: %v\n", sn, err)
		}
	}

	storeID, mapped := s.mapping.StoreForSerial(sn)

	s.recordSensor(storeID, sn, body, now)

	if !mapped {
		s.metrics.UnmappedDevices.Inc()
		fmt.Printf("Unmapped sensor serial %q, add it to the device mapping\n", sn)
		s.publishAudit(ctx, &protocol.AuditEvent{
			EventID:    uuid.New().String(),
			SN:         sn,
			Mapped:     false,
			ReceivedAt: now,
			Raw:        json.RawMessage(body),
		})
		return Result{SN: sn}, nil
	}

	staff := counting.CountStaff(payload.AttributeList())
	delta := counting.Normalize(payload.RawCounts(), staff)

	daily, err := s.store.ApplyDelta(storeID, delta, now)
	if err != nil {
		return Result{SN: sn, StoreID: storeID, Mapped: true}, fmt.Errorf("apply delta for %s: %w", storeID, err)
	}

	s.metrics.EventsIngested.WithLabelValues(storeID).Inc()
	fmt.Printf("%s (SN %s) customers +in %d +out %d | children +in %d +out %d | staff %d\n",
		storeID, sn, delta.CustomerEntries, delta.CustomerExits,
		delta.ChildEntries, delta.ChildExits, delta.StaffEntries)

	s.publishAudit(ctx, &protocol.AuditEvent{
		EventID:    uuid.New().String(),
		SN:         sn,
		StoreID:    storeID,
		Mapped:     true,
		ReceivedAt: now,
		Delta:      delta,
		Raw:        json.RawMessage(body),
	})

	return Result{SN: sn, StoreID: storeID, Mapped: true, Delta: delta, Daily: daily}, nil
}

// HandleHeartbeat records a heartbeat for the payload's serial. A missing
// serial is ignored.
func (s *Service) HandleHeartbeat(ctx context.Context, payload *protocol.HeartbeatPayload) error {
	s.metrics.Heartbeats.Inc()

	sn := payload.SN.String()
	if sn == "" {
		return nil
	}
	if err := s.heartbeat.Beat(ctx, sn, s.now()); err != nil {
		return fmt.Errorf("record heartbeat for %s: %w", sn, err)
	}
	return nil
}

// HandleSimulatorReading processes the legacy simulator format, where a
// reading is a single pre-classified entry or exit count.
func (s *Service) HandleSimulatorReading(ctx context.Context, reading *protocol.SimulatorReading) (Result, error) {
	if reading.StoreID == "" {
		return Result{}, fmt.Errorf("missing storeId")
	}
	if reading.DeviceID == "" {
		return Result{}, fmt.Errorf("missing deviceId")
	}

	now := s.now()
	value := reading.Count()
	if value < 0 {
		value = 0
	}

	var delta counting.CounterBucket
	switch reading.Type {
	case protocol.ReadingTypeEntry:
		delta.TotalEntries = value
		delta.CustomerEntries = value
	case protocol.ReadingTypeExit:
		delta.TotalExits = value
		delta.CustomerExits = value
	}

	s.registry.Record(fmt.Sprintf("%s:%s", reading.StoreID, reading.DeviceID), devices.SensorRecord{
		StoreID:    reading.StoreID,
		DeviceID:   reading.DeviceID,
		Type:       reading.Type,
		Value:      &value,
		Unit:       reading.Unit,
		Extra:      reading.Extra,
		LastUpdate: now,
	})

	daily, err := s.store.ApplyDelta(reading.StoreID, delta, now)
	if err != nil {
		return Result{StoreID: reading.StoreID}, fmt.Errorf("apply delta for %s: %w", reading.StoreID, err)
	}

	s.metrics.EventsIngested.WithLabelValues(reading.StoreID).Inc()
	return Result{StoreID: reading.StoreID, Mapped: true, Delta: delta, Daily: daily}, nil
}

func (s *Service) recordSensor(storeID, sn string, body []byte, now time.Time) {
	key := fmt.Sprintf("%s:SN:%s", orUnknown(storeID), orNoSN(sn))
	s.registry.Record(key, devices.SensorRecord{
		StoreID:    storeID,
		DeviceID:   fmt.Sprintf("SN:%s", orNoSN(sn)),
		Type:       "sensor-real",
		Extra:      json.RawMessage(body),
		LastUpdate: now,
	})
}

func (s *Service) publishAudit(ctx context.Context, ev *protocol.AuditEvent) {
	if s.producer == nil {
		return
	}

	data, err := protocol.EncodeAuditEvent(ev)
	if err != nil {
		fmt.Printf("Failed to encode audit event: %v\n", err)
		return
	}
	// Audit publishing is best effort; ingestion never fails because of it.
	if err := s.producer.Publish(ctx, ev.SN, data); err != nil {
		fmt.Printf("Failed to publish audit event: %v\n", err)
	}
}

func orUnknown(storeID string) string {
	if storeID == "" {
		return "unknown"
	}
	return storeID
}

func orNoSN(sn string) string {
	if sn == "" {
		return "no-sn"
	}
	return sn
}
