package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/GitMrBlaiquen/sensor-server/internal/database"
	"github.com/GitMrBlaiquen/sensor-server/internal/protocol"
)

// AuditWriter consumes audit events from Kafka and batch-writes them to the
// database. Offsets are committed only after a successful insert.
type AuditWriter struct {
	consumer      *Consumer
	db            *database.DB
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewAuditWriter creates an audit writer.
func NewAuditWriter(consumer *Consumer, db *database.DB, batchSize int, flushInterval time.Duration) *AuditWriter {
	return &AuditWriter{
		consumer:      consumer,
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to the database.
func (w *AuditWriter) Start(ctx context.Context) error {
	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop flushes the pending batch and stops the writer.
func (w *AuditWriter) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *AuditWriter) run(ctx context.Context) {
	defer w.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, 10)
	go func() {
		for {
			msg, err := w.consumer.Consume(ctx)
			if err != nil {
				select {
				case <-w.stopCh:
					return
				default:
				}
				fmt.Printf("Consumer error: %v\n", err)
				continue
			}
			msgChan <- msg
		}
	}()

	for {
		select {
		case <-w.stopCh:
			if len(batch) > 0 {
				w.flush(ctx, batch)
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (w *AuditWriter) flush(ctx context.Context, batch []kafka.Message) {
	successCount := 0
	for _, msg := range batch {
		if err := w.processMessage(msg); err != nil {
			fmt.Printf("Failed to process audit message: %v\n", err)
			continue
		}
		successCount++

		if err := w.consumer.Commit(ctx, msg); err != nil {
			fmt.Printf("Failed to commit offset: %v\n", err)
		}
	}

	fmt.Printf("Flushed %d of %d audit events to database\n", successCount, len(batch))
}

func (w *AuditWriter) processMessage(msg kafka.Message) error {
	ev, err := protocol.DecodeAuditEvent(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode audit event: %w", err)
	}

	row := &database.SensorEvent{
		EventID:         ev.EventID,
		SN:              ev.SN,
		StoreID:         ev.StoreID,
		Mapped:          ev.Mapped,
		ReceivedAt:      ev.ReceivedAt,
		TotalEntries:    ev.Delta.TotalEntries,
		TotalExits:      ev.Delta.TotalExits,
		CustomerEntries: ev.Delta.CustomerEntries,
		CustomerExits:   ev.Delta.CustomerExits,
		ChildEntries:    ev.Delta.ChildEntries,
		ChildExits:      ev.Delta.ChildExits,
		StaffEntries:    ev.Delta.StaffEntries,
		Raw:             ev.Raw,
	}

	if err := w.db.InsertSensorEvent(row); err != nil {
		return fmt.Errorf("failed to insert audit event %s: %w", ev.EventID, err)
	}
	return nil
}
