package devices

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// HeartbeatTracker records the last heartbeat per sensor serial and answers
// the online/offline freshness check. A sensor is online when its last
// heartbeat is within the configured window.
type HeartbeatTracker interface {
	Beat(ctx context.Context, sn string, at time.Time) error
	LastBeat(ctx context.Context, sn string) (time.Time, bool, error)
	Online(ctx context.Context, sn string, now time.Time) (bool, error)
}

// RedisTracker stores heartbeats in Redis with a TTL so stale entries clean
// themselves up.
type RedisTracker struct {
	redis  *redis.Client
	window time.Duration
}

// NewRedisTracker creates a Redis-backed heartbeat tracker.
func NewRedisTracker(redisClient *redis.Client, window time.Duration) *RedisTracker {
	return &RedisTracker{redis: redisClient, window: window}
}

func heartbeatKey(sn string) string {
	return fmt.Sprintf("heartbeat:%s", sn)
}

// Beat records a heartbeat. The key expires well after the online window so
// LastBeat can still report a recently-offline sensor's timestamp.
func (t *RedisTracker) Beat(ctx context.Context, sn string, at time.Time) error {
	value := strconv.FormatInt(at.UnixMilli(), 10)
	if err := t.redis.Set(ctx, heartbeatKey(sn), value, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return nil
}

// LastBeat returns the last recorded heartbeat for a serial.
func (t *RedisTracker) LastBeat(ctx context.Context, sn string) (time.Time, bool, error) {
	value, err := t.redis.Get(ctx, heartbeatKey(sn)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read heartbeat: %w", err)
	}

	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt heartbeat value %q: %w", value, err)
	}
	return time.UnixMilli(millis), true, nil
}

// Online reports whether the serial's last heartbeat is within the window.
func (t *RedisTracker) Online(ctx context.Context, sn string, now time.Time) (bool, error) {
	last, ok, err := t.LastBeat(ctx, sn)
	if err != nil || !ok {
		return false, err
	}
	return now.Sub(last) <= t.window, nil
}

// MemoryTracker is an in-process HeartbeatTracker, used when Redis is not
// configured and in tests.
type MemoryTracker struct {
	mu     sync.RWMutex
	beats  map[string]time.Time
	window time.Duration
}

// NewMemoryTracker creates an in-memory heartbeat tracker.
func NewMemoryTracker(window time.Duration) *MemoryTracker {
	return &MemoryTracker{
		beats:  make(map[string]time.Time),
		window: window,
	}
}

func (t *MemoryTracker) Beat(_ context.Context, sn string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.beats[sn] = at
	return nil
}

func (t *MemoryTracker) LastBeat(_ context.Context, sn string) (time.Time, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	last, ok := t.beats[sn]
	return last, ok, nil
}

func (t *MemoryTracker) Online(ctx context.Context, sn string, now time.Time) (bool, error) {
	last, ok, err := t.LastBeat(ctx, sn)
	if err != nil || !ok {
		return false, err
	}
	return now.Sub(last) <= t.window, nil
}
