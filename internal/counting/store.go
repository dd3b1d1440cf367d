package counting

import (
	"fmt"
	"sync"
	"time"
)

const (
	dateKeyLayout = "2006-01-02"
	hourKeyLayout = "15"
)

// LiveSnapshot is the result of a live-counter query.
type LiveSnapshot struct {
	StoreID string `json:"storeId"`
	CounterBucket
	InsideEstimate int `json:"insideEstimate"`
}

// DailySnapshot is the result of a daily-history query. ByHour always holds
// all 24 hour keys ("00".."23"), zero-filled where no events occurred.
type DailySnapshot struct {
	StoreID string `json:"storeId"`
	Date    string `json:"date"`
	CounterBucket
	InsideEstimate int                      `json:"insideEstimate"`
	ByHour         map[string]CounterBucket `json:"byHour"`
}

// DailyTotals is the immediate feedback returned by ApplyDelta: the
// post-update totals for the day the delta landed in.
type DailyTotals struct {
	Date            string
	Hour            string
	CustomerEntries int
	CustomerExits   int
	InsideEstimate  int
}

// AggregateStore holds, per store identifier, a live running bucket, one
// bucket per calendar date, and one bucket per hour within each date. All
// state is in memory and resets on process restart.
//
// Any store identifier is accepted; entries are created lazily on first
// delta application. Absence is equivalent to an all-zero bucket, never an
// error. Nothing is ever evicted.
type AggregateStore struct {
	mu  sync.RWMutex
	loc *time.Location

	live   map[string]*CounterBucket
	daily  map[string]map[string]*CounterBucket            // storeID -> dateKey
	hourly map[string]map[string]map[string]*CounterBucket // storeID -> dateKey -> hourKey
}

// NewAggregateStore creates an empty aggregate store. Date and hour keys are
// derived from event timestamps in loc; a nil loc means UTC.
func NewAggregateStore(loc *time.Location) *AggregateStore {
	if loc == nil {
		loc = time.UTC
	}
	return &AggregateStore{
		loc:    loc,
		live:   make(map[string]*CounterBucket),
		daily:  make(map[string]map[string]*CounterBucket),
		hourly: make(map[string]map[string]map[string]*CounterBucket),
	}
}

// ApplyDelta adds the delta into the store's live bucket and the daily and
// hourly buckets for ts, all three under one lock so concurrent deltas for
// the same store never interleave their fan-out. It returns the post-update
// daily totals for caller feedback.
//
// A delta with any negative field is rejected with InvalidDeltaError; the
// normalizer guarantees non-negative deltas, so a rejection here indicates
// an upstream bug.
func (s *AggregateStore) ApplyDelta(storeID string, delta CounterBucket, ts time.Time) (DailyTotals, error) {
	if err := delta.Validate(); err != nil {
		return DailyTotals{}, err
	}

	local := ts.In(s.loc)
	dateKey := local.Format(dateKeyLayout)
	hourKey := local.Format(hourKeyLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.liveBucket(storeID).Add(delta)
	s.dailyBucket(storeID, dateKey).Add(delta)
	s.hourlyBucket(storeID, dateKey, hourKey).Add(delta)

	day := s.daily[storeID][dateKey]
	return DailyTotals{
		Date:            dateKey,
		Hour:            hourKey,
		CustomerEntries: day.CustomerEntries,
		CustomerExits:   day.CustomerExits,
		InsideEstimate:  day.InsideEstimate(),
	}, nil
}

// GetLive returns the live bucket for a store. An unknown store yields an
// all-zero snapshot and does not mutate the store.
func (s *AggregateStore) GetLive(storeID string) LiveSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bucket CounterBucket
	if b, ok := s.live[storeID]; ok {
		bucket = *b
	}
	return LiveSnapshot{
		StoreID:        storeID,
		CounterBucket:  bucket,
		InsideEstimate: bucket.InsideEstimate(),
	}
}

// GetDaily returns the daily bucket for a store and date together with the
// full 24-entry hourly breakdown. Unknown stores and dates yield all-zero
// buckets; a malformed date is the only error condition.
func (s *AggregateStore) GetDaily(storeID, date string) (DailySnapshot, error) {
	if _, err := time.ParseInLocation(dateKeyLayout, date, s.loc); err != nil {
		return DailySnapshot{}, &InvalidDateError{Value: date}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var bucket CounterBucket
	if days, ok := s.daily[storeID]; ok {
		if b, ok := days[date]; ok {
			bucket = *b
		}
	}

	byHour := make(map[string]CounterBucket, 24)
	for h := 0; h < 24; h++ {
		byHour[fmt.Sprintf("%02d", h)] = CounterBucket{}
	}
	if days, ok := s.hourly[storeID]; ok {
		for hourKey, b := range days[date] {
			byHour[hourKey] = *b
		}
	}

	return DailySnapshot{
		StoreID:        storeID,
		Date:           date,
		CounterBucket:  bucket,
		InsideEstimate: bucket.InsideEstimate(),
		ByHour:         byHour,
	}, nil
}

// LiveCounters returns a copy of every store's live bucket, for debug views.
func (s *AggregateStore) LiveCounters() map[string]CounterBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]CounterBucket, len(s.live))
	for storeID, b := range s.live {
		out[storeID] = *b
	}
	return out
}

// DailyCounters returns a copy of every store's per-date buckets.
func (s *AggregateStore) DailyCounters() map[string]map[string]CounterBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]CounterBucket, len(s.daily))
	for storeID, days := range s.daily {
		copied := make(map[string]CounterBucket, len(days))
		for dateKey, b := range days {
			copied[dateKey] = *b
		}
		out[storeID] = copied
	}
	return out
}

// HourlyCounters returns a copy of every store's per-date per-hour buckets.
// Only hours that received events are present.
func (s *AggregateStore) HourlyCounters() map[string]map[string]map[string]CounterBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]map[string]CounterBucket, len(s.hourly))
	for storeID, days := range s.hourly {
		copiedDays := make(map[string]map[string]CounterBucket, len(days))
		for dateKey, hours := range days {
			copiedHours := make(map[string]CounterBucket, len(hours))
			for hourKey, b := range hours {
				copiedHours[hourKey] = *b
			}
			copiedDays[dateKey] = copiedHours
		}
		out[storeID] = copiedDays
	}
	return out
}

// liveBucket, dailyBucket and hourlyBucket create buckets lazily. Callers
// must hold the write lock.

func (s *AggregateStore) liveBucket(storeID string) *CounterBucket {
	b, ok := s.live[storeID]
	if !ok {
		b = &CounterBucket{}
		s.live[storeID] = b
	}
	return b
}

func (s *AggregateStore) dailyBucket(storeID, dateKey string) *CounterBucket {
	days, ok := s.daily[storeID]
	if !ok {
		days = make(map[string]*CounterBucket)
		s.daily[storeID] = days
	}
	b, ok := days[dateKey]
	if !ok {
		b = &CounterBucket{}
		days[dateKey] = b
	}
	return b
}

func (s *AggregateStore) hourlyBucket(storeID, dateKey, hourKey string) *CounterBucket {
	days, ok := s.hourly[storeID]
	if !ok {
		days = make(map[string]map[string]*CounterBucket)
		s.hourly[storeID] = days
	}
	hours, ok := days[dateKey]
	if !ok {
		hours = make(map[string]*CounterBucket)
		days[dateKey] = hours
	}
	b, ok := hours[hourKey]
	if !ok {
		b = &CounterBucket{}
		hours[hourKey] = b
	}
	return b
}
