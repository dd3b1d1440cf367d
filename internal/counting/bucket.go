package counting

// CounterBucket is the unit of aggregation. The same shape is used for a
// stored bucket (live, daily, hourly) and for the per-payload delta that is
// added into all three.
type CounterBucket struct {
	TotalEntries    int `json:"totalEntries"`
	TotalExits      int `json:"totalExits"`
	CustomerEntries int `json:"customerEntries"`
	CustomerExits   int `json:"customerExits"`
	ChildEntries    int `json:"childEntries"`
	ChildExits      int `json:"childExits"`
	StaffEntries    int `json:"staffEntries"`
}

// Add accumulates a delta into the bucket.
func (b *CounterBucket) Add(d CounterBucket) {
	b.TotalEntries += d.TotalEntries
	b.TotalExits += d.TotalExits
	b.CustomerEntries += d.CustomerEntries
	b.CustomerExits += d.CustomerExits
	b.ChildEntries += d.ChildEntries
	b.ChildExits += d.ChildExits
	b.StaffEntries += d.StaffEntries
}

// InsideEstimate returns the currently-inside derivation, clamped at zero.
// It is always computed at read time and never persisted.
func (b CounterBucket) InsideEstimate() int {
	inside := b.CustomerEntries - b.CustomerExits
	if inside < 0 {
		return 0
	}
	return inside
}

// Validate checks that no field is negative. A negative field reaching the
// aggregate store indicates a normalizer bug upstream.
func (b CounterBucket) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"totalEntries", b.TotalEntries},
		{"totalExits", b.TotalExits},
		{"customerEntries", b.CustomerEntries},
		{"customerExits", b.CustomerExits},
		{"childEntries", b.ChildEntries},
		{"childExits", b.ChildExits},
		{"staffEntries", b.StaffEntries},
	}
	for _, f := range fields {
		if f.value < 0 {
			return &InvalidDeltaError{Field: f.name, Value: f.value}
		}
	}
	return nil
}
