package counting

// RawCounts are the sensor-reported totals for one payload, after the
// protocol adapter has resolved field aliases and coerced non-numeric
// values to zero.
type RawCounts struct {
	TotalEntries int
	TotalExits   int
	ChildEntries int
	ChildExits   int
}

// Normalize derives the corrected per-payload delta from raw sensor totals
// and the classifier's staff count.
//
// Policy: staff are only reliably observed on entry, so the staff count is
// subtracted from entries only; children carry explicit directional counts
// and are subtracted symmetrically on both sides. Every intermediate result
// is clamped, so the delta is never negative and no corrected category
// exceeds the raw total it was derived from.
func Normalize(raw RawCounts, staffCount int) CounterBucket {
	totalEntries := clampNonNegative(raw.TotalEntries)
	totalExits := clampNonNegative(raw.TotalExits)
	childEntries := clampMax(clampNonNegative(raw.ChildEntries), totalEntries)
	childExits := clampMax(clampNonNegative(raw.ChildExits), totalExits)
	staff := clampNonNegative(staffCount)

	return CounterBucket{
		TotalEntries:    totalEntries,
		TotalExits:      totalExits,
		CustomerEntries: clampNonNegative(totalEntries - childEntries - staff),
		CustomerExits:   clampNonNegative(totalExits - childExits),
		ChildEntries:    childEntries,
		ChildExits:      childExits,
		StaffEntries:    clampMax(staff, totalEntries),
	}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clampMax(v, max int) int {
	if v > max {
		return max
	}
	return v
}
