package counting

import "fmt"

// InvalidDateError is returned by daily queries for a malformed date key.
type InvalidDateError struct {
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q (expected YYYY-MM-DD)", e.Value)
}

// InvalidDeltaError is returned when a negative-valued delta reaches the
// aggregate store. The store rejects it instead of corrupting a running total.
type InvalidDeltaError struct {
	Field string
	Value int
}

func (e *InvalidDeltaError) Error() string {
	return fmt.Sprintf("invalid delta: field %s is negative (%d)", e.Field, e.Value)
}
