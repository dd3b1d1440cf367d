package counting

// Attribute is one per-person detection record from a sensor payload,
// already resolved to typed fields by the protocol adapter.
type Attribute struct {
	// Workcard marks the detected person as a staff member.
	Workcard bool
	// EventType is the sensor's crossing-direction code, when present.
	// The staff direction signal is unreliable across firmware revisions,
	// so it does not participate in staff counting.
	EventType int
}

// CountStaff returns the number of attribute records flagged as staff.
// A nil or empty list yields zero; there are no error conditions.
func CountStaff(attrs []Attribute) int {
	staff := 0
	for _, a := range attrs {
		if a.Workcard {
			staff++
		}
	}
	return staff
}
