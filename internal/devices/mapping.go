package devices

import (
	"fmt"
	"strings"
)

// Mapping is the static serial-number-to-store table, injected at startup.
// One physical sensor maps to exactly one store; runtime mutation is out of
// scope.
type Mapping struct {
	byserial map[string]string
	bystore  map[string]string
}

// NewMapping builds a Mapping from a serial -> storeID table.
func NewMapping(serialToStore map[string]string) *Mapping {
	m := &Mapping{
		byserial: make(map[string]string, len(serialToStore)),
		bystore:  make(map[string]string, len(serialToStore)),
	}
	for sn, storeID := range serialToStore {
		m.byserial[sn] = storeID
		m.bystore[storeID] = sn
	}
	return m
}

// ParseMapping parses the DEVICE_MAP format: a comma-separated list of
// serial=storeId pairs, e.g. "221000002507152508=arrow-01,2110...=arrow-02".
func ParseMapping(raw string) (*Mapping, error) {
	table := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sn, storeID, ok := strings.Cut(pair, "=")
		sn, storeID = strings.TrimSpace(sn), strings.TrimSpace(storeID)
		if !ok || sn == "" || storeID == "" {
			return nil, fmt.Errorf("invalid device mapping entry %q (expected serial=storeId)", pair)
		}
		table[sn] = storeID
	}
	return NewMapping(table), nil
}

// StoreForSerial resolves a sensor serial to its store. Unknown serials are
// not an error at this level; the caller decides the soft-fail policy.
func (m *Mapping) StoreForSerial(sn string) (string, bool) {
	storeID, ok := m.byserial[sn]
	return storeID, ok
}

// SerialForStore resolves a store to its sensor serial.
func (m *Mapping) SerialForStore(storeID string) (string, bool) {
	sn, ok := m.bystore[storeID]
	return sn, ok
}

// Serials returns every mapped serial number.
func (m *Mapping) Serials() []string {
	serials := make([]string, 0, len(m.byserial))
	for sn := range m.byserial {
		serials = append(serials, sn)
	}
	return serials
}
