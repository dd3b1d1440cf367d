package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexCount is a count field as sensors actually send it: a JSON number, a
// numeric string, or garbage. Anything non-numeric decodes to zero instead
// of failing the whole payload, since sensor firmware cannot act on error
// responses.
type FlexCount int

// UnmarshalJSON coerces numbers and numeric strings; everything else
// becomes zero. It never returns an error.
func (f *FlexCount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			*f = 0
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexCount(int(v))
	return nil
}

// Int returns the decoded value.
func (f FlexCount) Int() int {
	return int(f)
}

// FlexString is an identifier field that may arrive as a JSON string or a
// bare number (some firmware sends serial numbers unquoted).
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}

	return fmt.Errorf("value %s is neither string nor number", string(data))
}

func (f FlexString) String() string {
	return string(f)
}
