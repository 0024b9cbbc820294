package routine

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexInt is an integer field that clients may send as a JSON number or a numeric string.
// Unparseable input does not fail decoding; it is flagged so validation can name the field.
type FlexInt struct {
	Value   int
	Set     bool
	Invalid bool
}

// Int returns a set FlexInt.
func Int(v int) FlexInt {
	return FlexInt{Value: v, Set: true}
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	f.Set = true

	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			f.Invalid = true
			return nil
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			f.Set = false
			return nil
		}
	} else {
		raw = string(data)
	}

	if n, err := strconv.Atoi(raw); err == nil {
		f.Value = n
		return nil
	}
	// Accept integral floats such as 5.0 but nothing fractional.
	if fl, err := strconv.ParseFloat(raw, 64); err == nil && fl == float64(int(fl)) {
		f.Value = int(fl)
		return nil
	}
	f.Invalid = true
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Invalid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.Value)), nil
}
