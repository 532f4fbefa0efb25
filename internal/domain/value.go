package domain

import (
	"encoding/json"
	"strconv"
)

// Value is a metric result: a number, or undefined when the formula has no
// meaningful answer (zero denominator, missing baseline).
type Value struct {
	Number  float64
	Defined bool
}

// Undefined is the absent value.
var Undefined = Value{}

// Number wraps f as a defined value.
func Number(f float64) Value {
	return Value{Number: f, Defined: true}
}

// MarshalJSON encodes undefined as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(v.Number)
}

// UnmarshalJSON decodes null as undefined.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}

func (v Value) String() string {
	if !v.Defined {
		return "n/a"
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}
