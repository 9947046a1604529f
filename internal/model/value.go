package model

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Value is a nullable observation value. The zero Value is null.
type Value struct {
	v     float64
	valid bool
}

// Some wraps f. NaN and infinities become null.
func Some(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{v: f, valid: true}
}

// Null returns a missing value.
func Null() Value { return Value{} }

// IsNull reports whether the value is missing.
func (v Value) IsNull() bool { return !v.valid }

// Float returns the value and whether it is present.
func (v Value) Float() (float64, bool) { return v.v, v.valid }

// Or returns the value, or def when it is missing.
func (v Value) Or(def float64) float64 {
	if !v.valid {
		return def
	}
	return v.v
}

// String renders the value, "nan" when missing.
func (v Value) String() string {
	if !v.valid {
		return "nan"
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// MarshalJSON encodes a missing value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	var f *float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f == nil {
		*v = Null()
		return nil
	}
	*v = Some(*f)
	return nil
}

// Present returns the non-null values of vals as floats.
func Present(vals []Value) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v.valid {
			out = append(out, v.v)
		}
	}
	return out
}

// CountNull returns the number of missing values in vals.
func CountNull(vals []Value) int {
	n := 0
	for _, v := range vals {
		if !v.valid {
			n++
		}
	}
	return n
}

// EncodeMsgpack encodes a missing value as nil.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if !v.valid {
		return enc.EncodeNil()
	}
	return enc.EncodeFloat64(v.v)
}

// DecodeMsgpack accepts a float or nil.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	var f *float64
	if err := dec.Decode(&f); err != nil {
		return err
	}
	if f == nil {
		*v = Null()
		return nil
	}
	*v = Some(*f)
	return nil
}
