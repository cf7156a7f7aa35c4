// Package datum holds single, typed, timestamped measurements and their
// compact text encoding "<value>@<unit>@<rfc3339-timestamp>".
//
// Data crosses TCP between devices and the controller, so the value type is
// carried in the encoding itself: floats always contain a decimal point,
// integers never do, and decoding tries bool, then int, then float.
package datum

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a tagged scalar. The zero Value is Bool(false).
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
}

func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) Float() (float64, bool) {
	return v.f, v.kind == KindFloat
}

// Number is the numeric view used when comparing against ranges:
// true is 1, false is 0.
func (v Value) Number() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindFloat:
		return v.f
	default:
		if v.b {
			return 1
		}
		return 0
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	default:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		s := strconv.FormatFloat(v.f, 'f', -1, 64)
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return s
		}
		// an integral float must not read back as an int
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
}

// Datum is a single observation. Its zero Unit is Unitless.
type Datum struct {
	Value     Value
	Unit      Unit
	Timestamp time.Time
}

func New(value Value, unit Unit, timestamp time.Time) Datum {
	return Datum{
		Value:     value,
		Unit:      unit,
		Timestamp: timestamp.UTC(),
	}
}

func NewNow(value Value, unit Unit) Datum {
	return New(value, unit, time.Now())
}

func (d Datum) Equal(o Datum) bool {
	return d.Value.Equal(o.Value) && d.Unit == o.Unit && d.Timestamp.Equal(o.Timestamp)
}

func (d Datum) String() string {
	return Encode(d)
}

func (d Datum) MarshalText() ([]byte, error) {
	return []byte(Encode(d)), nil
}

func (d *Datum) UnmarshalText(text []byte) error {
	decoded, err := Decode(string(text))
	if err != nil {
		return err
	}
	*d = decoded
	return nil
}

// MarshalYAML keeps the wire form in YAML output.
func (d Datum) MarshalYAML() (interface{}, error) {
	return Encode(d), nil
}
