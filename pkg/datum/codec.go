package datum

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const separator = "@"

// ParseError carries the offending substring and the type it failed to parse as.
type ParseError struct {
	Input string
	Type  string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse '%s' as %s: %v", e.Input, e.Type, e.Err)
	}
	return fmt.Sprintf("cannot parse '%s' as %s", e.Input, e.Type)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func Encode(d Datum) string {
	return strings.Join([]string{
		d.Value.String(),
		d.Unit.String(),
		d.Timestamp.UTC().Format(time.RFC3339Nano),
	}, separator)
}

func Decode(s string) (Datum, error) {
	fields := strings.Split(s, separator)
	if len(fields) != 3 {
		return Datum{}, &ParseError{Input: s, Type: "datum", Err: fmt.Errorf("expected 3 '%s'-separated fields, got %d", separator, len(fields))}
	}

	value, err := ParseValue(fields[0])
	if err != nil {
		return Datum{}, err
	}

	unit, err := ParseUnit(fields[1])
	if err != nil {
		return Datum{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, fields[2])
	if err != nil {
		return Datum{}, &ParseError{Input: fields[2], Type: "timestamp", Err: err}
	}

	return New(value, unit, ts), nil
}

// ParseValue tries bool, then int, then float. The order matters: "0" is an
// int, "0.0" is a float.
func ParseValue(s string) (Value, error) {
	switch s {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, &ParseError{Input: s, Type: "value", Err: err}
	}
	return Float(f), nil
}
