// Package thermostat defines the commands a temperature actuator accepts.
package thermostat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Command is a closed set: CoolTo, HeatTo and SetTarget.
type Command interface {
	Name() string
	Temperature() float64
	String() string
	isCommand()
}

// CoolTo asks the actuator to cool the environment down to the given °C.
type CoolTo float64

// HeatTo asks the actuator to heat the environment up to the given °C.
type HeatTo float64

// SetTarget sets the set-point without forcing a direction.
type SetTarget float64

func (CoolTo) Name() string    { return "CoolTo" }
func (HeatTo) Name() string    { return "HeatTo" }
func (SetTarget) Name() string { return "SetTarget" }

func (c CoolTo) Temperature() float64    { return float64(c) }
func (c HeatTo) Temperature() float64    { return float64(c) }
func (c SetTarget) Temperature() float64 { return float64(c) }

func (CoolTo) isCommand()    {}
func (HeatTo) isCommand()    {}
func (SetTarget) isCommand() {}

func (c CoolTo) String() string    { return format(c) }
func (c HeatTo) String() string    { return format(c) }
func (c SetTarget) String() string { return format(c) }

func format(c Command) string {
	return fmt.Sprintf("%s:%s", c.Name(), strconv.FormatFloat(c.Temperature(), 'f', -1, 64))
}

func New(name string, temperature float64) (Command, error) {
	switch name {
	case "CoolTo":
		return CoolTo(temperature), nil
	case "HeatTo":
		return HeatTo(temperature), nil
	case "SetTarget":
		return SetTarget(temperature), nil
	}
	return nil, &ParseError{Input: name, Reason: "unknown command"}
}

type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse '%s' as command: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot parse '%s' as command: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads the text form written by String, e.g. "CoolTo:42".
func Parse(s string) (Command, error) {
	name, value, found := strings.Cut(s, ":")
	if !found {
		return nil, &ParseError{Input: s, Reason: "expected <name>:<temperature>"}
	}
	t, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, &ParseError{Input: s, Reason: "invalid temperature", Err: err}
	}
	c, err := New(name, t)
	if err != nil {
		return nil, &ParseError{Input: s, Reason: "unknown command"}
	}
	return c, nil
}

// Marshal encodes a command as an externally tagged JSON object: {"CoolTo":42}
func Marshal(c Command) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil command")
	}
	return json.Marshal(map[string]float64{c.Name(): c.Temperature()})
}

func Unmarshal(data []byte) (Command, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, &ParseError{Input: string(data), Reason: "invalid JSON", Err: err}
	}
	if len(tagged) != 1 {
		return nil, &ParseError{Input: string(data), Reason: fmt.Sprintf("expected exactly one tag, got %d", len(tagged))}
	}
	var name string
	var raw json.RawMessage
	for name, raw = range tagged {
	}
	var t float64
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, &ParseError{Input: string(data), Reason: "invalid temperature", Err: err}
	}
	c, err := New(name, t)
	if err != nil {
		return nil, &ParseError{Input: string(data), Reason: "unknown command"}
	}
	return c, nil
}
