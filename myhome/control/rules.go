package control

import (
	"fmt"
	"strings"

	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"
)

// Range is the closed interval [Min, Max] a reading is expected in.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

var DefaultRange = Range{Min: 0, Max: 100}

func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("invalid range: min %v > max %v", r.Min, r.Max)
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%v, %v]", r.Min, r.Max)
}

// Rules holds the default range and per-device overrides.
type Rules struct {
	Default Range                `json:"default" yaml:"default"`
	Devices map[devices.Id]Range `json:"devices,omitempty" yaml:"devices,omitempty"`
}

// For returns the range of id. Ids are matched case-insensitively, as
// configuration keys come lower-cased while advertised ids keep their case.
func (r Rules) For(id devices.Id) Range {
	if rr, ok := r.Devices[id]; ok {
		return rr
	}
	if rr, ok := r.Devices[devices.Id(strings.ToLower(string(id)))]; ok {
		return rr
	}
	return r.Default
}

// Decide returns the corrective command for an out-of-range reading:
// above the range cools down to its maximum, below it heats up to its
// minimum. In-range (and NaN) readings need no command.
func (r Rules) Decide(id devices.Id, d datum.Datum) (thermostat.Command, bool) {
	rr := r.For(id)
	v := d.Value.Number()
	switch {
	case v > rr.Max:
		return thermostat.CoolTo(rr.Max), true
	case v < rr.Min:
		return thermostat.HeatTo(rr.Min), true
	default:
		return nil, false
	}
}
