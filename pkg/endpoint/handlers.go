package endpoint

import (
	"context"
	"sync"

	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"
	"github.com/asnowfix/homecontrol/pkg/transport"

	"github.com/go-logr/logr"
)

// SensorHandler answers any request with the current reading, one line,
// then closes.
func SensorHandler(read func() datum.Datum) Handler {
	return func(ctx context.Context, req *transport.Request) []byte {
		return []byte(datum.Encode(read()) + "\n")
	}
}

// ActuatorHandler decodes a JSON command and hands it to act.
func ActuatorHandler(act func(ctx context.Context, cmd thermostat.Command) error) Handler {
	return func(ctx context.Context, req *transport.Request) []byte {
		log := logr.FromContextOrDiscard(ctx)
		if req.Method != "POST" {
			return transport.Response("405 Method Not Allowed", []byte(req.Method))
		}
		cmd, err := thermostat.Unmarshal(req.Body)
		if err != nil {
			log.Error(err, "Invalid command", "body", string(req.Body))
			return transport.Response("400 Bad Request", []byte(err.Error()))
		}
		if err := act(ctx, cmd); err != nil {
			log.Error(err, "Command failed", "command", cmd.String())
			return transport.Response("500 Internal Server Error", []byte(err.Error()))
		}
		log.Info("Command applied", "command", cmd.String())
		return transport.Response("200 OK", []byte("OK"))
	}
}

// Reading holds the value a simulated sensor reports.
type Reading struct {
	mu    sync.RWMutex
	value datum.Value
	unit  datum.Unit
}

func NewReading(value datum.Value, unit datum.Unit) *Reading {
	return &Reading{value: value, unit: unit}
}

func (r *Reading) Set(value datum.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = value
}

// Datum timestamps the current value.
func (r *Reading) Datum() datum.Datum {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return datum.NewNow(r.value, r.unit)
}

// Thermostat remembers the commands a simulated actuator received.
type Thermostat struct {
	mu       sync.Mutex
	commands []thermostat.Command
}

func (t *Thermostat) Apply(ctx context.Context, cmd thermostat.Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands = append(t.commands, cmd)
	return nil
}

// Last returns the most recent command, if any.
func (t *Thermostat) Last() (thermostat.Command, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.commands) == 0 {
		return nil, false
	}
	return t.commands[len(t.commands)-1], true
}

func (t *Thermostat) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.commands)
}
