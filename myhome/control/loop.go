// Package control runs the controller cycle: poll every known sensor,
// compare its reading against its range, and command the paired actuator
// when it is out of range.
package control

import (
	"context"
	"errors"
	"time"

	"github.com/asnowfix/homecontrol/myhome/contacts"
	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"
	"github.com/asnowfix/homecontrol/pkg/transport"

	"github.com/go-logr/logr"
	"github.com/sourcegraph/conc/pool"
)

const (
	DEFAULT_INTERVAL time.Duration = 5 * time.Second
	DEFAULT_WORKERS  int           = 8
)

var ErrUnpaired = errors.New("no actuator paired with sensor")

type Transport interface {
	ReadSensor(ctx context.Context, addr devices.Address) (datum.Datum, error)
	CommandActuator(ctx context.Context, addr devices.Address, cmd thermostat.Command) (string, error)
}

type Contacts interface {
	Snapshot(role devices.Role) []contacts.Contact
	Get(id devices.Id, role devices.Role) (devices.Address, bool)
}

// Outcome is what happened to one sensor during one cycle.
type Outcome struct {
	Id          devices.Id
	Sensor      devices.Address
	Datum       datum.Datum
	ReadErr     error
	Command     thermostat.Command
	Actuator    devices.Address
	Ack         string
	DispatchErr error
}

func (o Outcome) Read() bool {
	return o.ReadErr == nil
}

func (o Outcome) Dispatched() bool {
	return o.Command != nil && o.DispatchErr == nil
}

type Cycle struct {
	Started  time.Time
	Duration time.Duration
	Outcomes []Outcome
}

// Observer is notified after every cycle, once history is updated.
type Observer interface {
	Observe(ctx context.Context, c Cycle)
}

type Config struct {
	Interval time.Duration
	Workers  int
	Rules    Rules
}

type Loop struct {
	log       logr.Logger
	interval  time.Duration
	workers   int
	rules     Rules
	contacts  Contacts
	transport Transport
	history   *History
	observers []Observer
}

func NewLoop(ctx context.Context, cfg Config, c Contacts, t Transport, h *History, observers ...Observer) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DEFAULT_INTERVAL
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DEFAULT_WORKERS
	}
	return &Loop{
		log:       logr.FromContextOrDiscard(ctx).WithName("control"),
		interval:  cfg.Interval,
		workers:   cfg.Workers,
		rules:     cfg.Rules,
		contacts:  c,
		transport: t,
		history:   h,
		observers: observers,
	}
}

func (l *Loop) History() *History {
	return l.history
}

// Run cycles immediately, then once per interval, until ctx is done.
// A cycle in progress is not interrupted: each exchange is bounded by the
// transport timeout.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("Starting control loop", "interval", l.interval, "workers", l.workers, "default_range", l.rules.Default.String())
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			l.log.Info("Stopping control loop")
			return ctx.Err()
		}
		l.Cycle(ctx)

		select {
		case <-ctx.Done():
			l.log.Info("Stopping control loop")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle polls a snapshot of the sensors with at most Workers exchanges in
// flight, then records every reading in history, with the command only when
// the actuator acknowledged it.
func (l *Loop) Cycle(ctx context.Context) []Outcome {
	started := time.Now()
	sensors := l.contacts.Snapshot(devices.Sensor)
	outcomes := make([]Outcome, len(sensors))

	p := pool.New().WithMaxGoroutines(l.workers)
	for i, c := range sensors {
		p.Go(func() {
			outcomes[i] = l.process(ctx, c)
		})
	}
	p.Wait()

	for _, o := range outcomes {
		if !o.Read() {
			continue
		}
		var delivered thermostat.Command
		if o.Dispatched() {
			delivered = o.Command
		}
		l.history.Record(o.Id, o.Datum, delivered)
	}

	cycle := Cycle{Started: started, Duration: time.Since(started), Outcomes: outcomes}
	l.log.V(1).Info("Cycle done", "sensors", len(sensors), "duration", cycle.Duration)
	for _, obs := range l.observers {
		obs.Observe(ctx, cycle)
	}
	return outcomes
}

func (l *Loop) process(ctx context.Context, c contacts.Contact) Outcome {
	log := l.log.WithValues("id", c.Id, "role", devices.Sensor, "address", c.Address.String())
	o := Outcome{Id: c.Id, Sensor: c.Address}

	d, err := l.transport.ReadSensor(ctx, c.Address)
	if err != nil {
		log.Error(err, "Unable to read sensor", "kind", ErrorKind(err))
		o.ReadErr = err
		return o
	}
	o.Datum = d
	log.V(1).Info("Read", "datum", d.String())

	cmd, out := l.rules.Decide(c.Id, d)
	if !out {
		return o
	}
	o.Command = cmd

	addr, ok := l.contacts.Get(c.Id, devices.Actuator)
	if !ok {
		log.Info("Reading out of range but no paired actuator", "datum", d.String(), "range", l.rules.For(c.Id).String())
		o.DispatchErr = ErrUnpaired
		return o
	}
	o.Actuator = addr

	log = log.WithValues("actuator", addr.String(), "command", cmd.String())
	ack, err := l.transport.CommandActuator(ctx, addr, cmd)
	if err != nil {
		log.Error(err, "Unable to command actuator", "role", devices.Actuator, "kind", ErrorKind(err))
		o.DispatchErr = err
		return o
	}
	o.Ack = transport.LastLine(ack)
	log.Info("Dispatched", "datum", d.String(), "ack", o.Ack)
	return o
}

// ErrorKind classifies errors for logs and metrics labels.
func ErrorKind(err error) string {
	var ce *transport.ConnectionError
	var ioe *transport.IoError
	var pe *datum.ParseError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnpaired):
		return "unpaired"
	case errors.As(err, &ce):
		return "connection"
	case errors.As(err, &ioe):
		return "io"
	case errors.As(err, &pe):
		return "parse"
	default:
		return "other"
	}
}
