package watch

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/asnowfix/homecontrol/pkg/devices"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
)

// Browser streams resolved DNS-SD records into records, closing it when
// browsing stops.
type Browser interface {
	BrowseService(ctx context.Context, service, domain string, records chan<- devices.Record) error
}

// HostResolver is used, when the Browser also implements it, to complete
// records that came without any IP address.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]net.IP, error)
}

type Registry interface {
	Upsert(id devices.Id, role devices.Role, addr devices.Address) bool
}

type State int32

const (
	Idle State = iota
	Browsing
	Committing
	Stopped
)

var stateNames = []string{"idle", "browsing", "committing", "stopped"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// DiscoveryError means the browsing backend could not be started at all.
type DiscoveryError struct {
	Role    devices.Role
	Service string
	Err     error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery of %v devices (%s) failed: %v", e.Role, e.Service, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Record outcomes, as reported to the WithRecordHook callback.
const (
	RESULT_UPSERTED   = "upserted"
	RESULT_UNCHANGED  = "unchanged"
	RESULT_MALFORMED  = "malformed"
	RESULT_UNRESOLVED = "unresolved"
)

const (
	RESTART_INITIAL_INTERVAL time.Duration = 500 * time.Millisecond
	RESTART_MAX_INTERVAL     time.Duration = time.Minute
)

// Agent keeps one role's half of the registry up to date for as long as
// it runs.
type Agent struct {
	log      logr.Logger
	role     devices.Role
	domain   string
	browser  Browser
	registry Registry
	state    atomic.Int32
	backOff  *backoff.ExponentialBackOff
	onRecord func(role devices.Role, result string)
}

type Option func(*Agent)

// WithRestartBackOff bounds the delay between two browse restarts.
func WithRestartBackOff(initial, max time.Duration) Option {
	return func(a *Agent) {
		a.backOff.InitialInterval = initial
		a.backOff.MaxInterval = max
	}
}

// WithRecordHook calls f for every record browsed, with its outcome.
func WithRecordHook(f func(role devices.Role, result string)) Option {
	return func(a *Agent) {
		a.onRecord = f
	}
}

func NewAgent(ctx context.Context, role devices.Role, domain string, browser Browser, registry Registry, opts ...Option) *Agent {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RESTART_INITIAL_INTERVAL
	b.MaxInterval = RESTART_MAX_INTERVAL

	a := &Agent{
		log:      logr.FromContextOrDiscard(ctx).WithName("watch." + role.String()),
		role:     role,
		domain:   domain,
		browser:  browser,
		registry: registry,
		backOff:  b,
		onRecord: func(devices.Role, string) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.backOff.Reset()
	return a
}

func (a *Agent) Role() devices.Role {
	return a.role
}

func (a *Agent) State() State {
	return State(a.state.Load())
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
}

// Run browses until ctx is done, restarting the browser whenever its
// stream closes. It only returns early, with a *DiscoveryError, when the
// backend cannot be started.
func (a *Agent) Run(ctx context.Context) error {
	defer a.setState(Stopped)
	service := a.role.Service()
	ctx = logr.NewContext(ctx, a.log)

	for {
		records := make(chan devices.Record, 8)
		a.setState(Browsing)
		if err := a.browser.BrowseService(ctx, service, a.domain, records); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Error(err, "Failed to start browser", "service", service, "domain", a.domain)
			return &DiscoveryError{Role: a.role, Service: service, Err: err}
		}
		a.log.Info("(Re)Started browser", "service", service, "domain", a.domain)

		if a.consume(ctx, records) > 0 {
			a.backOff.Reset()
		}
		if ctx.Err() != nil {
			a.log.Info("Stopped browsing", "service", service)
			return ctx.Err()
		}

		delay := a.backOff.NextBackOff()
		a.log.Info("Browser stream closed: restarting", "service", service, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// consume commits records until the stream closes or ctx is done, and
// returns how many it received.
func (a *Agent) consume(ctx context.Context, records <-chan devices.Record) int {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return n
		case r, ok := <-records:
			if !ok {
				return n
			}
			n++
			a.setState(Committing)
			a.onRecord(a.role, a.commit(ctx, r))
			a.setState(Browsing)
		}
	}
}

func (a *Agent) commit(ctx context.Context, r devices.Record) string {
	log := a.log.WithValues("fullname", r.FullName)
	log.V(1).Info("Browsed", "record", r.String())

	id, err := devices.ParseId(r.FullName)
	if err != nil {
		log.Error(err, "Skipping malformed advertisement")
		return RESULT_MALFORMED
	}

	if len(r.IPs) == 0 && len(r.HostName) != 0 {
		r = a.complete(ctx, r)
	}

	addr, err := devices.AddressOf(r)
	if err != nil {
		log.Error(err, "Skipping unresolvable advertisement", "id", id)
		return RESULT_UNRESOLVED
	}

	if a.registry.Upsert(id, a.role, addr) {
		return RESULT_UPSERTED
	}
	return RESULT_UNCHANGED
}

func (a *Agent) complete(ctx context.Context, r devices.Record) devices.Record {
	hr, ok := a.browser.(HostResolver)
	if !ok {
		return r
	}
	ips, err := hr.LookupHost(ctx, r.HostName)
	if err != nil || len(ips) == 0 {
		a.log.Info("No IP in record, using host name", "hostname", r.HostName, "error", err)
		return r
	}
	a.log.V(1).Info("Resolved", "hostname", r.HostName, "ips", ips)
	r.IPs = ips
	return r
}
