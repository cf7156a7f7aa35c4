package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"

	"github.com/go-logr/logr"
)

const DEFAULT_TIMEOUT time.Duration = 5 * time.Second

// ConnectionError means the device could not be reached at all.
type ConnectionError struct {
	Address devices.Address
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %v: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IoError means the device was reached but the exchange failed.
type IoError struct {
	Address devices.Address
	Op      string
	Err     error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s %v: %v", e.Op, e.Address, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// Client performs one request per connection. It never retries: retry
// policy belongs to the caller.
type Client struct {
	dialer  net.Dialer
	timeout time.Duration
}

// NewClient returns a client bounding each exchange (connect, write, read)
// to timeout; 0 means no bound.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		dialer:  net.Dialer{Timeout: timeout},
		timeout: timeout,
	}
}

// Send connects to addr, writes request, and returns the full response.
// ctx only aborts the connection attempt: once connected, the exchange is
// bounded by the client timeout rather than interrupted.
func (c *Client) Send(ctx context.Context, addr devices.Address, request []byte) (string, error) {
	log := logr.FromContextOrDiscard(ctx)
	log.V(1).Info("Connecting", "address", addr.String())

	conn, err := c.dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return "", &ConnectionError{Address: addr, Err: err}
	}
	defer conn.Close()

	if c.timeout > 0 {
		conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if _, err := conn.Write(request); err != nil {
		return "", &IoError{Address: addr, Op: "write", Err: err}
	}
	// Signal end-of-request to devices that read until EOF.
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	response, err := ReadResponse(conn)
	if err != nil {
		return "", &IoError{Address: addr, Op: "read", Err: err}
	}
	log.V(1).Info("Received", "address", addr.String(), "response", response)
	return response, nil
}

// ReadSensor asks a sensor for its latest Datum.
func (c *Client) ReadSensor(ctx context.Context, addr devices.Address) (datum.Datum, error) {
	response, err := c.Send(ctx, addr, []byte(SensorRequest))
	if err != nil {
		return datum.Datum{}, err
	}
	return datum.Decode(LastLine(response))
}

// CommandActuator sends cmd as JSON and returns the (opaque) acknowledgement.
func (c *Client) CommandActuator(ctx context.Context, addr devices.Address, cmd thermostat.Command) (string, error) {
	body, err := thermostat.Marshal(cmd)
	if err != nil {
		return "", err
	}
	return c.Send(ctx, addr, ActuatorRequest(ContentTypeJSON, body))
}
