package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
)

// serveOnce accepts a single connection and hands it to handle.
func serveOnce(t *testing.T, handle func(net.Conn)) devices.Address {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	addr, err := devices.ParseAddress(l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func unusedAddress(t *testing.T) devices.Address {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr, _ := devices.ParseAddress(l.Addr().String())
	l.Close()
	return addr
}

func TestReadSensor(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	want := datum.New(datum.Float(150), datum.DegreesC, ts)

	received := make(chan *Request, 1)
	addr := serveOnce(t, func(conn net.Conn) {
		req, err := ReadRequest(bufio.NewReader(conn))
		if err != nil {
			t.Errorf("ReadRequest: %v", err)
			return
		}
		received <- req
		io.WriteString(conn, datum.Encode(want)+"\n")
	})

	got, err := NewClient(time.Second).ReadSensor(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	req := <-received
	if req.Method != "GET" || req.Target != "/" || len(req.Body) != 0 {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestReadSensorFramedResponse(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	want := datum.NewNow(datum.Int(3), datum.Unitless)
	addr := serveOnce(t, func(conn net.Conn) {
		ReadRequest(bufio.NewReader(conn))
		conn.Write(Response("200 OK", []byte(datum.Encode(want))))
		// keep the connection open: the reader must stop at Content-Length
		time.Sleep(500 * time.Millisecond)
	})

	start := time.Now()
	got, err := NewClient(5*time.Second).ReadSensor(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Errorf("response read did not stop at Content-Length")
	}
}

func TestCommandActuator(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	received := make(chan *Request, 1)
	addr := serveOnce(t, func(conn net.Conn) {
		req, err := ReadRequest(bufio.NewReader(conn))
		if err != nil {
			t.Errorf("ReadRequest: %v", err)
			return
		}
		received <- req
		conn.Write(Response("200 OK", []byte("OK")))
	})

	ack, err := NewClient(time.Second).CommandActuator(ctx, addr, thermostat.CoolTo(100))
	if err != nil {
		t.Fatal(err)
	}
	if Body(ack) != "OK" {
		t.Errorf("ack = %q", ack)
	}

	req := <-received
	if req.Method != "POST" {
		t.Errorf("method = %q", req.Method)
	}
	if req.Header("Content-Type") != ContentTypeJSON {
		t.Errorf("content type = %q", req.Header("Content-Type"))
	}
	cmd, err := thermostat.Unmarshal(req.Body)
	if err != nil {
		t.Fatal(err)
	}
	if cmd != thermostat.CoolTo(100) {
		t.Errorf("command = %v", cmd)
	}
}

func TestConnectionError(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	_, err := NewClient(time.Second).ReadSensor(ctx, unusedAddress(t))
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConnectionError, got %v", err)
	}
}

func TestIoErrorOnShortBody(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	addr := serveOnce(t, func(conn net.Conn) {
		ReadRequest(bufio.NewReader(conn))
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort")
	})
	_, err := NewClient(time.Second).Send(ctx, addr, []byte(SensorRequest))
	var ioe *IoError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected *IoError, got %v", err)
	}
	if ioe.Op != "read" {
		t.Errorf("op = %q", ioe.Op)
	}
}

func TestOversizedBodyIsIoError(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	addr := serveOnce(t, func(conn net.Conn) {
		ReadRequest(bufio.NewReader(conn))
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 9223372036854775807\r\n\r\n42@°C@2024-03-01T12:00:00Z")
	})
	_, err := NewClient(time.Second).ReadSensor(ctx, addr)
	var ioe *IoError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected *IoError, got %v", err)
	}
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestReadResponseBoundedWithoutLength(t *testing.T) {
	_, err := ReadResponse(strings.NewReader(strings.Repeat("x", MAX_RESPONSE+10)))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestReadRequestRejectsOversizedBody(t *testing.T) {
	raw := "POST HTTP/1.1\r\nContent-Length: 9223372036854775807\r\n\r\n{}"
	_, err := ReadRequest(bufio.NewReader(strings.NewReader(raw)))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestDecodeErrorIsParseError(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	addr := serveOnce(t, func(conn net.Conn) {
		ReadRequest(bufio.NewReader(conn))
		io.WriteString(conn, "not a datum")
	})
	_, err := NewClient(time.Second).ReadSensor(ctx, addr)
	var pe *datum.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *datum.ParseError, got %v", err)
	}
}

func TestReadResponseUntilClose(t *testing.T) {
	in := "line one\n\nline two\nlast"
	got, err := ReadResponse(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if got != in {
		t.Errorf("got %q", got)
	}
	if LastLine(got) != "last" {
		t.Errorf("last line = %q", LastLine(got))
	}
}

func TestReadRequestActuatorFraming(t *testing.T) {
	raw := ActuatorRequest(ContentTypeJSON, []byte(`{"HeatTo":18}`))
	if !strings.HasPrefix(string(raw), "POST HTTP/1.1\r\nContent-Type: application/json\r\nContent-Length: 13\r\n\r\n") {
		t.Errorf("unexpected framing %q", raw)
	}
	// trailing bytes past Content-Length are not part of the body
	req, err := ReadRequest(bufio.NewReader(strings.NewReader(string(raw) + "garbage")))
	if err != nil {
		t.Fatal(err)
	}
	if string(req.Body) != `{"HeatTo":18}` {
		t.Errorf("body = %q", req.Body)
	}
}

func TestLastLine(t *testing.T) {
	if got := LastLine("HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\nabc\r\n\r\n"); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := LastLine(""); got != "" {
		t.Errorf("got %q", got)
	}
}
