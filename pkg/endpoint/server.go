// Package endpoint implements the device side of the wire protocol: a TCP
// listener answering one request per connection, and the DNS-SD announce
// that lets controllers find it.
package endpoint

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/transport"

	"github.com/go-logr/logr"
)

const READ_TIMEOUT time.Duration = 5 * time.Second

// Handler returns the bytes written back before the connection is closed.
type Handler func(ctx context.Context, req *transport.Request) []byte

type Server struct {
	log      logr.Logger
	listener net.Listener
	handler  Handler
	wg       sync.WaitGroup
}

// Listen binds address ("host:port", port 0 picks a free one).
func Listen(ctx context.Context, address string, handler Handler) (*Server, error) {
	log := logr.FromContextOrDiscard(ctx).WithName("endpoint")
	l, err := net.Listen("tcp", address)
	if err != nil {
		log.Error(err, "Unable to listen", "address", address)
		return nil, err
	}
	log.Info("Listening", "address", l.Addr().String())
	return &Server{
		log:      log,
		listener: l,
		handler:  handler,
	}, nil
}

func (s *Server) Address() devices.Address {
	addr, _ := devices.ParseAddress(s.listener.Addr().String())
	return addr
}

func (s *Server) Port() int {
	return s.Address().Port
}

// Serve accepts connections until ctx is done, then waits for in-flight
// exchanges to finish.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	defer s.wg.Wait()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info("Stopped listening", "address", s.listener.Addr().String())
				return nil
			}
			s.log.Error(err, "Accept failed")
			return err
		}
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}(conn)
	}
}

func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := s.log.WithValues("peer", conn.RemoteAddr().String())

	conn.SetDeadline(time.Now().Add(READ_TIMEOUT))
	req, err := transport.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		log.Error(err, "Unable to read request")
		conn.Write(transport.Response("400 Bad Request", []byte(err.Error())))
		return
	}
	log.V(1).Info("Request", "method", req.Method, "body", string(req.Body))

	if _, err := conn.Write(s.handler(logr.NewContext(ctx, log), req)); err != nil {
		log.Error(err, "Unable to write response")
	}
}
