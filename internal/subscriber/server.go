// Package subscriber implements the subscriber side's per-publisher
// connection handling and the client composition root that owns the
// notification center and every configured publisher connection.
package subscriber

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/guillermofarina/lognotify/internal/notify"
	"github.com/guillermofarina/lognotify/internal/wire"
	"github.com/guillermofarina/lognotify/pkg/logging"
)

// Server is a single remote publisher: an address/port pair, optionally
// backed by a live connection and its receive goroutine. The zero value
// (disconnected, no connection) is ready to use.
type Server struct {
	Address string
	Port    string

	mu     sync.Mutex
	conn   net.Conn
	done   chan struct{}
	logger *logging.Logger
}

// NewServer creates a Server for the given address/port, not yet
// connected.
func NewServer(address, port string, logger *logging.Logger) *Server {
	return &Server{Address: address, Port: port, logger: logger}
}

// Connect dials the publisher and, on success, starts a receive goroutine
// that deframes events from the connection and hands each to center,
// tagging it with this server's address/port. If already connected, the
// existing connection is torn down first.
func (s *Server) Connect(ctx context.Context, center *notify.Center) error {
	s.Disconnect()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(s.Address, s.Port))
	if err != nil {
		return errors.Wrapf(err, "unable to connect to %s/%s", s.Address, s.Port)
	}

	s.mu.Lock()
	s.conn = conn
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.receive(conn, center, done)
	return nil
}

// receive deserializes events from conn until the connection fails, handing
// each to center; this is the per-publisher receive thread from the
// reference implementation, but deframing is delegated entirely to
// internal/wire.Decoder instead of hand-rolling the partial-recv loop.
func (s *Server) receive(conn net.Conn, center *notify.Center, done chan struct{}) {
	defer close(done)
	defer conn.Close()

	decoder := wire.NewDecoder(conn)
	for {
		event, err := decoder.Decode()
		if err != nil {
			s.logger.Debugf("connection to %s/%s ended: %v", s.Address, s.Port, err)
			return
		}

		center.Notify(notify.Event{
			Name:          event.Name,
			Location:      event.Location,
			Description:   event.Description,
			SenderAddress: s.Address,
			SenderPort:    s.Port,
		})
	}
}

// Disconnect closes the current connection, if any. The receive goroutine
// notices the failed read and exits on its own; Disconnect doesn't wait
// for it (use Wait for that).
func (s *Server) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Wait blocks until the receive goroutine for the current (or most recent)
// connection has exited.
func (s *Server) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
