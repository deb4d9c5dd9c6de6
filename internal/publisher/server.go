// Package publisher implements the composition root for the publisher
// side: it wires a file watcher, a connection acceptor, and a subscriber
// table together and drives the main event loop.
package publisher

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/guillermofarina/lognotify/internal/hub"
	"github.com/guillermofarina/lognotify/internal/watch"
	"github.com/guillermofarina/lognotify/internal/wire"
	"github.com/guillermofarina/lognotify/pkg/logging"
)

// Server owns the watcher, the subscriber table, and the connection
// acceptor, and runs the main watch -> serialize -> broadcast loop.
type Server struct {
	watcher  *watch.Watcher
	table    *hub.Table
	acceptor *Acceptor
	logger   *logging.Logger
}

// New creates a Server listening on port, watching logDirectory, and
// tracking every path in files relative to it. Paths that fail to open on
// the first attempt are retried once more after the rest have been added,
// to survive transient unavailability (e.g. a file not yet created by a
// slow-starting application). Individual files that still can't be watched
// are only logged; New fails if not a single file could ultimately be
// watched, or if the watcher or the listener can't be set up.
func New(port int, logDirectory string, files []string, logger *logging.Logger) (*Server, error) {
	watcher, err := watch.New(logDirectory)
	if err != nil {
		return nil, errors.Wrap(err, "unable to start file watcher")
	}

	var failed []string
	for _, file := range files {
		if err := watcher.Add(file); err != nil {
			logger.Warn(errors.Wrapf(err, "unable to watch %q, will retry", file))
			failed = append(failed, file)
		}
	}
	for _, file := range failed {
		if err := watcher.Add(file); err != nil {
			logger.Warn(errors.Wrapf(err, "unable to watch %q", file))
		}
	}
	if watcher.Count() == 0 {
		watcher.Close()
		return nil, errors.New("no files could be watched")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, "unable to listen")
	}

	table := hub.New(logger.Sublogger("hub"))
	acceptor := NewAcceptor(listener, table, logger.Sublogger("acceptor"))

	return &Server{
		watcher:  watcher,
		table:    table,
		acceptor: acceptor,
		logger:   logger,
	}, nil
}

// Serve starts accepting connections and runs the main event loop until
// ctx is canceled or the watcher reports a terminal error. Every watcher
// event is serialized once and broadcast to the current subscriber table;
// per-subscriber failures are handled inside the table and never stop the
// loop.
func (s *Server) Serve(ctx context.Context) error {
	s.acceptor.Serve(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-s.watcher.Events():
			if !ok {
				return nil
			}
			s.table.Broadcast(wire.Marshal(event))
		case err := <-s.watcher.Errors():
			return errors.Wrap(err, "file watcher failed")
		}
	}
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.acceptor.Addr()
}

// Close releases the watcher and every subscriber connection.
func (s *Server) Close() error {
	s.table.RemoveAll()
	return s.watcher.Close()
}
