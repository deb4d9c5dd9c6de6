package publisher

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/guillermofarina/lognotify/internal/hub"
	"github.com/guillermofarina/lognotify/pkg/logging"
)

// Acceptor runs the server's accept loop on its own goroutine so that
// waiting for new connections never blocks the main event-broadcast loop.
//
// The original spawns a detached thread holding a weak_ptr to the client
// table and upgrades it on every accepted connection, terminating the loop
// the moment the upgrade fails (i.e. the owner has gone away). Go has no
// direct weak-pointer equivalent, but the same "stop when the owner says
// so" lifetime is exactly what context.Context models: Acceptor takes a
// ctx whose cancellation is the upgrade-failure signal.
type Acceptor struct {
	listener net.Listener
	table    *hub.Table
	logger   *logging.Logger
}

// NewAcceptor creates an Acceptor that registers every accepted connection
// on table.
func NewAcceptor(listener net.Listener, table *hub.Table, logger *logging.Logger) *Acceptor {
	return &Acceptor{listener: listener, table: table, logger: logger}
}

// Addr returns the listener's bound address, useful when the server was
// started on port 0 to have the kernel pick one.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Serve starts the accept loop in a new goroutine and returns immediately,
// mirroring the original's detached accepting thread. The loop exits when
// ctx is canceled (which also closes the listener, unblocking Accept) or
// when Accept fails for any other reason.
func (a *Acceptor) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		a.listener.Close()
	}()

	go a.run(ctx)
}

func (a *Acceptor) run(ctx context.Context) {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			a.logger.Warn(errors.Wrap(err, "accept failed"))
			return
		}

		select {
		case <-ctx.Done():
			conn.Close()
			return
		default:
		}

		a.table.Add(conn)
	}
}
