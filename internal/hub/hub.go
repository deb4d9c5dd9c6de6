// Package hub implements the publisher's fan-out hub: a thread-safe
// subscriber registry that accepts new TCP connections in parallel with
// lossless, non-blocking-per-peer delivery of a single serialized event to
// every current subscriber, pruning those whose send fails.
//
// The original implementation gave each Subscriber a per-send
// std::async/std::future<bool> task, reaping the pending future list on
// every subsequent send. Per the design's guidance on asynchronous fan-out,
// this is replaced here with one long-lived sender goroutine per
// Subscriber reading from a bounded channel: the contract (no
// head-of-line blocking across subscribers, eviction on first observed
// failure) is unchanged, but there's no future list to reap.
package hub

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/guillermofarina/lognotify/pkg/logging"
)

// sendQueueCapacity bounds how many outstanding messages a single
// subscriber's sender goroutine may have queued before it's considered too
// slow to keep up and is evicted; this is what stands in for the original's
// unbounded future list while still guaranteeing the broadcasting thread
// never blocks on a single peer.
const sendQueueCapacity = 64

// Subscriber is a single remote TCP connection: it owns the socket, an
// outbound queue, and tracks whether any send to it has failed.
type Subscriber struct {
	// Trace is a random identifier assigned at accept time, used only to
	// correlate log lines for this subscriber's lifetime; it is never used
	// for lookup or removal, which stays purely positional (see Table).
	Trace uuid.UUID

	conn   net.Conn
	queue  chan []byte
	failed int32 // accessed atomically; 0 = healthy, 1 = doomed

	logger *logging.Logger
}

// newSubscriber wraps conn and starts its sender goroutine.
func newSubscriber(conn net.Conn, logger *logging.Logger) *Subscriber {
	s := &Subscriber{
		Trace:  uuid.New(),
		conn:   conn,
		queue:  make(chan []byte, sendQueueCapacity),
		logger: logger,
	}
	go s.run()
	return s
}

// run is the subscriber's long-lived sender goroutine: it writes every
// queued message to the socket in order until the queue is closed or a
// write fails, at which point it marks the subscriber doomed and keeps
// draining (without writing) so that Send never blocks on a queue nobody's
// reading.
func (s *Subscriber) run() {
	for message := range s.queue {
		if atomic.LoadInt32(&s.failed) == 1 {
			continue
		}
		if _, err := s.conn.Write(message); err != nil {
			atomic.StoreInt32(&s.failed, 1)
			s.logger.Debugf("send to subscriber %s failed: %v", s.Trace, err)
		}
	}
}

// Failed reports whether any send to this subscriber has failed.
func (s *Subscriber) Failed() bool {
	return atomic.LoadInt32(&s.failed) == 1
}

// Send enqueues message for asynchronous delivery. It returns false (and
// marks the subscriber doomed) if a previous send already failed, or if the
// send queue is full — a full queue means this peer can't keep up with the
// broadcast rate, which the design treats the same as a dead connection so
// that one slow peer never delays delivery to the rest of the table.
func (s *Subscriber) Send(message []byte) bool {
	if atomic.LoadInt32(&s.failed) == 1 {
		return false
	}
	select {
	case s.queue <- message:
		return true
	default:
		atomic.StoreInt32(&s.failed, 1)
		return false
	}
}

// Close terminates the connection and stops the sender goroutine.
func (s *Subscriber) Close() {
	s.conn.Close()
	close(s.queue)
}

// Table is a thread-safe registry of Subscribers, supporting add, remove,
// unicast/broadcast send, and prune-on-failure. A single exclusive mutex
// protects the slice; ids are positions in it and are volatile across
// removals, which use swap-with-last-then-pop.
type Table struct {
	mu          sync.Mutex
	subscribers []*Subscriber
	logger      *logging.Logger
}

// New creates an empty subscriber table.
func New(logger *logging.Logger) *Table {
	return &Table{logger: logger}
}

// Add registers conn as a new Subscriber and returns its id. The id equals
// the subscriber's position at the time of the call; it is volatile and
// must not be retained across any call to Remove.
func (t *Table) Add(conn net.Conn) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(conn)
}

func (t *Table) addLocked(conn net.Conn) int {
	subscriber := newSubscriber(conn, t.logger)
	t.subscribers = append(t.subscribers, subscriber)
	return len(t.subscribers) - 1
}

// Remove closes the socket for the subscriber at id and evicts it via
// swap-with-last-then-pop.
func (t *Table) Remove(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(id)
}

// removeLocked implements Remove; the caller must hold t.mu.
func (t *Table) removeLocked(id int) {
	if id < 0 || id >= len(t.subscribers) {
		return
	}
	t.subscribers[id].Close()

	last := len(t.subscribers) - 1
	t.subscribers[id] = t.subscribers[last]
	t.subscribers[last] = nil
	t.subscribers = t.subscribers[:last]
}

// RemoveAll closes every socket and empties the table.
func (t *Table) RemoveAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, subscriber := range t.subscribers {
		subscriber.Close()
	}
	t.subscribers = nil
}

// Count returns the number of currently registered subscribers.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

// Send delivers message to a single subscriber, evicting it on failure. It
// returns whether delivery was accepted.
func (t *Table) Send(message []byte, id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id < 0 || id >= len(t.subscribers) {
		return false
	}

	ok := t.subscribers[id].Send(message)
	if !ok {
		t.removeLocked(id)
	}
	return ok
}

// Broadcast delivers message to every current subscriber. Per-subscriber
// failures cause eviction but never abort the broadcast; it returns true if
// at least one subscriber accepted the message.
func (t *Table) Broadcast(message []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	delivered := false
	for i := len(t.subscribers) - 1; i >= 0; i-- {
		if t.subscribers[i].Send(message) {
			delivered = true
		} else {
			t.removeLocked(i)
		}
	}
	return delivered
}
