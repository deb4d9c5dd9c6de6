// Package notify implements the subscriber's notification center: the
// single point through which a received event is filtered, displayed, and
// (optionally) journaled to the session history, with a deliberate lock
// handoff that preserves arrival order across both destinations.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/guillermofarina/lognotify/internal/filter"
	"github.com/guillermofarina/lognotify/internal/history"
	"github.com/guillermofarina/lognotify/pkg/logging"
)

// Event is a single notification-worthy occurrence, combining the fields
// the Filter matches against with the sender details the display and
// history record carry.
type Event struct {
	Name          string
	Location      string
	Description   string
	SenderAddress string
	SenderPort    string
}

// Center processes events: it evaluates the filter, shows admitted events
// on the configured Display, and appends every event (filtered or not) to
// the session history if one is configured.
//
// Notify is safe for concurrent use by multiple receive goroutines (one
// per connected publisher). It holds two separate mutexes — one guarding
// the display, one guarding the history — and deliberately acquires the
// history lock before releasing the display lock. This is not lock
// coupling by accident: it guarantees that if event A's Notify call enters
// before event B's, A's history record is written before B's, even though
// the display and history critical sections don't otherwise overlap. A
// "cleaner" rewrite that released the display lock first would let B's
// history write race ahead of A's.
type Center struct {
	display Display
	filter  *filter.Filter
	history *history.History // nil if session history isn't enabled

	displayMu sync.Mutex
	historyMu sync.Mutex

	showFullPath bool
	appendSender bool
	expiration   time.Duration

	logger *logging.Logger
}

// New creates a Center that shows admitted events on display and filters
// against the given rule set. showFullPath controls whether the
// notification's summary shows the full directory or just the file name;
// appendSender controls whether the sender's address/port are appended to
// the body; expiration requests that the Display dismiss the notification
// after that long (zero meaning the Display's own default).
func New(display Display, ruleSet *filter.Filter, showFullPath, appendSender bool, expiration time.Duration, logger *logging.Logger) *Center {
	return &Center{
		display:      display,
		filter:       ruleSet,
		showFullPath: showFullPath,
		appendSender: appendSender,
		expiration:   expiration,
		logger:       logger,
	}
}

// EnableHistory turns on session history journaling, rotating prior
// session files aside per oldSessions (0 disables rotation: the log is
// just overwritten each session). It must be called before the first
// call to Notify.
func (c *Center) EnableHistory(path string, oldSessions uint) error {
	h := history.New(oldSessions)
	if err := h.Init(path); err != nil {
		return err
	}
	c.history = h
	return nil
}

// Notify processes a single event: filters it, displays it if admitted,
// and journals it to history unconditionally (history records every
// received event regardless of filter outcome, matching the reference
// behavior).
func (c *Center) Notify(event Event) {
	summary := event.Name
	if c.showFullPath {
		summary = event.Location + event.Name
	}
	body := event.Description
	if c.appendSender {
		body = fmt.Sprintf("%s\nFrom: %s/%s", body, event.SenderAddress, event.SenderPort)
	}

	c.displayMu.Lock()

	if c.filter.Evaluate(filterEvent(event)) {
		if !c.display.Show(summary, body, c.expiration) {
			c.logger.Warn(errors.Errorf("failed to display notification for %q", event.Name))
		}
	}

	c.historyMu.Lock()
	c.displayMu.Unlock()

	if c.history != nil {
		if err := c.history.Record(historyEvent(event)); err != nil {
			c.logger.Warn(errors.Wrap(err, "failed to record history entry"))
		}
	}

	c.historyMu.Unlock()
}

func filterEvent(event Event) filter.Event {
	return filter.Event{
		Name:          event.Name,
		SenderAddress: event.SenderAddress,
		Description:   event.Description,
	}
}

func historyEvent(event Event) history.Event {
	return history.Event{
		SenderAddress: event.SenderAddress,
		SenderPort:    event.SenderPort,
		Location:      event.Location,
		Name:          event.Name,
		Description:   event.Description,
	}
}
