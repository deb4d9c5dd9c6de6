// Package history implements the subscriber's rotating session log: every
// displayed (or suppressed — see internal/notify) event is appended to a
// per-session text file, with a bounded number of prior sessions preserved
// under numbered suffixes.
package history

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
)

// DefaultOldSessions is the default number of prior session files
// preserved; the subscriber uses it as the default of its -s flag.
const DefaultOldSessions = 5

// timestampLayout matches the reference session log's "YYYY-MM-DD
// HH:MM:SS" timestamp column.
const timestampLayout = "2006-01-02 15:04:05"

// Event is a single record destined for the session log.
type Event struct {
	SenderAddress string
	SenderPort    string
	Location      string
	Name          string
	Description   string
}

// History writes a session log, rotating old sessions aside on Init.
type History struct {
	path        string
	oldSessions uint
}

// New creates a History that will retain oldSessions prior session files.
// A value of 0 disables rotation: each new session simply overwrites the
// last one.
func New(oldSessions uint) *History {
	return &History{oldSessions: oldSessions}
}

// Init rotates any existing session files aside and creates a fresh, empty
// log at path for the current session.
func (h *History) Init(path string) error {
	if h.oldSessions > 0 {
		if err := rotate(path, h.oldSessions); err != nil {
			return errors.Wrap(err, "unable to rotate prior session logs")
		}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "unable to create session log")
	}
	file.Close()

	h.path = path
	return nil
}

// Record appends event to the session log, timestamped with the current
// time. Each record is two lines: a header (timestamp, sender, source
// path) followed by the event description, with a blank line separating
// records.
func (h *History) Record(event Event) error {
	file, err := os.OpenFile(h.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "unable to open session log")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "%s\t%s/%s\t%s%s\n",
		time.Now().Format(timestampLayout),
		event.SenderAddress, event.SenderPort,
		event.Location, event.Name)
	fmt.Fprintf(writer, "%s\n\n", event.Description)

	if err := writer.Flush(); err != nil {
		return errors.Wrap(err, "unable to write session log record")
	}
	return nil
}

// rotate preserves up to oldSessions prior session files under path.1,
// path.2, ... path.N (most recent first), deleting whatever previously
// occupied path.N before cascading every other numbered file up by one and
// finally renaming the just-ended session (plain path) to path.1.
func rotate(path string, oldSessions uint) error {
	oldest := fmt.Sprintf("%s.%d", path, oldSessions)
	if _, err := os.Stat(oldest); err == nil {
		if err := os.Remove(oldest); err != nil {
			return err
		}
	}

	for i := oldSessions - 1; i > 0; i-- {
		src := fmt.Sprintf("%s.%d", path, i)
		dst := fmt.Sprintf("%s.%d", path, i+1)
		if _, err := os.Stat(src); err == nil {
			if err := os.Rename(src, dst); err != nil {
				return err
			}
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".1"); err != nil {
			return err
		}
	}
	return nil
}
