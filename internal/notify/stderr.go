package notify

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// StderrDisplay is the default Display: it prints each notification to an
// underlying writer (ordinarily os.Stderr) with the summary highlighted,
// which is the closest substitute for a desktop pop-up when running
// headless or without a D-Bus session.
type StderrDisplay struct {
	writer  io.Writer
	summary *color.Color
}

// NewStderrDisplay creates a StderrDisplay writing to w.
func NewStderrDisplay(w io.Writer) *StderrDisplay {
	return &StderrDisplay{
		writer:  w,
		summary: color.New(color.Bold),
	}
}

// Show implements Display.Show. It always succeeds (a write error to
// stderr isn't actionable here), matching the simplicity of the reference
// fallback path. expiration is ignored: a terminal line has no concept of
// auto-dismissal.
func (d *StderrDisplay) Show(summary, body string, expiration time.Duration) bool {
	d.summary.Fprintln(d.writer, summary)
	fmt.Fprintln(d.writer, body)
	fmt.Fprintln(d.writer)
	return true
}
