package logging

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

func init() {
	// fatih/color already disables itself when NO_COLOR is set or when its
	// target isn't a character device, but log output always goes through
	// the standard log package to stderr (see logging.go), which color
	// doesn't inspect on its own. Gate coloring explicitly on whether
	// stderr is actually a terminal.
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
}
