package lognotify

import "os"

// DebugEnabled controls whether or not debug-level logging is enabled across
// both binaries. It's set automatically based on the LOGNOTIFY_DEBUG
// environment variable.
var DebugEnabled bool

func init() {
	DebugEnabled = os.Getenv("LOGNOTIFY_DEBUG") == "1"
}
