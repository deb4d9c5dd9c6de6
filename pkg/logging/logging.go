package logging

import (
	"log"
	"os"
)

func init() {
	// Daemonized publishers and subscribers have no stdout worth writing to
	// (it's usually /dev/null); route all log output to standard error so it
	// survives redirection to a log file by the invoking service manager.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime)
}
