package configuration

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
)

// daemonizeEnvVar marks a re-exec'd child as already detached, so it
// doesn't try to daemonize itself again.
const daemonizeEnvVar = "LOGNOTIFY_DAEMONIZED"

// Daemonize detaches the current process from its controlling terminal and
// re-executes it as a background process in a new session.
//
// A running Go process can't safely fork(2) without an immediate exec(2):
// the runtime's goroutine scheduler and background threads make a bare
// fork unsafe (only the calling thread survives into the child, leaving
// the rest of the runtime's state inconsistent). The idiomatic substitute
// is to re-exec the same binary with the same arguments, Setsid set on the
// child's process attributes and daemonizeEnvVar set in its environment
// (so that the child's own call to Daemonize finishes detaching instead of
// re-executing again), then have the parent exit — this preserves the
// observable contract (detached from the terminal, new session, standard
// streams closed) without relying on fork() semantics the runtime doesn't
// support.
//
// On success Daemonize returns only in the child process, after it has
// become the new session leader with its standard streams redirected to
// /dev/null; the parent process exits directly from within this call. The
// parent returns only with an error, when the child could not be started.
func Daemonize(args []string) error {
	if os.Getenv(daemonizeEnvVar) == "1" {
		return finishDetaching()
	}

	executable, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "unable to determine executable path")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "unable to open /dev/null")
	}
	defer devNull.Close()

	cmd := exec.Command(executable, args...)
	cmd.Env = append(os.Environ(), daemonizeEnvVar+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.Dir = "/"
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "unable to start detached process")
	}

	os.Exit(0)
	return nil // unreachable
}

// finishDetaching completes the child side of the daemonization sequence:
// it changes into the root directory and redirects its own standard
// streams to /dev/null, mirroring the umask/chdir/close sequence of a
// traditional double-fork daemon.
func finishDetaching() error {
	syscall.Umask(0)

	if err := os.Chdir("/"); err != nil {
		return errors.Wrap(err, "unable to change to root directory")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "unable to open /dev/null")
	}
	defer devNull.Close()

	os.Stdin.Close()
	os.Stdout.Close()
	os.Stderr.Close()
	syscall.Dup2(int(devNull.Fd()), syscall.Stdin)
	syscall.Dup2(int(devNull.Fd()), syscall.Stdout)
	syscall.Dup2(int(devNull.Fd()), syscall.Stderr)

	return nil
}
