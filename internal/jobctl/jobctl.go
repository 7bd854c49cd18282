// Package jobctl hands terminal foreground ownership between the shell and
// the jobs it runs synchronously.
package jobctl

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal is the controlling terminal of the shell. A Terminal built on a
// file that is not a terminal is disabled and every call is a no-op.
type Terminal struct {
	fd        int
	shellPGID int
	enabled   bool
	logger    *slog.Logger
}

// New prepares tty for job control. When tty is a terminal the shell ignores
// SIGTTOU, so that taking the terminal back from a finished job does not
// suspend it, and moves itself into the foreground.
func New(tty *os.File, logger *slog.Logger) *Terminal {

	t := open(tty, logger)
	if !t.enabled {
		return t
	}

	signal.Ignore(syscall.SIGTTOU)

	if err := t.Restore(); err != nil {
		t.logger.Warn("could not claim the terminal", "err", err)
	}

	return t

}

// Attach enables job control on tty only if the shell already owns the
// terminal foreground. Non-interactive sessions use it: a shell started in
// the background must not take the terminal away from its parent.
func Attach(tty *os.File, logger *slog.Logger) *Terminal {

	t := open(tty, logger)
	if !t.enabled {
		return t
	}

	fg, err := unix.IoctlGetInt(t.fd, unix.TIOCGPGRP)
	if err != nil || fg != t.shellPGID {
		t.logger.Debug("shell is not in the terminal foreground", "fg", fg, "pgid", t.shellPGID, "err", err)
		return &Terminal{fd: -1, logger: t.logger}
	}

	signal.Ignore(syscall.SIGTTOU)

	return t

}

// open returns an enabled Terminal when tty is a terminal, a disabled one
// otherwise.
func open(tty *os.File, logger *slog.Logger) *Terminal {

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	t := &Terminal{fd: -1, logger: logger}
	if tty == nil || !term.IsTerminal(int(tty.Fd())) {
		return t
	}

	t.fd = int(tty.Fd())
	t.enabled = true
	t.shellPGID = unix.Getpgrp()

	return t

}

// Controlling returns the terminal the shell runs on: stdin when it is a
// terminal, otherwise the process's controlling terminal when it has one.
// It returns nil when there is none; the caller owns a returned /dev/tty.
func Controlling() *os.File {

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return os.Stdin
	}

	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil
	}

	return tty

}

// Enabled reports whether foreground transfers reach a real terminal.
func (t *Terminal) Enabled() bool {
	return t.enabled
}

// FD returns the terminal descriptor, or -1 when disabled.
func (t *Terminal) FD() int {
	return t.fd
}

// ShellPGID returns the process group the terminal is restored to.
func (t *Terminal) ShellPGID() int {
	return t.shellPGID
}

// Foreground makes pgid the foreground process group of the terminal.
func (t *Terminal) Foreground(pgid int) error {

	if !t.enabled || pgid <= 0 {
		return nil
	}

	if err := unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid); err != nil {
		// The group may already be gone when a short job exits before the
		// transfer; there is nothing left to hand the terminal to.
		if errors.Is(err, unix.ESRCH) || errors.Is(err, unix.EPERM) {
			t.logger.Debug("foreground group vanished", "pgid", pgid, "err", err)
			return nil
		}
		return fmt.Errorf("jobctl: foreground %d: %w", pgid, err)
	}

	t.logger.Debug("terminal transferred", "pgid", pgid)

	return nil

}

// Restore gives the terminal back to the shell.
func (t *Terminal) Restore() error {
	return t.Foreground(t.shellPGID)
}
