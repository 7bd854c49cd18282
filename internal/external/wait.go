package external

import (
	"errors"

	"golang.org/x/sys/unix"
)

// StatusOf converts a wait status to a shell status: the exit code for a
// normal exit, 128+signal for a process killed by a signal.
func StatusOf(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return 1
	}
}

// WaitPID blocks until pid terminates and returns its status.
func WaitPID(pid int) (int, error) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return StatusOf(ws), nil
	}
}

// TryWait collects pid if it has terminated, without blocking. done is
// false while the process is still running.
func TryWait(pid int) (status int, done bool, err error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, false, err
		}
		if wpid == 0 {
			return 0, false, nil
		}
		return StatusOf(ws), true, nil
	}
}

// WaitOrStop blocks until pid terminates or stops. A stopped process stays
// uncollected and is reported with stopped set.
func WaitOrStop(pid int) (status int, stopped bool, err error) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, false, err
		}
		if ws.Stopped() {
			return 0, true, nil
		}
		return StatusOf(ws), false, nil
	}
}
