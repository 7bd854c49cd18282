// Package builtin implements the commands jobsh runs inside the shell
// process instead of spawning: cd, pwd, kill and jobs. A builtin only runs
// in-process when it forms a foreground pipeline on its own; anywhere else
// its name is looked up on PATH like any other program.
package builtin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"

	"Jobsh/internal/reaper"
)

// Set dispatches builtin commands. The reaper backs jobs and job specs
// (%n) given to kill.
type Set struct {
	reaper *reaper.Reaper
	names  map[string]struct{}
}

// New returns the builtin set. r may be nil, in which case jobs lists
// nothing and kill accepts only pids.
func New(r *reaper.Reaper) *Set {
	return &Set{
		reaper: r,
		names: map[string]struct{}{
			"cd":   {},
			"pwd":  {},
			"kill": {},
			"jobs": {},
		},
	}
}

// Has reports whether name is a builtin.
func (s *Set) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[name]
	return ok
}

// Names returns the builtin names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the builtin named by command[0], writing its output to
// stdout and any failure to stderr. It returns the command's exit status.
func (s *Set) Execute(command []string, stdout, stderr io.Writer) int {

	var err error

	switch command[0] {
	case "cd":
		err = changeDirectory(command)
	case "pwd":
		err = printWorkingDirectory(stdout)
	case "kill":
		err = s.kill(command)
	case "jobs":
		err = s.jobs(stdout)
	default:
		err = fmt.Errorf("jobsh: %s: not a builtin", command[0])
	}

	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	return 0

}

// changeDirectory changes the current working directory according to the
// arguments in the command slice. Returns an error for too many arguments
// or when the target path does not exist or is not a directory.
func changeDirectory(command []string) error {

	var dir string

	switch {
	case len(command) == 1 || command[1] == "~":
		dir = os.Getenv("HOME")
	case len(command) > 2:
		return fmt.Errorf("jobsh: cd: too many arguments")
	default:
		dir = command[1]
	}

	if err := os.Chdir(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("jobsh: cd: %s: No such file or directory", dir)
		}
		return fmt.Errorf("jobsh: cd: %w", err)
	}

	return nil

}

// printWorkingDirectory writes the current working directory path to the
// provided writer.
func printWorkingDirectory(writer io.Writer) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("jobsh: pwd: failed to get absolute path name: %w", err)
	}
	if _, err := fmt.Fprintln(writer, dir); err != nil {
		return fmt.Errorf("jobsh: pwd: write operation failed: %w", err)
	}
	return nil
}

// kill sends a signal (SIGTERM unless -N is given) to each pid or job spec.
// A job spec %n signals the whole process group of background job n.
func (s *Set) kill(command []string) error {

	args := command[1:]
	sig := syscall.SIGTERM

	if len(args) > 0 && strings.HasPrefix(args[0], "-") {
		n, err := strconv.Atoi(args[0][1:])
		if err != nil || n <= 0 {
			return fmt.Errorf("jobsh: kill: %s: invalid signal specification", args[0])
		}
		sig = syscall.Signal(n)
		args = args[1:]
	}

	if len(args) == 0 {
		return fmt.Errorf("jobsh: kill: usage: kill [-signum] pid | %%job ...")
	}

	for _, arg := range args {
		target, err := s.resolve(arg)
		if err != nil {
			return err
		}
		if err := unix.Kill(target, sig); err != nil {
			return fmt.Errorf("jobsh: kill: (%s) - %w", arg, err)
		}
	}

	return nil

}

// resolve maps a pid or %job argument to a kill(2) target. Jobs resolve to
// their negated process group.
func (s *Set) resolve(arg string) (int, error) {

	if !strings.HasPrefix(arg, "%") {
		pid, err := strconv.Atoi(arg)
		if err != nil {
			return 0, fmt.Errorf("jobsh: kill: %s: arguments must be process or job IDs", arg)
		}
		return pid, nil
	}

	id, err := strconv.Atoi(arg[1:])
	if err == nil && s.reaper != nil {
		for _, job := range s.reaper.Jobs() {
			if job.ID == id && job.PGID > 0 {
				return -job.PGID, nil
			}
		}
	}

	return 0, fmt.Errorf("jobsh: kill: %s: no such job", arg)

}

// jobs lists the background jobs that have not been collected yet, with the
// executable each of their processes is currently running.
func (s *Set) jobs(writer io.Writer) error {

	if s.reaper == nil {
		return nil
	}

	for _, job := range s.reaper.Jobs() {

		var running []string
		for _, pid := range job.PIDs() {
			running = append(running, processName(pid))
		}

		line := fmt.Sprintf("[%d]  Running  %s", job.ID, job.Command)
		if len(running) > 0 {
			line += fmt.Sprintf("  (%s)", strings.Join(running, ", "))
		}

		if _, err := fmt.Fprintln(writer, line); err != nil {
			return fmt.Errorf("jobsh: jobs: write operation failed: %w", err)
		}

	}

	return nil

}

// processName returns "pid:executable", or just the pid when the process
// table has no entry for it.
func processName(pid int) string {
	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return strconv.Itoa(pid)
	}
	return fmt.Sprintf("%d:%s", pid, process.Executable())
}
