// Package external spawns the processes of a pipeline for the jobsh
// evaluator. It creates the pipe channels between stages, applies each
// stage's redirections, places every stage in one process group and hands
// back the group so the caller can wait on (or defer reaping of) every
// spawned process.
package external

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"Jobsh/internal/command"
	"Jobsh/internal/redirect"
)

// Exit statuses for stages that never ran.
const (
	StatusRedirectFailed = 1
	StatusNotExecutable  = 126
	StatusNotFound       = 127
)

// Options control how a pipeline is launched.
type Options struct {
	// Streams are the shell-side streams: the first stage reads Stdin, the
	// last stage writes Stdout and every stage writes Stderr. Nil slots
	// fall back to the shell's own streams.
	Streams redirect.Streams

	// Foreground asks every child to claim the terminal TTY for its process
	// group before its program runs.
	Foreground bool
	TTY        int

	Logger *slog.Logger
}

// ExecError reports a stage whose program could not be executed.
type ExecError struct {
	Name   string
	Status int
	Err    error
}

func (e *ExecError) Error() string {
	if e.Status == StatusNotFound {
		return fmt.Sprintf("%s: command not found", e.Name)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Proc is one stage of a launched pipeline. PID is command.Unstarted when
// the stage failed before its program could run; Status then holds the
// status the stage would have exited with.
type Proc struct {
	Node   *command.Node
	PID    int
	Status int
	Done   bool
	Err    error
}

// Group is a launched pipeline: one process group holding a process per
// stage.
type Group struct {
	PGID  int
	Procs []*Proc

	logger *slog.Logger
}

type channel struct {
	r, w *os.File
}

// Launch spawns one process per stage. Stage i reads the read end of channel
// i-1 and writes the write end of channel i, then has its redirections
// applied on top. Stages that cannot run are reported on their stderr and
// kept in the group with a preset status, so the caller still accounts for
// every stage. A spawn failure (pipe or process creation) stops the launch
// and returns the stages started so far together with the error.
func Launch(stages []command.Stage, opts Options) (*Group, error) {

	if len(stages) == 0 {
		return nil, errors.New("external: empty pipeline")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	base := opts.Streams
	for i, std := range redirect.Std() {
		if base[i] == nil {
			base[i] = std
		}
	}

	channels := make([]channel, len(stages)-1)
	for i := range channels {
		r, w, err := os.Pipe()
		if err != nil {
			closeChannels(channels[:i])
			return nil, fmt.Errorf("external: failed to create pipe: %w", err)
		}
		channels[i] = channel{r: r, w: w}
	}

	group := &Group{logger: logger}

	var spawnErr error

	for i, stage := range stages {

		streams := base
		if i > 0 {
			streams[redirect.Stdin] = channels[i-1].r
		}
		if i < len(stages)-1 {
			streams[redirect.Stdout] = channels[i].w
		}

		proc := &Proc{Node: stage.Node, PID: command.Unstarted}
		group.Procs = append(group.Procs, proc)

		opened, err := redirect.ApplyAll(&streams, stage.Redirects)
		if err != nil {
			proc.fail(StatusRedirectFailed, err, streams[redirect.Stderr])
			continue
		}

		err = group.start(proc, streams, opts)
		redirect.Close(opened...)

		var execErr *ExecError
		switch {
		case err == nil:
		case errors.As(err, &execErr):
			proc.fail(execErr.Status, err, streams[redirect.Stderr])
		default:
			proc.fail(StatusRedirectFailed, err, nil)
			spawnErr = err
		}

		if spawnErr != nil {
			break
		}

	}

	closeChannels(channels)

	logger.Debug("pipeline launched", "pgid", group.PGID, "pids", group.PIDs())

	return group, spawnErr

}

// start resolves and spawns the program of one stage and records its pid.
func (g *Group) start(proc *Proc, streams redirect.Streams, opts Options) error {

	name := proc.Node.Name()

	path, err := exec.LookPath(name)
	if errors.Is(err, exec.ErrDot) {
		err = nil
	}
	if err != nil {
		return execError(name, err)
	}

	attr := &os.ProcAttr{
		Files: streams[:],
		Sys: &syscall.SysProcAttr{
			Setpgid: true,
			Pgid:    g.PGID,
		},
	}
	if opts.Foreground {
		attr.Sys.Foreground = true
		attr.Sys.Ctty = opts.TTY
	}

	process, err := os.StartProcess(path, proc.Node.Args, attr)
	if err != nil {
		if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.EACCES) ||
			errors.Is(err, syscall.ENOEXEC) || errors.Is(err, syscall.EISDIR) {
			return execError(name, err)
		}
		return fmt.Errorf("external: %s: %w", name, err)
	}

	pid := process.Pid
	_ = process.Release()

	if g.PGID == 0 {
		g.PGID = pid
	}

	// The child joined before exec; repeating it here closes the window in
	// which the coordinator could see a child outside the group.
	if err := unix.Setpgid(pid, g.PGID); err != nil && !errors.Is(err, unix.EACCES) && !errors.Is(err, unix.ESRCH) {
		g.logger.Warn("setpgid failed", "pid", pid, "pgid", g.PGID, "err", err)
	}

	proc.PID = pid
	proc.Node.PID = pid

	return nil

}

// fail marks a stage that never ran and reports why on its stderr.
func (p *Proc) fail(status int, err error, stderr io.Writer) {
	p.Status = status
	p.Done = true
	p.Err = err
	if stderr != nil {
		fmt.Fprintf(stderr, "jobsh: %v\n", err)
	}
}

func execError(name string, err error) *ExecError {
	status := StatusNotFound
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.ENOEXEC) || errors.Is(err, syscall.EISDIR) {
		status = StatusNotExecutable
	}
	return &ExecError{Name: name, Status: status, Err: err}
}

// closeChannels closes both ends of every channel. Once every stage is
// spawned the children own the pipes; the shell must not keep a writer open
// or readers never observe end-of-stream.
func closeChannels(channels []channel) {
	for _, c := range channels {
		redirect.Close(c.r, c.w)
	}
}

// PIDs returns the pids of the stages that were spawned.
func (g *Group) PIDs() []int {
	var pids []int
	for _, p := range g.Procs {
		if p.PID != command.Unstarted {
			pids = append(pids, p.PID)
		}
	}
	return pids
}

// Status returns the status of the last stage, the status of the pipeline.
func (g *Group) Status() int {
	if len(g.Procs) == 0 {
		return 0
	}
	return g.Procs[len(g.Procs)-1].Status
}

// Wait blocks until every spawned stage has terminated and returns the
// pipeline status. Wait failures are collected and returned alongside the
// status; the stages concerned stay pending.
func (g *Group) Wait() (int, error) {

	var errs []error

	for _, p := range g.Procs {
		if p.Done || p.PID == command.Unstarted {
			continue
		}
		status, err := WaitPID(p.PID)
		if err != nil {
			errs = append(errs, fmt.Errorf("external: wait %d: %w", p.PID, err))
			continue
		}
		p.Status = status
		p.Done = true
	}

	return g.Status(), errors.Join(errs...)

}

// Pending returns the stages that were spawned and have not been collected.
func (g *Group) Pending() []*Proc {
	var pending []*Proc
	for _, p := range g.Procs {
		if !p.Done && p.PID != command.Unstarted {
			pending = append(pending, p)
		}
	}
	return pending
}
