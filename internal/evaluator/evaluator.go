// Package evaluator runs a command list. It walks the list job by job,
// short-circuits conditional pipelines, launches each pipeline through the
// external package, hands the terminal to foreground jobs while it waits
// for them and registers background jobs with the reaper.
package evaluator

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"Jobsh/internal/builtin"
	"Jobsh/internal/command"
	"Jobsh/internal/external"
	"Jobsh/internal/jobctl"
	"Jobsh/internal/reaper"
	"Jobsh/internal/redirect"
)

// StatusListError is the status of a list that could not be evaluated.
const StatusListError = 2

// exitName is the builtin that ends the shell. The evaluator handles it
// itself because it stops the rest of the list.
const exitName = "exit"

// Terminal transfers foreground ownership between the shell and a job.
type Terminal interface {
	Enabled() bool
	FD() int
	Foreground(pgid int) error
	Restore() error
}

// Options configure an Evaluator. Zero values are usable: the shell's own
// streams, no terminal control, no builtins, a silent reaper.
type Options struct {
	Streams  redirect.Streams
	Terminal Terminal
	Reaper   *reaper.Reaper
	Builtins *builtin.Set
	Notices  io.Writer // "[n] pgid" on background launch
	Logger   *slog.Logger

	// Interactive shells leave the terminal as the stdin of background
	// jobs. Otherwise background jobs read /dev/null unless redirected.
	Interactive bool
}

// Evaluator runs command lists one at a time.
type Evaluator struct {
	streams  redirect.Streams
	term     Terminal
	reaper   *reaper.Reaper
	builtins *builtin.Set
	notices  io.Writer
	logger   *slog.Logger

	interactive bool
	launched    func(*external.Group) // called for every launched group

	status   int
	exiting  bool
	exitCode int
}

// New returns an Evaluator for opts.
func New(opts Options) *Evaluator {

	e := &Evaluator{
		streams:  opts.Streams,
		term:     opts.Terminal,
		reaper:   opts.Reaper,
		builtins: opts.Builtins,
		notices:  opts.Notices,
		logger:   opts.Logger,

		interactive: opts.Interactive,
	}

	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	for i, std := range redirect.Std() {
		if e.streams[i] == nil {
			e.streams[i] = std
		}
	}
	if e.term == nil {
		e.term = jobctl.New(nil, e.logger)
	}
	if e.reaper == nil {
		e.reaper = reaper.New(nil, e.logger)
	}

	return e

}

// Status returns the status of the last evaluated job.
func (e *Evaluator) Status() int {
	return e.status
}

// Exited reports whether exit ran, and the status it asked the shell to
// exit with.
func (e *Evaluator) Exited() (int, bool) {
	return e.exitCode, e.exiting
}

// Evaluate runs every job of list exactly once, left to right, and returns
// the status of the last one. A malformed list is reported and runs nothing.
// Once exit has run, the rest of the list is skipped.
func (e *Evaluator) Evaluate(list *command.List) int {

	jobs, err := list.Jobs()
	if err != nil {
		e.report(err)
		e.status = StatusListError
		return e.status
	}

	for _, job := range jobs {
		if e.exiting {
			break
		}
		switch {
		case job.Background && len(job.Pipelines) > 1:
			e.deferJob(job)
			e.status = 0
		case job.Background:
			e.runJob(job, true)
			e.status = 0
		default:
			e.status = e.runJob(job, false)
		}
	}

	return e.status

}

// runJob runs the pipelines of one job in order, skipping those whose
// conditional operator is not satisfied by the status handed down to them.
// A spawn failure abandons the rest of the job.
func (e *Evaluator) runJob(job command.Job, background bool) int {

	status := e.status

	for _, pipeline := range job.Pipelines {

		if e.exiting {
			return e.exitCode
		}

		pipeline.First().Status = status

		if skip(pipeline.Cond, status) {
			e.logger.Debug("pipeline skipped", "cmd", pipeline.String(), "cond", pipeline.Cond.String(), "status", status)
			continue
		}

		var err error
		status, err = e.runPipeline(pipeline, background)
		if err != nil {
			e.report(err)
			return status
		}

	}

	return status

}

// skip reports whether a pipeline introduced by cond must not run given the
// status of the previous pipeline.
func skip(cond command.Operator, status int) bool {
	switch cond {
	case command.OpAnd:
		return status != 0
	case command.OpOr:
		return status == 0
	default:
		return false
	}
}

// runPipeline launches one pipeline and either waits for it or hands it to
// the reaper.
func (e *Evaluator) runPipeline(pipeline command.Pipeline, background bool) (int, error) {

	if !background && len(pipeline.Stages) == 1 {
		switch name := pipeline.First().Name(); {
		case name == exitName:
			return e.exit(pipeline.Stages[0]), nil
		case e.builtins.Has(name):
			return e.runBuiltin(pipeline.Stages[0]), nil
		}
	}

	foreground := !background && e.term.Enabled()

	streams := e.streams
	if background && !e.interactive {
		devNull, err := os.Open(os.DevNull)
		if err != nil {
			return 1, fmt.Errorf("evaluator: %w", err)
		}
		defer devNull.Close()
		streams[redirect.Stdin] = devNull
	}

	group, err := external.Launch(pipeline.Stages, external.Options{
		Streams:    streams,
		Foreground: foreground,
		TTY:        e.term.FD(),
		Logger:     e.logger,
	})
	if err != nil {
		// Stages started before the failure may have taken the terminal.
		if foreground {
			e.restore()
		}
		if group != nil && len(group.Pending()) > 0 {
			e.reaper.Track(group, pipeline.String())
		}
		return 1, err
	}

	if e.launched != nil {
		e.launched(group)
	}

	if background {
		// Every stage already failed and reported why; nothing to track.
		if len(group.PIDs()) == 0 {
			return 0, nil
		}
		job := e.reaper.Track(group, pipeline.String())
		e.notify("[%d] %d\n", job.ID, group.PGID)
		return 0, nil
	}

	return e.wait(group, pipeline), nil

}

// wait hands the terminal to the group, blocks until every stage has
// terminated and takes the terminal back.
func (e *Evaluator) wait(group *external.Group, pipeline command.Pipeline) int {

	if err := e.term.Foreground(group.PGID); err != nil {
		e.logger.Warn("foreground transfer failed", "pgid", group.PGID, "err", err)
	}

	status, err := group.Wait()
	if err != nil {
		e.logger.Warn("wait failed", "pgid", group.PGID, "err", err)
		e.reaper.Track(group, pipeline.String())
	}

	e.restore()

	e.logger.Debug("pipeline finished", "cmd", pipeline.String(), "status", status)

	return status

}

// restore takes the terminal back for the shell.
func (e *Evaluator) restore() {
	if err := e.term.Restore(); err != nil {
		e.logger.Warn("terminal restore failed", "err", err)
	}
}

// exit stops evaluation. A bare exit keeps the status handed down to it.
func (e *Evaluator) exit(stage command.Stage) int {

	code := stage.Node.Status
	args := stage.Node.Args[1:]

	switch {
	case len(args) > 1:
		fmt.Fprintf(e.streams[redirect.Stderr], "jobsh: exit: too many arguments\n")
		return 1
	case len(args) == 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(e.streams[redirect.Stderr], "jobsh: exit: %s: numeric argument required\n", args[0])
			n = StatusListError
		}
		code = n
	}

	e.exiting = true
	e.exitCode = code

	return code

}

// runBuiltin runs a builtin inside the shell with the stage's redirections
// applied to its streams.
func (e *Evaluator) runBuiltin(stage command.Stage) int {

	streams := e.streams

	opened, err := redirect.ApplyAll(&streams, stage.Redirects)
	if err != nil {
		fmt.Fprintf(streams[redirect.Stderr], "jobsh: %v\n", err)
		return external.StatusRedirectFailed
	}
	defer redirect.Close(opened...)

	return e.builtins.Execute(stage.Node.Args, streams[redirect.Stdout], streams[redirect.Stderr])

}

// deferJob starts a background job that has more than one pipeline. Its
// later pipelines depend on the status of earlier ones, so it cannot be
// launched up front; a goroutine runs it the way a forked subshell would,
// waiting only on its own processes, and the reaper collects its status.
func (e *Evaluator) deferJob(job command.Job) {

	sub := &Evaluator{
		streams: e.streams,
		term:    jobctl.New(nil, e.logger),
		reaper:  e.reaper,
		logger:  e.logger.With("job", job.String()),
		status:  e.status,
	}

	var devNull *os.File
	if !e.interactive {
		f, err := os.Open(os.DevNull)
		if err != nil {
			e.report(fmt.Errorf("evaluator: %w", err))
			return
		}
		devNull = f
		sub.streams[redirect.Stdin] = devNull
	}

	done := make(chan int, 1)
	tracked := e.reaper.Defer(job.String(), done)

	// kill %n reaches whichever pipeline of the job is running.
	sub.launched = func(g *external.Group) {
		e.reaper.Attach(tracked, g.PGID)
	}

	go func() {
		status := sub.runJob(job, false)
		if devNull != nil {
			devNull.Close()
		}
		done <- status
	}()

	e.notify("[%d]\n", tracked.ID)

}

func (e *Evaluator) notify(format string, args ...any) {
	if e.notices != nil {
		fmt.Fprintf(e.notices, format, args...)
	}
}

func (e *Evaluator) report(err error) {
	fmt.Fprintf(e.streams[redirect.Stderr], "jobsh: %v\n", err)
}
