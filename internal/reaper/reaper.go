// Package reaper collects the processes of background jobs. The shell calls
// ReapAvailable once per input line; it never blocks, so a background job is
// reclaimed on the first line after it terminates. Drain is called once at
// end of input so no child outlives the shell unreaped.
package reaper

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"

	"Jobsh/internal/command"
	"Jobsh/internal/external"
)

// Job is a background job awaiting collection.
type Job struct {
	ID      int
	Command string
	PGID    int

	procs    []*external.Proc
	deferred <-chan int
	status   int
	finished bool
}

// PIDs returns the pids of the job's processes that are still uncollected.
func (j *Job) PIDs() []int {
	var pids []int
	for _, p := range j.procs {
		if !p.Done && p.PID != command.Unstarted {
			pids = append(pids, p.PID)
		}
	}
	return pids
}

// Reaper tracks background jobs until their processes are collected.
type Reaper struct {
	mu      sync.Mutex
	jobs    []*Job
	nextID  int
	notices io.Writer
	logger  *slog.Logger
}

// New returns a Reaper that reports finished jobs on notices. A nil notices
// writer silences the reports.
func New(notices io.Writer, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reaper{nextID: 1, notices: notices, logger: logger}
}

// Track registers the processes of a launched background pipeline.
func (r *Reaper) Track(group *external.Group, cmd string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.add(cmd)
	job.PGID = group.PGID
	job.procs = group.Procs
	job.status = group.Status()

	return job
}

// Defer registers a background job that waits on its own processes and
// delivers its final status on done.
func (r *Reaper) Defer(cmd string, done <-chan int) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.add(cmd)
	job.deferred = done

	return job
}

// Attach records pgid as the process group of job. Deferred jobs call it for
// each pipeline they launch so job specs reach the running pipeline.
func (r *Reaper) Attach(job *Job, pgid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.PGID = pgid
}

func (r *Reaper) add(cmd string) *Job {
	job := &Job{ID: r.nextID, Command: cmd}
	r.nextID++
	r.jobs = append(r.jobs, job)
	r.logger.Debug("background job registered", "job", job.ID, "cmd", cmd)
	return job
}

// ReapAvailable collects every tracked process that has terminated, without
// blocking, and reports the jobs that finished. It returns the number of
// finished jobs and is a no-op when nothing is pending.
func (r *Reaper) ReapAvailable() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		r.poll(job)
	}

	return r.sweep()
}

// Drain blocks until every tracked job has finished and been collected.
// Deferred jobs may register more processes while they run, so Drain keeps
// going until nothing is left.
func (r *Reaper) Drain() {

	for {

		r.mu.Lock()
		jobs := append([]*Job(nil), r.jobs...)
		r.mu.Unlock()

		if len(jobs) == 0 {
			return
		}

		// Deferred jobs report through the reaper; wait for them unlocked.
		for _, job := range jobs {
			if job.deferred != nil && !job.finished {
				status := <-job.deferred
				r.mu.Lock()
				job.status = status
				job.finished = true
				r.mu.Unlock()
			}
		}

		r.mu.Lock()
		for _, job := range r.jobs {
			for _, p := range job.procs {
				if p.Done || p.PID == command.Unstarted {
					continue
				}
				status, err := r.waitStopped(job, p)
				if err != nil && !errors.Is(err, unix.ECHILD) {
					r.logger.Warn("giving up on process", "pid", p.PID, "err", err)
					p.Done = true
					continue
				}
				r.collect(p, status, err)
			}
		}
		r.sweep()
		r.mu.Unlock()

	}

}

// hangUps are sent in turn to a job that stops instead of terminating,
// each followed by SIGCONT so it is delivered.
var hangUps = []unix.Signal{unix.SIGHUP, unix.SIGKILL}

// waitStopped waits for p to terminate. A stopped job (one that read the
// terminal from the background, say) would never terminate on its own; it
// is hung up the way a shell does with stopped jobs when it exits.
func (r *Reaper) waitStopped(job *Job, p *external.Proc) (int, error) {

	for _, sig := range hangUps {

		status, stopped, err := external.WaitOrStop(p.PID)
		if !stopped {
			return status, err
		}

		target := p.PID
		if job.PGID > 0 {
			target = -job.PGID
		}
		r.logger.Info("hanging up stopped job", "job", job.ID, "pid", p.PID, "signal", sig)
		_ = unix.Kill(target, sig)
		_ = unix.Kill(target, unix.SIGCONT)

	}

	return external.WaitPID(p.PID)

}

// poll collects what is available for one job.
func (r *Reaper) poll(job *Job) {

	for _, p := range job.procs {
		if p.Done || p.PID == command.Unstarted {
			continue
		}
		status, done, err := external.TryWait(p.PID)
		if !done && err == nil {
			continue
		}
		r.collect(p, status, err)
	}

	if job.deferred != nil && !job.finished {
		select {
		case status := <-job.deferred:
			job.status = status
			job.finished = true
		default:
		}
	}

}

// collect records the status of a terminated process and clears its pid
// bookkeeping on the command node.
func (r *Reaper) collect(p *external.Proc, status int, err error) {
	if err != nil {
		// ECHILD: somebody else already collected it. Nothing is left to reap.
		if !errors.Is(err, unix.ECHILD) {
			r.logger.Warn("wait failed", "pid", p.PID, "err", err)
			return
		}
		r.logger.Debug("process already collected", "pid", p.PID)
	}
	r.logger.Debug("reaped", "pid", p.PID, "status", status)
	p.Status = status
	p.Done = true
	p.PID = command.Unstarted
	if p.Node != nil {
		p.Node.PID = command.Unstarted
	}
}

// sweep removes finished jobs and reports them. Callers hold r.mu.
func (r *Reaper) sweep() int {

	live := r.jobs[:0]
	finished := 0

	for _, job := range r.jobs {
		if job.deferred == nil && len(job.PIDs()) == 0 {
			job.finished = true
			if n := len(job.procs); n > 0 {
				job.status = job.procs[n-1].Status
			}
		}
		if !job.finished {
			live = append(live, job)
			continue
		}
		finished++
		r.notify(job)
	}

	for i := len(live); i < len(r.jobs); i++ {
		r.jobs[i] = nil
	}
	r.jobs = live

	return finished

}

func (r *Reaper) notify(job *Job) {
	r.logger.Debug("background job finished", "job", job.ID, "status", job.status)
	if r.notices == nil {
		return
	}
	state := "Done"
	if job.status != 0 {
		state = fmt.Sprintf("Exit %d", job.status)
	}
	fmt.Fprintf(r.notices, "[%d]+  %-8s %s\n", job.ID, state, job.Command)
}

// Jobs returns the jobs that are still running, in launch order.
func (r *Reaper) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		snapshot := *job
		snapshot.procs = append([]*external.Proc(nil), job.procs...)
		jobs = append(jobs, snapshot)
	}
	return jobs
}

// Pending returns the number of jobs not yet collected.
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
