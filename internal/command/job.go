package command

import (
	"fmt"
	"strings"
)

// Stage is one executable node of a pipeline together with the redirect
// holders that follow it.
type Stage struct {
	Node      *Node
	Redirects []*Node
}

// Pipeline is a maximal run of stages joined by OpPipe. Cond is the
// conditional operator that linked the previous pipeline to this one, or
// OpNone for the first pipeline of a job.
type Pipeline struct {
	Stages []Stage
	Cond   Operator
}

// First returns the node that receives the inherited status.
func (p Pipeline) First() *Node {
	return p.Stages[0].Node
}

// Nodes returns the executable nodes of the pipeline in order.
func (p Pipeline) Nodes() []*Node {
	nodes := make([]*Node, len(p.Stages))
	for i, s := range p.Stages {
		nodes[i] = s.Node
	}
	return nodes
}

// Job is one or more pipelines chained by OpAnd/OpOr, bounded by
// OpSequence, OpBackground or the end of the list.
type Job struct {
	Pipelines  []Pipeline
	Background bool
}

// ListError reports a malformed command list.
type ListError struct {
	Index int // offending node
	Msg   string
}

func (e *ListError) Error() string {
	return fmt.Sprintf("malformed command list at node %d: %s", e.Index, e.Msg)
}

// Jobs partitions the list into jobs, and each job into pipelines. It
// returns a *ListError when operator placement is not well formed.
func (l *List) Jobs() ([]Job, error) {
	var (
		jobs     []Job
		job      *Job
		pipeline *Pipeline
	)

	for i, n := range l.Nodes {

		if n.IsRedirect() {
			if pipeline == nil || n.Prev != OpRedirect {
				return nil, &ListError{Index: i, Msg: "redirection without a command"}
			}
			if n.Target == "" {
				return nil, &ListError{Index: i, Msg: "redirection without a target"}
			}
			stage := &pipeline.Stages[len(pipeline.Stages)-1]
			stage.Redirects = append(stage.Redirects, n)
		} else {
			if len(n.Args) == 0 {
				return nil, &ListError{Index: i, Msg: "empty command"}
			}
			if job == nil {
				job = &Job{}
			}
			if pipeline == nil {
				pipeline = &Pipeline{}
				if n.Prev.Conditional() && len(job.Pipelines) > 0 {
					pipeline.Cond = n.Prev
				}
			}
			pipeline.Stages = append(pipeline.Stages, Stage{Node: n})
		}

		last := i == len(l.Nodes)-1

		switch n.Next {
		case OpRedirect:
			if last || !l.Nodes[i+1].IsRedirect() {
				return nil, &ListError{Index: i, Msg: "missing redirection target"}
			}
		case OpPipe, OpAnd, OpOr:
			if last || l.Nodes[i+1].IsRedirect() {
				return nil, &ListError{Index: i, Msg: fmt.Sprintf("missing command after %s", n.Next)}
			}
			if n.Next != OpPipe {
				job.Pipelines = append(job.Pipelines, *pipeline)
				pipeline = nil
			}
		default:
			job.Pipelines = append(job.Pipelines, *pipeline)
			job.Background = n.Next == OpBackground
			jobs = append(jobs, *job)
			job, pipeline = nil, nil
		}

	}

	return jobs, nil
}

// String renders the pipeline as it would be typed.
func (p Pipeline) String() string {
	var b strings.Builder
	for i, s := range p.Stages {
		if i > 0 {
			b.WriteString(" | ")
		}
		for j, arg := range s.Node.Args {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(quote(arg))
		}
		for _, r := range s.Redirects {
			b.WriteString(" " + r.Redirect.String() + " " + quote(r.Target))
		}
	}
	return b.String()
}

// String renders the job without its terminating operator.
func (j Job) String() string {
	var b strings.Builder
	for i, p := range j.Pipelines {
		if i > 0 {
			b.WriteString(" " + p.Cond.String() + " ")
		}
		b.WriteString(p.String())
	}
	return b.String()
}
