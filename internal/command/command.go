// Package command defines the command list consumed by the jobsh evaluator.
// A List is an owned, ordered sequence of Nodes built once per input line by
// the tokenizer. Each Node records the operator that links it to the next
// node, the operator that linked the previous node to it, and the status
// handed down from the previous pipeline run.
package command

import (
	"fmt"
	"strings"
)

// Unstarted is the PID of a node that has not been spawned, or whose process
// has already been collected.
const Unstarted = -1

// Operator tags how a node connects to its neighbour.
type Operator int

const (
	OpNone Operator = iota
	OpPipe
	OpAnd
	OpOr
	OpSequence
	OpBackground
	OpRedirect
)

var operatorText = map[Operator]string{
	OpNone:       "",
	OpPipe:       "|",
	OpAnd:        "&&",
	OpOr:         "||",
	OpSequence:   ";",
	OpBackground: "&",
	OpRedirect:   "redirect",
}

func (op Operator) String() string {
	if s, ok := operatorText[op]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// Conditional reports whether op chains pipelines inside one job.
func (op Operator) Conditional() bool {
	return op == OpAnd || op == OpOr
}

// Terminates reports whether op ends a job.
func (op Operator) Terminates() bool {
	return op == OpNone || op == OpSequence || op == OpBackground
}

// RedirectKind selects the standard stream a redirect holder rebinds.
type RedirectKind int

const (
	RedirectNone RedirectKind = iota
	StdinFromFile
	StdoutToFile
	StderrToFile
)

func (k RedirectKind) String() string {
	switch k {
	case StdinFromFile:
		return "<"
	case StdoutToFile:
		return ">"
	case StderrToFile:
		return "2>"
	default:
		return ""
	}
}

// Node is a single unit of the command list. Executable nodes carry Args;
// redirect holders carry Redirect and Target and are never spawned.
type Node struct {
	Args     []string     // argument vector, empty for redirect holders
	PID      int          // spawned process, Unstarted before launch
	Next     Operator     // operator linking this node to the next one
	Prev     Operator     // operator linking the previous node to this one
	Redirect RedirectKind // set on redirect holders only
	Target   string       // redirect path, set iff Redirect is set
	Status   int          // status inherited from the previous pipeline run
}

// NewNode returns an executable node for args.
func NewNode(args ...string) *Node {
	return &Node{Args: args, PID: Unstarted}
}

// IsRedirect reports whether n only holds a redirection target.
func (n *Node) IsRedirect() bool {
	return n.Redirect != RedirectNone
}

// Name returns the program name, or "" for redirect holders.
func (n *Node) Name() string {
	if len(n.Args) == 0 {
		return ""
	}
	return n.Args[0]
}

// List is the parsed form of one input line.
type List struct {
	Nodes []*Node
}

// Len returns the number of nodes, redirect holders included.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Nodes)
}

// Last returns the final node or nil for an empty list.
func (l *List) Last() *Node {
	if l.Len() == 0 {
		return nil
	}
	return l.Nodes[len(l.Nodes)-1]
}

// Append adds an executable node. The previous node's Next operator becomes
// the new node's Prev operator.
func (l *List) Append(args ...string) *Node {
	n := NewNode(args...)
	l.push(n)
	return n
}

// AddRedirect links the last node to a new redirect holder.
func (l *List) AddRedirect(kind RedirectKind, target string) *Node {
	if last := l.Last(); last != nil {
		last.Next = OpRedirect
	}
	n := &Node{PID: Unstarted, Redirect: kind, Target: target}
	l.push(n)
	return n
}

// Link sets the operator following the last node.
func (l *List) Link(op Operator) {
	if last := l.Last(); last != nil {
		last.Next = op
	}
}

func (l *List) push(n *Node) {
	if last := l.Last(); last != nil {
		n.Prev = last.Next
	}
	l.Nodes = append(l.Nodes, n)
}

// String renders the list as a canonical command line.
func (l *List) String() string {
	var b strings.Builder
	for i, n := range l.Nodes {
		if i > 0 {
			b.WriteByte(' ')
		}
		if n.IsRedirect() {
			b.WriteString(n.Redirect.String())
			b.WriteByte(' ')
			b.WriteString(quote(n.Target))
		} else {
			for j, arg := range n.Args {
				if j > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(quote(arg))
			}
		}
		if n.Next != OpNone && n.Next != OpRedirect {
			b.WriteByte(' ')
			b.WriteString(n.Next.String())
		}
	}
	return b.String()
}

// quote wraps s in single quotes when it would not survive word splitting.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\|&;<>$`*?") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
