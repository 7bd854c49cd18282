// Package parser turns a raw command line into a command.List. It
// recognises the control operators (|, &&, ||, ;, &) and the redirections
// (<, >, 2>) outside of quotes, and splits the text between operators into
// words with POSIX quoting rules. Variables, globs and here-documents are
// left alone: words reach the command exactly as quoted.
package parser

import (
	"fmt"
	"strings"

	shlex "github.com/anmitsu/go-shlex"

	"Jobsh/internal/command"
)

// SyntaxError reports an operator in a position the grammar does not allow.
type SyntaxError struct {
	Token string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return "syntax error: unexpected end of line"
	}
	return fmt.Sprintf("syntax error near unexpected token `%s'", e.Token)
}

// item is either a raw text segment or an operator.
type item struct {
	op   string
	text string
}

var controls = map[string]command.Operator{
	"|":  command.OpPipe,
	"&&": command.OpAnd,
	"||": command.OpOr,
	";":  command.OpSequence,
	"&":  command.OpBackground,
}

var redirections = map[string]command.RedirectKind{
	"<":  command.StdinFromFile,
	">":  command.StdoutToFile,
	"2>": command.StderrToFile,
}

// Parse converts line into a command list. An empty or blank line yields
// an empty list.
func Parse(line string) (*command.List, error) {

	items, err := scan(line)
	if err != nil {
		return nil, err
	}

	list := &command.List{}

	var (
		owner       *command.Node        // command the next redirect modifies
		pending     command.RedirectKind // redirect waiting for its target
		open        bool                 // last node not yet followed by a control operator
		needCommand bool                 // last control operator requires a command after it
	)

	for _, it := range items {

		if it.op == "" {

			words, err := shlex.Split(it.text, true)
			if err != nil {
				return nil, fmt.Errorf("parse: %w", err)
			}

			switch {
			case pending != command.RedirectNone:
				if len(words) == 0 {
					return nil, &SyntaxError{Token: pending.String()}
				}
				list.AddRedirect(pending, words[0])
				owner.Args = append(owner.Args, words[1:]...)
				pending = command.RedirectNone
				open = true
			case len(words) > 0:
				owner = list.Append(words...)
				open, needCommand = true, false
			}

			continue

		}

		if kind, ok := redirections[it.op]; ok {
			if owner == nil || pending != command.RedirectNone {
				return nil, &SyntaxError{Token: it.op}
			}
			pending = kind
			continue
		}

		if pending != command.RedirectNone {
			return nil, &SyntaxError{Token: it.op}
		}

		op := controls[it.op]

		if !open {
			// A stray ';' after a finished job is tolerated: "sleep 1 & ; echo done".
			last := list.Last()
			if op == command.OpSequence && last != nil && !needCommand &&
				(last.Next == command.OpSequence || last.Next == command.OpBackground) {
				continue
			}
			return nil, &SyntaxError{Token: it.op}
		}

		list.Link(op)
		owner = nil
		open = false
		needCommand = op == command.OpPipe || op.Conditional()

	}

	if pending != command.RedirectNone || needCommand {
		return nil, &SyntaxError{}
	}

	return list, nil

}

// scan splits line into text segments and operators. Operators inside
// single or double quotes, or escaped with a backslash, stay part of the
// text.
func scan(line string) ([]item, error) {

	var items []item
	var text strings.Builder
	var single, double bool

	flush := func() {
		items = append(items, item{text: text.String()})
		text.Reset()
	}

	for i := 0; i < len(line); i++ {

		c := line[i]

		switch {
		case single:
			if c == '\'' {
				single = false
			}
			text.WriteByte(c)
			continue
		case c == '\\' && i+1 < len(line):
			text.WriteByte(c)
			text.WriteByte(line[i+1])
			i++
			continue
		case double:
			if c == '"' {
				double = false
			}
			text.WriteByte(c)
			continue
		case c == '\'':
			single = true
			text.WriteByte(c)
			continue
		case c == '"':
			double = true
			text.WriteByte(c)
			continue
		}

		op := operatorAt(line, i, text.String())
		if op == "" {
			text.WriteByte(c)
			continue
		}
		if op == ">>" {
			return nil, fmt.Errorf("parse: %s: unsupported redirection", op)
		}

		flush()
		items = append(items, item{op: op})
		i += len(op) - 1

	}

	if single || double {
		return nil, fmt.Errorf("parse: unterminated quote")
	}

	flush()

	return items, nil

}

// operatorAt returns the operator starting at line[i], if any. before is
// the text scanned since the previous operator; "2>" is an operator only
// at the start of a word.
func operatorAt(line string, i int, before string) string {

	rest := line[i:]

	for _, op := range []string{"&&", "||", ">>"} {
		if strings.HasPrefix(rest, op) {
			return op
		}
	}

	if strings.HasPrefix(rest, "2>") {
		if before == "" || strings.ContainsAny(before[len(before)-1:], " \t") {
			return "2>"
		}
		return ""
	}

	switch rest[0] {
	case '|', '&', ';', '<', '>':
		return rest[:1]
	}

	return ""

}
