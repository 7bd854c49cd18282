// Package redirect rebinds the standard streams of a pipeline stage to files
// named by redirect holder nodes. It runs in the shell before the stage is
// spawned: the opened file takes the place of the stream in the table handed
// to the new process, and the caller closes its own copy once the process
// has started.
package redirect

import (
	"fmt"
	"os"

	"Jobsh/internal/command"
)

// Standard stream slots.
const (
	Stdin = iota
	Stdout
	Stderr
)

// Streams is the descriptor table a stage is spawned with.
type Streams [3]*os.File

// Std returns the shell's own standard streams.
func Std() Streams {
	return Streams{os.Stdin, os.Stdout, os.Stderr}
}

// Error reports a target that could not be opened.
type Error struct {
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Target, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Apply opens the target of the redirect holder node and installs it in the
// matching slot of streams. The returned file must be closed by the caller
// after the stage has been spawned. On failure streams is left unchanged.
func Apply(streams *Streams, node *command.Node) (*os.File, error) {

	slot, flags := -1, 0

	switch node.Redirect {
	case command.StdinFromFile:
		slot, flags = Stdin, os.O_RDONLY
	case command.StdoutToFile:
		slot, flags = Stdout, os.O_WRONLY|os.O_CREATE|os.O_TRUNC
	case command.StderrToFile:
		slot, flags = Stderr, os.O_WRONLY|os.O_CREATE|os.O_TRUNC
	default:
		return nil, fmt.Errorf("redirect: node has no redirection")
	}

	file, err := os.OpenFile(node.Target, flags, 0666)
	if err != nil {
		return nil, &Error{Target: node.Target, Err: unwrapPath(err)}
	}

	streams[slot] = file

	return file, nil

}

// ApplyAll applies every redirect of a stage in order. Either all of them
// are installed in streams, or none are: files opened before a failure are
// closed and streams is left unchanged.
func ApplyAll(streams *Streams, redirects []*command.Node) ([]*os.File, error) {

	var opened []*os.File
	work := *streams

	for _, node := range redirects {
		file, err := Apply(&work, node)
		if err != nil {
			Close(opened...)
			return nil, err
		}
		opened = append(opened, file)
	}

	*streams = work

	return opened, nil

}

// Close closes every file that is not one of the shell's standard streams.
func Close(files ...*os.File) {
	for _, file := range files {
		if file != nil && file != os.Stdin && file != os.Stdout && file != os.Stderr {
			_ = file.Close()
		}
	}
}

// unwrapPath drops the *os.PathError wrapper so the message names the
// target once.
func unwrapPath(err error) error {
	if pathErr, ok := err.(*os.PathError); ok {
		return pathErr.Err
	}
	return err
}
