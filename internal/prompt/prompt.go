// Package prompt builds the interactive shell prompt: the current working
// directory (the user's home abbreviated as "~"), the status of the last
// job when it failed, and the number of background jobs still running.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"Jobsh/internal/painter"
)

const DefaultPrompt = "$ "

// State is what the prompt reports about the shell.
type State struct {
	Status int // status of the last foreground job
	Jobs   int // background jobs not yet collected
}

// Update constructs and returns the prompt string for the shell. Paths
// deeper than three levels are shortened to ~/.../parent/child. If the
// current working directory cannot be determined, DefaultPrompt is
// returned.
func Update(p painter.Painter, state State) string {

	currPath, err := os.Getwd()
	if err != nil {
		return DefaultPrompt
	}

	var b strings.Builder

	b.WriteString(painter.Paint(p.Path, shorten(currPath, os.Getenv("HOME"))))

	if state.Jobs > 0 {
		b.WriteString(painter.Paint(p.Jobs, fmt.Sprintf(" [%d]", state.Jobs)))
	}
	if state.Status != 0 {
		b.WriteString(painter.Paint(p.Status, fmt.Sprintf(" %d", state.Status)))
	}

	b.WriteString(" ")
	b.WriteString(DefaultPrompt)

	return b.String()

}

// shorten abbreviates home as "~" and keeps only the last two elements of
// deep paths.
func shorten(path, home string) string {

	if home != "" && strings.HasPrefix(path, home) {
		path = "~" + strings.TrimPrefix(path, home)
	}

	split := strings.Split(path, "/")
	if len(split) > 3 {
		path = fmt.Sprintf("%s/.../%s/%s", split[0], split[len(split)-2], split[len(split)-1])
	}

	return path

}
