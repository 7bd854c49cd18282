// Package completer provides tab completion for the jobsh shell. It builds
// completion suggestions from the builtin names, the contents of the current
// directory and the background jobs the reaper still tracks.
package completer

import (
	"os"
	"strconv"

	"github.com/chzyer/readline"

	"Jobsh/internal/reaper"
)

// Completer adapts jobsh's dynamic state (filesystem and background jobs)
// to the readline.AutoCompleter interface. It is rebuilt before each prompt.
type Completer struct {
	builtins          []string
	reaper            *reaper.Reaper
	readlineCompleter *readline.PrefixCompleter
}

// NewCompleter returns a Completer for the given builtin names and reaper.
func NewCompleter(builtins []string, r *reaper.Reaper) *Completer {
	return &Completer{
		builtins:          builtins,
		reaper:            r,
		readlineCompleter: readline.NewPrefixCompleter(),
	}
}

// Update rebuilds the completion tree from the current working directory
// and the tracked background jobs.
func (c *Completer) Update() {

	entries, err := os.ReadDir(".")
	if err != nil {
		return
	}

	var onlyDirs []readline.PrefixCompleterInterface
	var fileNames []readline.PrefixCompleterInterface

	for _, entry := range entries {
		if entry.IsDir() {
			fileNames = append(fileNames, readline.PcItem(entry.Name()+"/"))
			onlyDirs = append(onlyDirs, readline.PcItem(entry.Name()+"/"))
		} else {
			fileNames = append(fileNames, readline.PcItem(entry.Name()))
		}
	}

	var items []readline.PrefixCompleterInterface

	for _, name := range c.builtins {
		switch name {
		case "cd":
			items = append(items, readline.PcItem(name, onlyDirs...))
		case "kill":
			items = append(items, readline.PcItem(name, c.jobTargets()...))
		default:
			items = append(items, readline.PcItem(name))
		}
	}

	for _, name := range []string{"cat", "grep", "wc", "sort", "head", "tail"} {
		items = append(items, readline.PcItem(name, fileNames...))
	}

	c.readlineCompleter = readline.NewPrefixCompleter(items...)

}

// jobTargets lists "%n" job specs and the pids of tracked background jobs.
func (c *Completer) jobTargets() []readline.PrefixCompleterInterface {

	if c.reaper == nil {
		return nil
	}

	var targets []readline.PrefixCompleterInterface
	for _, job := range c.reaper.Jobs() {
		targets = append(targets, readline.PcItem("%"+strconv.Itoa(job.ID)))
		for _, pid := range job.PIDs() {
			targets = append(targets, readline.PcItem(strconv.Itoa(pid)))
		}
	}

	return targets

}

// Do delegates the completion logic to the underlying PrefixCompleter.
// It satisfies the readline.AutoCompleter interface.
func (c *Completer) Do(line []rune, pos int) ([][]rune, int) {
	return c.readlineCompleter.Do(line, pos)
}
