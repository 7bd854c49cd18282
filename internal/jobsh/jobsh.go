// Package jobsh contains the shell loop and the orchestration that wires
// together configuration, the readline terminal, the tokenizer, the list
// evaluator, job control and the zombie reaper. Every input line is parsed,
// evaluated, and followed by one non-blocking reaping pass.
package jobsh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"Jobsh/internal/builtin"
	"Jobsh/internal/completer"
	"Jobsh/internal/config"
	"Jobsh/internal/evaluator"
	"Jobsh/internal/jobctl"
	"Jobsh/internal/painter"
	"Jobsh/internal/parser"
	"Jobsh/internal/prompt"
	"Jobsh/internal/reaper"
)

// Options select where input comes from.
type Options struct {
	Command   string // run this line and exit with its status
	Script    string // read lines from this file
	Quiet     bool   // never print a prompt
	ConfigDir string // directory holding the config file
}

// Shell holds the runtime state of the shell.
type Shell struct {
	cfg       *config.Config
	logger    *slog.Logger
	input     io.Reader          // non-interactive line source
	terminal  *readline.Instance // interactive line source, nil otherwise
	completer *completer.Completer
	painter   painter.Painter
	quiet     bool

	ctty      *os.File // controlling terminal, nil when there is none
	tty       *jobctl.Terminal
	reaper    *reaper.Reaper
	evaluator *evaluator.Evaluator

	sigCh  chan os.Signal // receives os.Interrupt while interactive
	stopCh chan struct{}  // closed to stop the interrupt handler

	status  int
	exiting bool
}

// Run starts the shell and returns its exit status: the status of the line
// for Command, 0 at end of input otherwise (or the code given to exit).
func Run(opts Options) (int, error) {

	shell, err := boot(opts)
	if err != nil {
		return 1, err
	}

	defer shell.exit()

	if opts.Command != "" {
		shell.execute(opts.Command)
		return shell.status, nil
	}

	if shell.terminal != nil {
		return shell.interactiveLoop()
	}

	return shell.scriptLoop()

}

// boot initializes the shell runtime. It loads configuration (falling back
// to defaults on error), decides whether the session is interactive, takes
// control of the terminal when it is and builds the evaluator.
func boot(opts Options) (*Shell, error) {

	cfg, err := config.Load(afero.NewOsFs(), opts.ConfigDir)
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		fmt.Fprintln(os.Stderr, "jobsh:", err)
	}

	logger := newLogger(cfg.Log.Level, os.Stderr)

	shell := &Shell{
		cfg:     cfg,
		logger:  logger,
		painter: painter.NewPainter(cfg.Prompt),
		quiet:   opts.Quiet,
		stopCh:  make(chan struct{}),
		sigCh:   make(chan os.Signal, 1),
	}

	interactive := false

	switch {
	case opts.Command != "":
	case opts.Script != "":
		file, err := os.Open(opts.Script)
		if err != nil {
			return nil, fmt.Errorf("jobsh: %w", err)
		}
		shell.input = file
	default:
		shell.input = os.Stdin
		interactive = term.IsTerminal(int(os.Stdin.Fd()))
	}

	var notices io.Writer
	if interactive && cfg.Jobs.Notify {
		notices = os.Stderr
	}

	// Jobs get the terminal whatever the input source, or a job reading it
	// would stop in a background process group.
	shell.ctty = jobctl.Controlling()
	if interactive {
		shell.tty = jobctl.New(shell.ctty, logger)
	} else {
		shell.tty = jobctl.Attach(shell.ctty, logger)
	}

	shell.reaper = reaper.New(notices, logger)
	builtins := builtin.New(shell.reaper)

	shell.evaluator = evaluator.New(evaluator.Options{
		Terminal: shell.tty,
		Reaper:   shell.reaper,
		Builtins: builtins,
		Notices:  notices,
		Logger:   logger,

		Interactive: interactive,
	})

	if interactive {

		shell.completer = completer.NewCompleter(append(builtins.Names(), "exit"), shell.reaper)

		terminal, err := readline.NewEx(&readline.Config{
			HistoryFile:     cfg.Terminal.HistoryFile,
			HistoryLimit:    cfg.Terminal.HistoryLimit,
			InterruptPrompt: cfg.Terminal.InterruptPrompt,
			EOFPrompt:       "\n" + cfg.Terminal.EOFPrompt,
			AutoComplete:    shell.completer,
		})
		if err != nil {
			return nil, fmt.Errorf("jobsh: boot: failed to create new terminal instance: %w", err)
		}
		shell.terminal = terminal

		signal.Notify(shell.sigCh, os.Interrupt)
		go shell.interruptHandler()

	}

	logger.Debug("shell booted", "interactive", interactive, "job_control", shell.tty.Enabled())

	return shell, nil

}

// newLogger returns a text logger on w at the named level; unknown names
// fall back to warn.
func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// interactiveLoop reads lines from the readline terminal until EOF or exit.
func (shell *Shell) interactiveLoop() (int, error) {

	for !shell.exiting {

		if shell.quiet {
			shell.terminal.SetPrompt("")
		} else {
			shell.terminal.SetPrompt(prompt.Update(shell.painter, prompt.State{
				Status: shell.status,
				Jobs:   shell.reaper.Pending(),
			}))
		}
		shell.completer.Update()

		line, err := shell.terminal.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			} else if errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 1, fmt.Errorf("jobsh: readline: %w", err)
		}

		shell.execute(line)

	}

	return shell.status, nil

}

// scriptLoop reads lines from a script file or a non-terminal stdin.
func (shell *Shell) scriptLoop() (int, error) {

	scanner := bufio.NewScanner(shell.input)

	for !shell.exiting && scanner.Scan() {
		shell.execute(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return 1, fmt.Errorf("jobsh: read: %w", err)
	}

	if shell.exiting {
		return shell.status, nil
	}

	return 0, nil

}

// execute parses and evaluates one line, then collects any background job
// that has finished in the meantime.
func (shell *Shell) execute(line string) {

	line = strings.TrimSpace(line)

	if line == "" || strings.HasPrefix(line, "#") {
		shell.reaper.ReapAvailable()
		return
	}

	list, err := parser.Parse(line)
	if err != nil {
		shell.reportErrors(err)
		shell.status = evaluator.StatusListError
	} else {
		shell.status = shell.evaluator.Evaluate(list)
	}

	if code, ok := shell.evaluator.Exited(); ok {
		shell.exiting = true
		shell.status = code
	}

	shell.reaper.ReapAvailable()

}

// interruptHandler keeps an interrupt aimed at the shell from killing it.
// Foreground jobs own the terminal and receive interrupts from the driver
// directly, so there is nothing to forward.
func (shell *Shell) interruptHandler() {
	for {
		select {
		case <-shell.stopCh:
			return
		case <-shell.sigCh:
			shell.logger.Debug("interrupt ignored by the shell")
		}
	}
}

// exit performs cleanup of the shell runtime: it collects the remaining
// background jobs when configured to, stops signal delivery and closes the
// readline terminal.
func (shell *Shell) exit() {

	if shell.cfg.Jobs.WaitOnExit {
		shell.reaper.Drain()
	} else {
		shell.reaper.ReapAvailable()
	}

	signal.Stop(shell.sigCh)
	close(shell.stopCh)

	if shell.terminal != nil {
		_ = shell.terminal.Close()
	}
	if closer, ok := shell.input.(io.Closer); ok && shell.input != os.Stdin {
		_ = closer.Close()
	}
	if shell.ctty != nil && shell.ctty != os.Stdin {
		_ = shell.ctty.Close()
	}

}

// reportErrors prints the provided error to standard error if it is non-nil.
func (shell *Shell) reportErrors(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobsh:", err)
	}
}
