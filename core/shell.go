package core

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/shell"
	"github.com/josephlewis42/jobsh/core/spawn"
	"github.com/josephlewis42/jobsh/core/terminal"
)

// Exit statuses for failures the shell detects itself.
const (
	StatusFailure     = 1
	StatusSyntaxError = 2
	StatusNotFound    = 127
)

// ExitError carries the status the shell process should exit with.
type ExitError struct {
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Status)
}

// Options configure a new Shell.
type Options struct {
	Config *config.Configuration
	// Terminal controls the terminal; a no-op controller reading Stdin is
	// used if nil.
	Terminal terminal.Controller
	// Interactive enables line editing and history.
	Interactive bool
	// Stdin, Stdout and Stderr are inherited by jobs.
	Stdin, Stdout, Stderr *os.File
	// Events records the session, events are dropped if nil.
	Events *logger.Logger
	// Log receives diagnostics, Stderr is used if nil.
	Log *log.Logger
}

// Shell is an interactive command interpreter with job control.
type Shell struct {
	Config   *config.Configuration
	Jobs     *jobs.Table
	Terminal terminal.Controller
	Spawner  *spawn.Spawner
	Readline *readline.Instance

	// Stdin, Stdout and Stderr are inherited by jobs.
	Stdin, Stdout, Stderr *os.File
	// Out and Err receive the shell's own output.
	Out, Err io.Writer

	Colors *ColorPrinter

	log    *log.Logger
	events *logger.SessionLogger
	reaper *reaper

	history    []string
	quit       bool
	lastStatus int
	toClose    listCloser
}

// NewShell creates a shell and starts tracking its children.
func NewShell(opts Options) (*Shell, error) {
	if opts.Config == nil {
		return nil, errors.New("missing configuration")
	}
	stdin := orDefault(opts.Stdin, os.Stdin)
	stdout := orDefault(opts.Stdout, os.Stdout)
	stderr := orDefault(opts.Stderr, os.Stderr)

	s := &Shell{
		Config:   opts.Config,
		Jobs:     jobs.NewTable(),
		Terminal: opts.Terminal,
		Spawner:  spawn.New(opts.Config.FileMode()),
		Stdin:    stdin,
		Stdout:   stdout,
		Stderr:   stderr,
		Out:      stdout,
		Err:      stderr,
		Colors:   NewColorPrinter(opts.Config.UseColor(opts.Interactive)),
		log:      opts.Log,
	}
	if s.Terminal == nil {
		s.Terminal = terminal.NewNop(stdin)
	}
	if s.log == nil {
		s.log = log.New(stderr, "jobsh: ", 0)
	}
	events := opts.Events
	if events == nil {
		events = logger.NewNopLogger()
	}
	s.events = events.NewSession()

	if opts.Interactive {
		historyLimit := opts.Config.HistoryLimit
		if historyLimit == 0 {
			historyLimit = -1
		}

		if path := opts.Config.HistoryPath(); path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				s.log.Printf("couldn't create history directory: %v", err)
			}
		}

		cfg := &readline.Config{
			Stdin:                  readline.NewCancelableStdin(s.Terminal.Input()),
			Stdout:                 stdout,
			Stderr:                 stderr,
			HistoryFile:            opts.Config.HistoryPath(),
			HistoryLimit:           historyLimit,
			DisableAutoSaveHistory: true,
			FuncIsTerminal: func() bool {
				return true
			},
		}
		if err := cfg.Init(); err != nil {
			return nil, err
		}

		rl, err := readline.NewEx(cfg)
		if err != nil {
			return nil, err
		}
		s.Readline = rl
		s.Out = rl.Stdout()
		s.Err = rl.Stderr()
		s.toClose = append(s.toClose, rl)
	}

	r, err := startReaper(s)
	if err != nil {
		s.toClose.Close()
		return nil, err
	}
	s.reaper = r

	return s, nil
}

// Run reads and executes lines until input ends or exit is called.
func (s *Shell) Run() int {
	for !s.quit {
		s.ensureTerminal()

		s.Readline.SetPrompt(s.Prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return s.lastStatus // Input closed, quit.

		case err == readline.ErrInterrupt:
			continue // Discard the line like other shells.

		case err != nil:
			s.log.Printf("readline: %v", err)
			continue

		default:
			s.RunLine(line)
		}
	}

	return s.lastStatus
}

// Exited reports whether the exit built-in was run.
func (s *Shell) Exited() bool {
	return s.quit
}

// RunLine parses and runs one line, returning its exit status.
func (s *Shell) RunLine(line string) int {
	s.lastStatus = s.runLine(line)
	return s.lastStatus
}

func (s *Shell) runLine(line string) int {
	line = strings.TrimSpace(line)
	if line == "" {
		return s.lastStatus
	}
	s.addHistory(line)

	tokens, err := shell.Tokenize(line)
	if err != nil {
		return s.syntaxError(line, err)
	}

	if len(tokens) > 0 && !tokens[0].Op {
		if builtin, ok := AllBuiltins[tokens[0].Text]; ok {
			words := shell.Words(tokens)
			s.record(&logger.RunCommand{Line: line, Command: words, Builtin: true})
			for _, tok := range tokens {
				if tok.Op {
					s.builtinError(words, fmt.Sprintf("%s: built-ins can't be piped, redirected or backgrounded", words[0]))
					return StatusFailure
				}
			}
			return builtin.Main(s, words)
		}
	}

	p, err := shell.Build(tokens)
	if err != nil {
		return s.syntaxError(line, err)
	}
	if p.Empty() {
		return s.lastStatus
	}

	s.record(&logger.RunCommand{Line: line, Command: p.Stages[0]})
	return s.launch(line, p)
}

// launch starts the pipeline as a new job and waits for it unless it runs
// in the background.
func (s *Shell) launch(line string, p *shell.Pipeline) int {
	status := jobs.Foreground
	if p.Background {
		status = jobs.Background
	}

	var job jobs.Job
	var res *spawn.Result
	// Forking under the table lock keeps children from being reaped before
	// their job exists.
	startErr := s.Jobs.Update(func(tx *jobs.Tx) error {
		var err error
		res, err = s.Spawner.Start(spawn.Request{
			Stages: p.Stages,
			Stdin:  p.Stdin,
			Stdout: p.Stdout,
			Stdio:  [3]*os.File{s.Stdin, s.Stdout, s.Stderr},
		})
		if res == nil || !res.Started() {
			return err
		}

		job = tx.Insert(res.Pid, res.Pgid, line, status, res.Members...)
		if status == jobs.Foreground {
			if err := s.Terminal.Give(job.Pgid); err != nil {
				s.log.Printf("%v", err)
			}
		}
		return err
	})

	if res != nil {
		for _, failed := range res.Failed {
			fmt.Fprintln(s.Err, failed)
			s.record(&logger.LaunchError{Line: line, Error: failed.Error()})
		}
	}
	if startErr != nil {
		fmt.Fprintf(s.Err, "jobsh: %v\n", startErr)
		s.record(&logger.LaunchError{Line: line, Error: startErr.Error()})
	}

	if res == nil || !res.Started() {
		if startErr == nil {
			return StatusNotFound
		}
		return StatusFailure
	}

	s.record(&logger.JobStarted{
		JobID:      job.ID,
		Name:       job.Name,
		Pid:        job.Pid,
		Pgid:       job.Pgid,
		Members:    job.Members,
		Background: p.Background,
	})

	if p.Background {
		return 0
	}

	exit := s.waitForeground(job.Pid)
	if startErr != nil {
		return StatusFailure
	}
	return exit
}

func (s *Shell) syntaxError(line string, err error) int {
	fmt.Fprintf(s.Err, "jobsh: %v\n", err)
	s.record(&logger.LaunchError{Line: line, Error: err.Error()})
	return StatusSyntaxError
}

func (s *Shell) builtinError(args []string, msg string) {
	fmt.Fprintln(s.Err, msg)
	s.record(&logger.BuiltinError{Command: args, Error: msg})
}

func (s *Shell) record(event logger.LogType) {
	if err := s.events.Record(event); err != nil {
		s.log.Printf("couldn't record event: %v", err)
	}
}

func (s *Shell) addHistory(line string) {
	if s.Config.SkipDuplicateHistory && len(s.history) > 0 && s.history[len(s.history)-1] == line {
		return
	}

	s.history = append(s.history, line)
	if limit := s.Config.HistoryLimit; limit > 0 && len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}

	if s.Readline != nil {
		if err := s.Readline.SaveHistory(line); err != nil {
			s.log.Printf("couldn't save history: %v", err)
		}
	}
}

// Close stops tracking children and releases line editing. Jobs that are
// still running are left alone.
func (s *Shell) Close() error {
	if s.reaper != nil {
		s.reaper.Stop()
		s.reaper = nil
	}
	return s.toClose.Close()
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var lastErr error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

func orDefault(f, def *os.File) *os.File {
	if f == nil {
		return def
	}
	return f
}
