package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/josephlewis42/jobsh/core"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/terminal"
)

// runInteractive runs the prompt loop on the terminal. If standard input
// isn't a terminal, lines are read from it as a script instead.
func runInteractive(configuration *config.Configuration, log *log.Logger) (int, error) {
	tty, err := terminal.Open(os.Stdin)
	switch {
	case errors.Is(err, terminal.ErrNotInteractive):
		return runScript(configuration, log, os.Stdin)
	case err != nil:
		return 0, fmt.Errorf("couldn't take control of the terminal: %w", err)
	}
	defer tty.Close()

	events, closeEvents := openEvents(configuration, log)
	defer closeEvents()

	sh, err := core.NewShell(core.Options{
		Config:      configuration,
		Terminal:    tty,
		Interactive: true,
		Events:      events,
		Log:         log,
	})
	if err != nil {
		return 0, err
	}
	defer sh.Close()

	return sh.Run(), nil
}

// runCommand runs a single line, controlling the terminal if there is one.
func runCommand(configuration *config.Configuration, log *log.Logger, line string) (int, error) {
	opts := core.Options{
		Config: configuration,
		Log:    log,
	}

	tty, err := terminal.Open(os.Stdin)
	switch {
	case errors.Is(err, terminal.ErrNotInteractive):
		// Jobs share the input without taking turns.
	case err != nil:
		return 0, fmt.Errorf("couldn't take control of the terminal: %w", err)
	default:
		defer tty.Close()
		opts.Terminal = tty
	}

	events, closeEvents := openEvents(configuration, log)
	defer closeEvents()
	opts.Events = events

	sh, err := core.NewShell(opts)
	if err != nil {
		return 0, err
	}
	defer sh.Close()

	return sh.RunLine(line), nil
}

// runScript runs each line of r until it ends or exit is called.
func runScript(configuration *config.Configuration, log *log.Logger, r io.Reader) (int, error) {
	events, closeEvents := openEvents(configuration, log)
	defer closeEvents()

	sh, err := core.NewShell(core.Options{
		Config: configuration,
		Events: events,
		Log:    log,
	})
	if err != nil {
		return 0, err
	}
	defer sh.Close()

	status := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() && !sh.Exited() {
		status = sh.RunLine(scanner.Text())
	}
	return status, scanner.Err()
}

// openEvents opens the configured event log. Failing to open it isn't fatal,
// events are dropped instead.
func openEvents(configuration *config.Configuration, log *log.Logger) (*logger.Logger, func()) {
	if !configuration.EventLogEnabled() {
		return logger.NewNopLogger(), func() {}
	}

	fd, err := configuration.OpenEventLog()
	if err != nil {
		log.Printf("couldn't open event log, events won't be recorded: %v", err)
		return logger.NewNopLogger(), func() {}
	}

	return logger.NewJsonLinesLogRecorder(fd), func() {
		fd.Close()
	}
}
