// Package terminal owns the controlling terminal of an interactive shell:
// which process group holds it, the terminal modes of the shell and of
// stopped jobs, and reading shell input only while the shell holds it.
package terminal

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

// ErrNotInteractive is returned when the shell's input isn't a terminal.
var ErrNotInteractive = errors.New("input is not a terminal")

// Controller transfers the controlling terminal between the shell and jobs.
type Controller interface {
	// ShellPgid is the shell's own process group.
	ShellPgid() int
	// Owner is the process group that currently holds the terminal.
	Owner() int
	// Give transfers the terminal to the process group.
	Give(pgid int) error
	// Reclaim returns the terminal to the shell.
	Reclaim() error
	// SaveModes reads the current terminal modes.
	SaveModes() (*unix.Termios, error)
	// SetModes applies terminal modes, typically ones saved from a job.
	SetModes(modes *unix.Termios) error
	// RestoreShellModes applies the modes the shell had at startup.
	RestoreShellModes() error
	// Input reads shell input; reads block while a job holds the terminal.
	Input() io.Reader
	// Close stops catching signals and restores the shell's modes.
	Close() error
}
