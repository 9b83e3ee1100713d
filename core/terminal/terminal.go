//go:build linux
// +build linux

package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/ssh/terminal"
	"golang.org/x/sys/unix"
)

// jobControlSignals are caught and discarded by the shell so the keyboard
// can't stop or interrupt it. Because they are caught rather than ignored,
// forked children start with the default disposition.
var jobControlSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGTSTP,
	syscall.SIGTTIN,
	syscall.SIGTTOU,
}

// TTY controls a real terminal.
type TTY struct {
	file       *os.File
	fd         int
	shellPgid  int
	shellState *terminal.State

	gate  *gate
	input *gatedReader

	sigs chan os.Signal
	done chan struct{}
}

var _ Controller = (*TTY)(nil)

// Open takes job-control ownership of the terminal f.
//
// It waits until the shell is in the foreground, moves the shell into its own
// process group, grabs the terminal for that group and records the terminal
// modes. Any failure means job control can't work.
func Open(f *os.File) (*TTY, error) {
	fd := int(f.Fd())
	if !terminal.IsTerminal(fd) {
		return nil, ErrNotInteractive
	}

	// Loop until we're in the foreground; SIGTTIN stops us until then.
	for {
		fg, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
		if err != nil {
			return nil, fmt.Errorf("couldn't read terminal owner: %w", err)
		}
		pgrp := unix.Getpgrp()
		if fg == pgrp {
			break
		}
		if err := unix.Kill(-pgrp, unix.SIGTTIN); err != nil {
			return nil, fmt.Errorf("couldn't wait for the foreground: %w", err)
		}
	}

	t := &TTY{
		file: f,
		fd:   fd,
		sigs: make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	signal.Notify(t.sigs, jobControlSignals...)
	go t.discardSignals()

	pid := os.Getpid()
	if unix.Getpgrp() != pid {
		if err := unix.Setpgid(pid, pid); err != nil {
			t.stopSignals()
			return nil, fmt.Errorf("couldn't put the shell in its own process group: %w", err)
		}
	}
	t.shellPgid = pid
	t.gate = newGate(pid)
	t.input = newGatedReader(fd, t.gate)

	if err := t.setForeground(pid); err != nil {
		t.stopSignals()
		return nil, fmt.Errorf("couldn't grab the terminal: %w", err)
	}

	state, err := terminal.GetState(fd)
	if err != nil {
		t.stopSignals()
		return nil, fmt.Errorf("couldn't read terminal modes: %w", err)
	}
	t.shellState = state

	return t, nil
}

func (t *TTY) discardSignals() {
	for {
		select {
		case <-t.sigs:
		case <-t.done:
			return
		}
	}
}

func (t *TTY) stopSignals() {
	signal.Stop(t.sigs)
	close(t.done)
}

func (t *TTY) setForeground(pgid int) error {
	// Reclaiming from the background would stop us with SIGTTOU otherwise.
	return withSignalBlocked(syscall.SIGTTOU, func() error {
		return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
	})
}

// ShellPgid implements Controller.ShellPgid.
func (t *TTY) ShellPgid() int {
	return t.shellPgid
}

// Owner implements Controller.Owner.
func (t *TTY) Owner() int {
	return t.gate.Owner()
}

// Give implements Controller.Give.
func (t *TTY) Give(pgid int) error {
	// Close the gate first so the shell stops reading before the job starts.
	t.gate.SetOwner(pgid)
	if err := t.setForeground(pgid); err != nil {
		return fmt.Errorf("couldn't give terminal to %d: %w", pgid, err)
	}
	return nil
}

// Reclaim implements Controller.Reclaim.
func (t *TTY) Reclaim() error {
	err := t.setForeground(t.shellPgid)
	t.gate.SetOwner(t.shellPgid)
	if err != nil {
		return fmt.Errorf("couldn't reclaim terminal: %w", err)
	}
	return nil
}

// SaveModes implements Controller.SaveModes.
func (t *TTY) SaveModes() (*unix.Termios, error) {
	return unix.IoctlGetTermios(t.fd, unix.TCGETS)
}

// SetModes implements Controller.SetModes.
func (t *TTY) SetModes(modes *unix.Termios) error {
	if modes == nil {
		return nil
	}
	return withSignalBlocked(syscall.SIGTTOU, func() error {
		return unix.IoctlSetTermios(t.fd, unix.TCSETSW, modes)
	})
}

// RestoreShellModes implements Controller.RestoreShellModes.
func (t *TTY) RestoreShellModes() error {
	return withSignalBlocked(syscall.SIGTTOU, func() error {
		return terminal.Restore(t.fd, t.shellState)
	})
}

// Input implements Controller.Input.
func (t *TTY) Input() io.Reader {
	return t.input
}

// Close implements Controller.Close.
func (t *TTY) Close() error {
	t.gate.Close()
	t.stopSignals()
	return t.RestoreShellModes()
}
