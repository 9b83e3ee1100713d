package terminal

import (
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// Nop is a Controller for shells without a terminal, such as `jobsh -c` or
// tests. It records ownership changes but never touches a device.
type Nop struct {
	in    io.Reader
	shell int

	mu    sync.Mutex
	owner int
	log   []int
}

var _ Controller = (*Nop)(nil)

// NewNop creates a Controller that reads input from in.
func NewNop(in io.Reader) *Nop {
	pgrp := unix.Getpgrp()
	return &Nop{in: in, shell: pgrp, owner: pgrp}
}

// ShellPgid implements Controller.ShellPgid.
func (n *Nop) ShellPgid() int {
	return n.shell
}

// Owner implements Controller.Owner.
func (n *Nop) Owner() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.owner
}

// Give implements Controller.Give.
func (n *Nop) Give(pgid int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.owner = pgid
	n.log = append(n.log, pgid)
	return nil
}

// Reclaim implements Controller.Reclaim.
func (n *Nop) Reclaim() error {
	return n.Give(n.shell)
}

// Transfers returns every owner the terminal was handed to, in order.
func (n *Nop) Transfers() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.log...)
}

// SaveModes implements Controller.SaveModes.
func (*Nop) SaveModes() (*unix.Termios, error) {
	return nil, nil
}

// SetModes implements Controller.SetModes.
func (*Nop) SetModes(*unix.Termios) error {
	return nil
}

// RestoreShellModes implements Controller.RestoreShellModes.
func (*Nop) RestoreShellModes() error {
	return nil
}

// Input implements Controller.Input.
func (n *Nop) Input() io.Reader {
	return n.in
}

// Close implements Controller.Close.
func (*Nop) Close() error {
	return nil
}
