//go:build linux
// +build linux

package terminal

import (
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// pollTimeoutMillis bounds how long a read polls before re-checking the gate.
const pollTimeoutMillis = 100

// gate tracks the terminal owner and blocks readers while it isn't the shell.
type gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	shell  int
	owner  int
	closed bool
}

func newGate(shellPgid int) *gate {
	g := &gate{shell: shellPgid, owner: shellPgid}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Owner returns the current terminal owner.
func (g *gate) Owner() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner
}

// SetOwner records a new owner and wakes readers if it's the shell.
func (g *gate) SetOwner(pgid int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.owner = pgid
	g.cond.Broadcast()
}

// Close permanently shuts the gate; waiting readers get io.EOF.
func (g *gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.cond.Broadcast()
}

// Open reports whether the shell may read right now.
func (g *gate) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.closed && g.owner == g.shell
}

// Wait blocks until the shell owns the terminal.
func (g *gate) Wait() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		switch {
		case g.closed:
			return io.EOF
		case g.owner == g.shell:
			return nil
		}
		g.cond.Wait()
	}
}

// gatedReader reads fd only while the gate is open. It polls with a timeout
// rather than blocking in read(2) so that no read is pending when the
// terminal moves to a job; a pending read would steal the job's input.
type gatedReader struct {
	fd   int
	gate *gate
}

func newGatedReader(fd int, g *gate) *gatedReader {
	return &gatedReader{fd: fd, gate: g}
}

func (r *gatedReader) Read(p []byte) (int, error) {
	for {
		if err := r.gate.Wait(); err != nil {
			return 0, err
		}

		fds := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollTimeoutMillis)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return 0, err
		case n == 0:
			continue
		}

		if !r.gate.Open() {
			continue
		}

		n, err = unix.Read(r.fd, p)
		switch {
		case err == unix.EINTR || err == unix.EAGAIN:
			continue
		case err != nil:
			return 0, err
		case n == 0:
			return 0, io.EOF
		}
		return n, nil
	}
}
