//go:build !linux
// +build !linux

package terminal

import (
	"fmt"
	"os"
)

// TTY is unavailable on this platform, shells run without a terminal.
type TTY struct {
	*Nop
}

// Open always fails: giving the terminal to process groups is only
// implemented on Linux.
func Open(f *os.File) (*TTY, error) {
	return nil, fmt.Errorf("%w: job control is only supported on linux", ErrNotInteractive)
}
