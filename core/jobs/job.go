// Package jobs holds the shell's bookkeeping for launched pipelines: the job
// record, the job table and the status transition table driven by child
// state changes.
package jobs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Status is the job-control state of a job.
type Status int

const (
	// Background jobs run without the terminal and don't block the prompt.
	Background Status = iota
	// Foreground jobs own the terminal; the prompt waits for them.
	Foreground
	// Suspended jobs were stopped while in the foreground.
	Suspended
	// WaitingInput jobs were stopped while in the background, usually by
	// trying to read the terminal.
	WaitingInput
)

var statusNames = map[Status]string{
	Background:   "Background",
	Foreground:   "Foreground",
	Suspended:    "Suspended",
	WaitingInput: "Waiting Input",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Stopped reports whether jobs in this status need a continue signal to run.
func (s Status) Stopped() bool {
	return s == Suspended || s == WaitingInput
}

// Job is the record for one pipeline the shell launched.
type Job struct {
	// ID is assigned at insertion and never reused. Displayed as ID+1.
	ID int
	// Name is the command line, for display.
	Name string
	// Pid is the process waited on and signaled for the job.
	Pid int
	// Pgid is the process group shared by every stage of the pipeline.
	Pgid int
	// Status is the current job-control state.
	Status Status
	// Members holds the pid of every stage that started, in stage order.
	Members []int
	// Modes holds the terminal modes saved when the job last stopped in the
	// foreground, nil if it never did.
	Modes *unix.Termios
	// ExitStatus is the exit status of the last stage once it terminated,
	// 128 plus the signal number if it was killed.
	ExitStatus int

	pending map[int]bool
	killed  bool
}

// Notice formats a status-change line for the job.
func (j Job) Notice(word string) string {
	return fmt.Sprintf("[%d]+  %s\t  %s", j.ID+1, word, j.Name)
}

func (j *Job) snapshot() Job {
	out := *j
	out.pending = nil
	return out
}
