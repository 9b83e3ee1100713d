package jobs

import (
	"fmt"
	"syscall"
)

// Event classifies a child state change.
type Event int

const (
	// Exited means every member of the job terminated normally.
	Exited Event = iota
	// Killed means the job terminated because of a signal.
	Killed
	// Stopped means a member of the job was stopped.
	Stopped
	// StoppedOnTerminal means a member was stopped for touching the terminal
	// while its group didn't own it.
	StoppedOnTerminal
)

func (e Event) String() string {
	switch e {
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	case Stopped:
		return "stopped"
	case StoppedOnTerminal:
		return "stopped on terminal"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// TerminalAction is what happens to terminal ownership after a transition.
type TerminalAction int

const (
	// KeepTerminal leaves ownership unchanged.
	KeepTerminal TerminalAction = iota
	// ReclaimTerminal returns the terminal to the shell.
	ReclaimTerminal
	// GiveTerminal hands the terminal to the job's own group.
	GiveTerminal
)

// Action describes how the table and the terminal react to an Event.
type Action struct {
	// Next is the job's status after the transition, unused when Remove is set.
	Next Status
	// Remove drops the job from the table.
	Remove bool
	// Notice is the word of the status-change line, empty for none.
	Notice string
	// Terminal is the terminal ownership change.
	Terminal TerminalAction
	// Continue resumes the job's process group.
	Continue bool
}

var transitions = map[Status]map[Event]Action{
	Background: {
		Exited:            {Remove: true, Notice: "Done", Terminal: ReclaimTerminal},
		Killed:            {Remove: true, Notice: "Killed", Terminal: ReclaimTerminal},
		Stopped:           {Next: WaitingInput, Notice: "Suspended", Terminal: ReclaimTerminal},
		StoppedOnTerminal: {Next: WaitingInput, Notice: "Suspended", Terminal: ReclaimTerminal},
	},
	Foreground: {
		// The foreground waiter observes the removal, no line is printed.
		Exited:  {Remove: true, Terminal: ReclaimTerminal},
		Killed:  {Remove: true, Notice: "Killed", Terminal: ReclaimTerminal},
		Stopped: {Next: Suspended, Notice: "Stopped", Terminal: GiveTerminal},

		// The job raced the terminal handoff at launch; it owns the terminal
		// by now, so let it carry on.
		StoppedOnTerminal: {Next: Foreground, Terminal: GiveTerminal, Continue: true},
	},
	Suspended: {
		Exited:            {Remove: true, Notice: "Done", Terminal: ReclaimTerminal},
		Killed:            {Remove: true, Notice: "Killed", Terminal: ReclaimTerminal},
		Stopped:           {Next: Suspended},
		StoppedOnTerminal: {Next: Suspended},
	},
	WaitingInput: {
		Exited:            {Remove: true, Notice: "Done", Terminal: ReclaimTerminal},
		Killed:            {Remove: true, Notice: "Killed", Terminal: ReclaimTerminal},
		Stopped:           {Next: WaitingInput},
		StoppedOnTerminal: {Next: WaitingInput},
	},
}

// Transition looks up the reaction to ev for a job in status s.
func Transition(s Status, ev Event) Action {
	if byEvent, ok := transitions[s]; ok {
		if act, ok := byEvent[ev]; ok {
			return act
		}
	}

	// Unknown statuses are treated like background jobs.
	return transitions[Background][ev]
}

// Change is the result of applying one reaped state change to the table.
type Change struct {
	// Job is a snapshot of the job after the change.
	Job Job
	// Event is the classified state change.
	Event Event
	// Action is the transition that was applied.
	Action Action
	// Partial is set when a pipeline member exited but others still run; no
	// transition was applied.
	Partial bool
}

// stopEvent classifies a stop by its signal.
func stopEvent(ws syscall.WaitStatus) Event {
	switch ws.StopSignal() {
	case syscall.SIGTTIN, syscall.SIGTTOU:
		return StoppedOnTerminal
	default:
		return Stopped
	}
}

// shellStatus converts a termination to a shell exit status.
func shellStatus(ws syscall.WaitStatus) int {
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}

// killedBy reports whether a member's termination counts as the job being
// killed. SIGPIPE on anything but the last stage is normal pipeline shutdown.
func killedBy(j *Job, member int, ws syscall.WaitStatus) bool {
	if !ws.Signaled() {
		return false
	}
	last := j.Members[len(j.Members)-1]
	return ws.Signal() != syscall.SIGPIPE || member == last
}
