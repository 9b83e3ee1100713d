package core

import (
	"errors"

	"github.com/josephlewis42/jobsh/core/jobs"
	"golang.org/x/sys/unix"
)

// ErrNoSuchJob is returned when a job reference doesn't resolve.
var ErrNoSuchJob = errors.New("no such job")

// statusStopped is the exit status reported for a job that was stopped.
const statusStopped = 128 + int(unix.SIGTSTP)

// putJobForeground gives the job the terminal, continues it if requested and
// waits until it stops or finishes.
func (s *Shell) putJobForeground(job jobs.Job, cont bool) (int, error) {
	err := s.Jobs.Update(func(tx *jobs.Tx) error {
		current, ok := tx.FindByPid(job.Pid)
		if !ok {
			return ErrNoSuchJob
		}
		tx.ChangeStatus(current.Pid, jobs.Foreground)

		if err := s.Terminal.Give(current.Pgid); err != nil {
			s.log.Printf("%v", err)
		}
		if cont {
			if err := s.Terminal.SetModes(current.Modes); err != nil {
				s.log.Printf("couldn't restore terminal modes of %q: %v", current.Name, err)
			}
			if err := unix.Kill(-current.Pgid, unix.SIGCONT); err != nil {
				s.log.Printf("couldn't continue %q: %v", current.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return StatusFailure, err
	}

	return s.waitForeground(job.Pid), nil
}

// putJobBackground marks the job as running in the background, continues it
// if requested and returns the terminal to the shell without waiting.
func (s *Shell) putJobBackground(job jobs.Job, cont bool) error {
	err := s.Jobs.Update(func(tx *jobs.Tx) error {
		current, ok := tx.FindByPid(job.Pid)
		if !ok {
			return ErrNoSuchJob
		}
		tx.ChangeStatus(current.Pid, jobs.Background)

		if cont {
			if err := unix.Kill(-current.Pgid, unix.SIGCONT); err != nil {
				s.log.Printf("couldn't continue %q: %v", current.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.Terminal.Reclaim(); err != nil {
		s.log.Printf("%v", err)
	}
	return nil
}

// waitForeground blocks until the foreground job stops or finishes, then
// takes the terminal back.
func (s *Shell) waitForeground(pid int) int {
	final, stopped := s.Jobs.Await(pid)

	if stopped {
		modes, err := s.Terminal.SaveModes()
		if err != nil {
			s.log.Printf("couldn't save terminal modes of %q: %v", final.Name, err)
		} else {
			s.Jobs.Update(func(tx *jobs.Tx) error {
				tx.SetModes(pid, modes)
				return nil
			})
		}
	}

	s.reclaimTerminal()

	if stopped {
		return statusStopped
	}
	return final.ExitStatus
}

// reclaimTerminal takes the terminal back and restores the shell's modes.
func (s *Shell) reclaimTerminal() {
	if err := s.Terminal.Reclaim(); err != nil {
		s.log.Printf("%v", err)
	}
	if err := s.Terminal.RestoreShellModes(); err != nil {
		s.log.Printf("couldn't restore terminal modes: %v", err)
	}
}

// ensureTerminal makes sure the shell holds the terminal before prompting.
func (s *Shell) ensureTerminal() {
	if s.Terminal.Owner() != s.Terminal.ShellPgid() {
		s.reclaimTerminal()
	}
}
