package core

import (
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"golang.org/x/sys/unix"
)

// ErrReaperActive is returned when a second shell in the same process tries
// to track children. Reaping waits for any child, so only one may.
var ErrReaperActive = errors.New("another shell is already reaping children")

// activeReaper is set while a reaper runs.
var activeReaper int32

// reaper collects child state changes whenever SIGCHLD arrives.
type reaper struct {
	shell   *Shell
	sigs    chan os.Signal
	done    chan struct{}
	stopped chan struct{}
}

func startReaper(s *Shell) (*reaper, error) {
	if !atomic.CompareAndSwapInt32(&activeReaper, 0, 1) {
		return nil, ErrReaperActive
	}

	r := &reaper{
		shell: s,
		// Notifications coalesce, every wakeup drains all pending changes.
		sigs:    make(chan os.Signal, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	signal.Notify(r.sigs, syscall.SIGCHLD)
	go r.loop()

	return r, nil
}

func (r *reaper) loop() {
	defer close(r.stopped)

	for {
		select {
		case <-r.sigs:
			r.shell.reapChildren()
		case <-r.done:
			return
		}
	}
}

// Stop stops reaping and releases the process-wide slot.
func (r *reaper) Stop() {
	signal.Stop(r.sigs)
	close(r.done)
	<-r.stopped
	atomic.StoreInt32(&activeReaper, 0)
}

// reapChildren drains every pending child state change, updating the job
// table and the terminal under one lock. Notices are printed after the lock
// is released.
func (s *Shell) reapChildren() {
	var changes []jobs.Change

	s.Jobs.Update(func(tx *jobs.Tx) error {
		for {
			var ws syscall.WaitStatus
			pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG|syscall.WUNTRACED, nil)
			if err == syscall.EINTR {
				continue
			}
			if err != nil || pid <= 0 {
				return nil // ECHILD or nothing left to report.
			}

			change, ok := tx.Apply(pid, ws)
			if !ok {
				continue
			}
			if !change.Partial {
				s.applyTerminalAction(tx, change)
			}
			changes = append(changes, change)
		}
	})

	for _, change := range changes {
		s.reportChange(change)
	}
}

func (s *Shell) applyTerminalAction(tx *jobs.Tx, change jobs.Change) {
	job := change.Job

	switch change.Action.Terminal {
	case jobs.ReclaimTerminal:
		// A background job finishing mustn't take the terminal away from a
		// job running in the foreground.
		if _, busy := tx.FindByStatus(jobs.Foreground); busy {
			break
		}
		if err := s.Terminal.Reclaim(); err != nil {
			s.log.Printf("%v", err)
		}

	case jobs.GiveTerminal:
		if err := s.Terminal.Give(job.Pgid); err != nil {
			s.log.Printf("%v", err)
		}
	}

	if change.Action.Continue {
		if err := unix.Kill(-job.Pgid, unix.SIGCONT); err != nil {
			s.log.Printf("couldn't continue %q: %v", job.Name, err)
		}
	}
}

func (s *Shell) reportChange(change jobs.Change) {
	if change.Partial {
		return
	}

	job := change.Job
	if word := change.Action.Notice; word != "" {
		s.Colors.Notice(s.Out, job, word)
	}

	if change.Action.Remove {
		s.record(&logger.JobFinished{
			JobID:   job.ID,
			Name:    job.Name,
			Pid:     job.Pid,
			Outcome: change.Event.String(),
		})
		return
	}
	s.record(&logger.JobStatus{
		JobID:  job.ID,
		Name:   job.Name,
		Pid:    job.Pid,
		Status: job.Status.String(),
		Cause:  change.Event.String(),
	})
}
