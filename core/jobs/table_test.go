package jobs

import (
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wait statuses in the Linux encoding.
func exitStatus(code int) syscall.WaitStatus {
	return syscall.WaitStatus(code << 8)
}

func signalStatus(sig syscall.Signal) syscall.WaitStatus {
	return syscall.WaitStatus(sig)
}

func stopStatus(sig syscall.Signal) syscall.WaitStatus {
	return syscall.WaitStatus(0x7f | int(sig)<<8)
}

func TestTableIDsIncrease(t *testing.T) {
	table := NewTable()

	a := table.Insert(100, 100, "sleep 1", Background)
	b := table.Insert(200, 200, "sleep 2", Background)
	table.Remove(a)
	c := table.Insert(300, 300, "sleep 3", Foreground)

	assert.Equal(t, 0, a.ID)
	assert.Equal(t, 1, b.ID)
	assert.Equal(t, 2, c.ID, "ids must not be reused after removal")

	got, ok := table.FindByPid(200)
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID, "ids are stable until removal")

	seen := map[int]bool{}
	for _, j := range table.List() {
		assert.False(t, seen[j.ID], "duplicate id %d", j.ID)
		seen[j.ID] = true
	}
}

func TestTableLookups(t *testing.T) {
	table := NewTable()
	table.Insert(10, 10, "vim", Suspended)
	table.Insert(20, 20, "sleep 5 &", Background)
	table.Insert(30, 30, "cat", WaitingInput)

	t.Run("by pid", func(t *testing.T) {
		j, ok := table.FindByPid(20)
		assert.True(t, ok)
		assert.Equal(t, "sleep 5 &", j.Name)

		_, ok = table.FindByPid(99)
		assert.False(t, ok)
	})

	t.Run("by id", func(t *testing.T) {
		j, ok := table.FindByID(2)
		assert.True(t, ok)
		assert.Equal(t, 30, j.Pid)

		_, ok = table.FindByID(3)
		assert.False(t, ok)
	})

	t.Run("by index", func(t *testing.T) {
		j, ok := table.FindByIndex(0)
		assert.True(t, ok)
		assert.Equal(t, 10, j.Pid)

		_, ok = table.FindByIndex(-1)
		assert.False(t, ok)
		_, ok = table.FindByIndex(3)
		assert.False(t, ok)
	})

	t.Run("by status", func(t *testing.T) {
		j, ok := table.FindByStatus(WaitingInput)
		assert.True(t, ok)
		assert.Equal(t, 30, j.Pid)

		_, ok = table.FindByStatus(Foreground)
		assert.False(t, ok)
	})

	t.Run("most recent", func(t *testing.T) {
		j, ok := table.FindMostRecent()
		assert.True(t, ok)
		assert.Equal(t, 30, j.Pid)

		_, ok = NewTable().FindMostRecent()
		assert.False(t, ok)
	})
}

func TestTableChangeStatus(t *testing.T) {
	table := NewTable()
	table.Insert(10, 10, "cat", Foreground)

	assert.True(t, table.ChangeStatus(10, Suspended))
	assert.False(t, table.ChangeStatus(11, Suspended))

	j, _ := table.FindByPid(10)
	assert.Equal(t, Suspended, j.Status)
}

func TestTableApply(t *testing.T) {
	cases := map[string]struct {
		status     Status
		ws         syscall.WaitStatus
		wantEvent  Event
		wantRemove bool
		wantStatus Status
		wantNotice string
	}{
		"background exit":      {Background, exitStatus(0), Exited, true, Background, "Done"},
		"background failure":   {Background, exitStatus(3), Exited, true, Background, "Done"},
		"background killed":    {Background, signalStatus(syscall.SIGTERM), Killed, true, Background, "Killed"},
		"background stopped":   {Background, stopStatus(syscall.SIGSTOP), Stopped, false, WaitingInput, "Suspended"},
		"background read":      {Background, stopStatus(syscall.SIGTTIN), StoppedOnTerminal, false, WaitingInput, "Suspended"},
		"foreground race":      {Foreground, stopStatus(syscall.SIGTTOU), StoppedOnTerminal, false, Foreground, ""},
		"foreground exit":      {Foreground, exitStatus(0), Exited, true, Foreground, ""},
		"foreground killed":    {Foreground, signalStatus(syscall.SIGINT), Killed, true, Foreground, "Killed"},
		"foreground stopped":   {Foreground, stopStatus(syscall.SIGTSTP), Stopped, false, Suspended, "Stopped"},
		"suspended killed":     {Suspended, signalStatus(syscall.SIGTERM), Killed, true, Suspended, "Killed"},
		"suspended stop again": {Suspended, stopStatus(syscall.SIGSTOP), Stopped, false, Suspended, ""},
		"waiting input exit":   {WaitingInput, exitStatus(0), Exited, true, WaitingInput, "Done"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			table := NewTable()
			table.Insert(42, 42, "job", tc.status)

			var change Change
			var ok bool
			table.Update(func(tx *Tx) error {
				change, ok = tx.Apply(42, tc.ws)
				return nil
			})

			require.True(t, ok)
			assert.False(t, change.Partial)
			assert.Equal(t, tc.wantEvent, change.Event)
			assert.Equal(t, tc.wantNotice, change.Action.Notice)

			_, found := table.FindByPid(42)
			assert.Equal(t, !tc.wantRemove, found)
			if !tc.wantRemove {
				assert.Equal(t, tc.wantStatus, change.Job.Status)
			}
		})
	}
}

func TestTableApplyUnknownPid(t *testing.T) {
	table := NewTable()
	table.Insert(42, 42, "job", Background)

	table.Update(func(tx *Tx) error {
		_, ok := tx.Apply(43, exitStatus(0))
		assert.False(t, ok)
		return nil
	})
	assert.Equal(t, 1, table.Len())
}

func TestTableApplyPipeline(t *testing.T) {
	table := NewTable()
	table.Insert(10, 10, "yes | head -1", Background, 10, 11)

	table.Update(func(tx *Tx) error {
		// The first stage dies of SIGPIPE once head exits, which isn't a kill.
		change, ok := tx.Apply(10, signalStatus(syscall.SIGPIPE))
		assert.True(t, ok)
		assert.True(t, change.Partial)

		change, ok = tx.Apply(11, exitStatus(0))
		assert.True(t, ok)
		assert.False(t, change.Partial)
		assert.Equal(t, Exited, change.Event)
		assert.Equal(t, "Done", change.Action.Notice)
		return nil
	})

	assert.Equal(t, 0, table.Len())
}

func TestTableApplyExitStatus(t *testing.T) {
	table := NewTable()
	table.Insert(10, 10, "false | true", Background, 10, 11)

	table.Update(func(tx *Tx) error {
		tx.Apply(11, exitStatus(0))
		change, _ := tx.Apply(10, exitStatus(1))
		assert.Equal(t, 0, change.Job.ExitStatus, "the last stage decides")
		return nil
	})

	table.Insert(20, 20, "sleep 10", Background)
	table.Update(func(tx *Tx) error {
		change, _ := tx.Apply(20, signalStatus(syscall.SIGKILL))
		assert.Equal(t, 137, change.Job.ExitStatus)
		return nil
	})
}

func TestTableApplyPipelineKilled(t *testing.T) {
	table := NewTable()
	table.Insert(10, 10, "sleep 10 | cat", Background, 10, 11)

	table.Update(func(tx *Tx) error {
		tx.Apply(10, signalStatus(syscall.SIGTERM))
		change, _ := tx.Apply(11, exitStatus(0))
		assert.Equal(t, Killed, change.Event)
		return nil
	})
}

func TestTableAwait(t *testing.T) {
	table := NewTable()
	table.Insert(7, 7, "cat", Foreground)

	var wg sync.WaitGroup
	wg.Add(1)

	var got Job
	var ok bool
	go func() {
		defer wg.Done()
		got, ok = table.Await(7)
	}()

	time.Sleep(10 * time.Millisecond)
	table.Update(func(tx *Tx) error {
		tx.Apply(7, stopStatus(syscall.SIGTSTP))
		return nil
	})
	wg.Wait()

	assert.True(t, ok)
	assert.Equal(t, Suspended, got.Status)
}

func TestTableAwaitRemoved(t *testing.T) {
	table := NewTable()
	table.Insert(7, 7, "true", Foreground)

	type result struct {
		job Job
		ok  bool
	}
	done := make(chan result)
	go func() {
		j, ok := table.Await(7)
		done <- result{j, ok}
	}()

	table.Update(func(tx *Tx) error {
		tx.Apply(7, exitStatus(3))
		return nil
	})

	select {
	case got := <-done:
		assert.False(t, got.ok)
		assert.Equal(t, 3, got.job.ExitStatus)
		assert.Equal(t, "true", got.job.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("Await didn't return after the job exited")
	}
}
