package jobs

import (
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Table tracks every job known to the shell.
//
// The table is mutated both by the prompt loop and by the goroutine reaping
// children. All access goes through Update or View so neither side can
// observe the other's half-finished mutation.
type Table struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []*Job
	nextID int

	// finished holds foreground jobs removed before Await collected them.
	finished map[int]Job
}

// NewTable creates an empty job table.
func NewTable() *Table {
	t := &Table{finished: make(map[int]Job)}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Update runs fn with exclusive access to the table. Goroutines blocked in
// Await are woken after fn returns.
func (t *Table) Update(fn func(tx *Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.cond.Broadcast()

	return fn(&Tx{t: t})
}

// View runs fn with exclusive access to the table without waking waiters.
func (t *Table) View(fn func(tx *Tx)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&Tx{t: t})
}

// Await blocks until the job with the given pid leaves the Foreground status
// or is removed. It returns the job and true if it's still in the table, or
// the job's final record and false if it finished.
func (t *Table) Await(pid int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		j := t.byPid(pid)
		if j == nil {
			last := t.finished[pid]
			delete(t.finished, pid)
			return last, false
		}
		if j.Status != Foreground {
			return j.snapshot(), true
		}
		t.cond.Wait()
	}
}

// Insert adds a job, see Tx.Insert.
func (t *Table) Insert(pid, pgid int, name string, status Status, members ...int) (out Job) {
	t.Update(func(tx *Tx) error {
		out = tx.Insert(pid, pgid, name, status, members...)
		return nil
	})
	return
}

// ChangeStatus sets the status of the job with the given pid, see Tx.ChangeStatus.
func (t *Table) ChangeStatus(pid int, status Status) (ok bool) {
	t.Update(func(tx *Tx) error {
		ok = tx.ChangeStatus(pid, status)
		return nil
	})
	return
}

// Remove deletes the job, see Tx.Remove.
func (t *Table) Remove(job Job) {
	t.Update(func(tx *Tx) error {
		tx.Remove(job)
		return nil
	})
}

// FindByPid looks up a job by its representative pid.
func (t *Table) FindByPid(pid int) (out Job, ok bool) {
	t.View(func(tx *Tx) { out, ok = tx.FindByPid(pid) })
	return
}

// FindByID looks up a job by its ID.
func (t *Table) FindByID(id int) (out Job, ok bool) {
	t.View(func(tx *Tx) { out, ok = tx.FindByID(id) })
	return
}

// FindByIndex looks up a job by its 0-based position in the table.
func (t *Table) FindByIndex(idx int) (out Job, ok bool) {
	t.View(func(tx *Tx) { out, ok = tx.FindByIndex(idx) })
	return
}

// FindByStatus returns the first job with the given status.
func (t *Table) FindByStatus(status Status) (out Job, ok bool) {
	t.View(func(tx *Tx) { out, ok = tx.FindByStatus(status) })
	return
}

// FindMostRecent returns the most recently inserted live job.
func (t *Table) FindMostRecent() (out Job, ok bool) {
	t.View(func(tx *Tx) { out, ok = tx.FindMostRecent() })
	return
}

// List returns a snapshot of every live job in insertion order.
func (t *Table) List() (out []Job) {
	t.View(func(tx *Tx) { out = tx.List() })
	return
}

// Len returns the number of live jobs.
func (t *Table) Len() (n int) {
	t.View(func(tx *Tx) { n = tx.Len() })
	return
}

func (t *Table) byPid(pid int) *Job {
	for _, j := range t.jobs {
		if j.Pid == pid {
			return j
		}
	}
	return nil
}

func (t *Table) byMember(pid int) *Job {
	for _, j := range t.jobs {
		if j.pending[pid] {
			return j
		}
	}
	return nil
}

// Tx is exclusive access to a Table for the duration of Update or View.
// It must not be retained after the callback returns.
type Tx struct {
	t *Table
}

// Insert adds a job and returns it. The pid must not belong to a live job.
// Members lists the pid of every started stage; if empty only pid is tracked.
func (tx *Tx) Insert(pid, pgid int, name string, status Status, members ...int) Job {
	if len(members) == 0 {
		members = []int{pid}
	}

	j := &Job{
		ID:      tx.t.nextID,
		Name:    name,
		Pid:     pid,
		Pgid:    pgid,
		Status:  status,
		Members: append([]int(nil), members...),
		pending: make(map[int]bool, len(members)),
	}
	for _, m := range members {
		j.pending[m] = true
	}

	tx.t.nextID++
	tx.t.jobs = append(tx.t.jobs, j)
	delete(tx.t.finished, pid)
	return j.snapshot()
}

// ChangeStatus sets the status of the job with the given pid. It returns
// false if no job matched.
func (tx *Tx) ChangeStatus(pid int, status Status) bool {
	j := tx.t.byPid(pid)
	if j == nil {
		return false
	}
	j.Status = status
	return true
}

// SetModes stores the terminal modes of the job with the given pid.
func (tx *Tx) SetModes(pid int, modes *unix.Termios) bool {
	j := tx.t.byPid(pid)
	if j == nil {
		return false
	}
	j.Modes = modes
	return true
}

// Remove deletes the job with the same pid as job, if any.
func (tx *Tx) Remove(job Job) {
	for i, j := range tx.t.jobs {
		if j.Pid == job.Pid {
			tx.t.jobs = append(tx.t.jobs[:i], tx.t.jobs[i+1:]...)
			return
		}
	}
}

// FindByPid looks up a job by its representative pid.
func (tx *Tx) FindByPid(pid int) (Job, bool) {
	if j := tx.t.byPid(pid); j != nil {
		return j.snapshot(), true
	}
	return Job{}, false
}

// FindByID looks up a job by its ID.
func (tx *Tx) FindByID(id int) (Job, bool) {
	for _, j := range tx.t.jobs {
		if j.ID == id {
			return j.snapshot(), true
		}
	}
	return Job{}, false
}

// FindByIndex looks up a job by its 0-based position in the table.
func (tx *Tx) FindByIndex(idx int) (Job, bool) {
	if idx < 0 || idx >= len(tx.t.jobs) {
		return Job{}, false
	}
	return tx.t.jobs[idx].snapshot(), true
}

// FindByStatus returns the first job with the given status.
func (tx *Tx) FindByStatus(status Status) (Job, bool) {
	for _, j := range tx.t.jobs {
		if j.Status == status {
			return j.snapshot(), true
		}
	}
	return Job{}, false
}

// FindMostRecent returns the most recently inserted live job.
func (tx *Tx) FindMostRecent() (Job, bool) {
	if len(tx.t.jobs) == 0 {
		return Job{}, false
	}
	return tx.t.jobs[len(tx.t.jobs)-1].snapshot(), true
}

// List returns a snapshot of every live job in insertion order.
func (tx *Tx) List() []Job {
	out := make([]Job, 0, len(tx.t.jobs))
	for _, j := range tx.t.jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// Len returns the number of live jobs.
func (tx *Tx) Len() int {
	return len(tx.t.jobs)
}

// Apply records a state change reported for the process member and runs the
// matching transition. It returns false if member belongs to no live job or
// the change isn't one the shell tracks.
func (tx *Tx) Apply(member int, ws syscall.WaitStatus) (Change, bool) {
	j := tx.t.byMember(member)
	if j == nil {
		return Change{}, false
	}

	var ev Event
	switch {
	case ws.Stopped():
		ev = stopEvent(ws)

	case ws.Exited(), ws.Signaled():
		if killedBy(j, member, ws) {
			j.killed = true
		}
		if member == j.Members[len(j.Members)-1] {
			j.ExitStatus = shellStatus(ws)
		}
		delete(j.pending, member)
		if len(j.pending) > 0 {
			return Change{Job: j.snapshot(), Event: Exited, Partial: true}, true
		}

		ev = Exited
		if j.killed {
			ev = Killed
		}

	default:
		return Change{}, false
	}

	act := Transition(j.Status, ev)
	if act.Remove {
		if j.Status == Foreground {
			tx.t.finished[j.Pid] = j.snapshot()
		}
		tx.Remove(*j)
	} else {
		j.Status = act.Next
	}

	return Change{Job: j.snapshot(), Event: ev, Action: act}, true
}
