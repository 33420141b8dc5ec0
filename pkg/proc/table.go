package proc

import "vkern/pkg/kerr"

// Table is the fixed-capacity process table. PIDs are allocated
// monotonically starting at one and never reused.
type Table struct {
	slots   [MaxProcesses]Process
	nextPID uint64
}

// NewTable creates an empty process table.
func NewTable() *Table {
	return &Table{nextPID: 1}
}

// Allocate claims a free slot, assigns it a fresh pid, and returns it.
func (t *Table) Allocate() (*Process, error) {
	for i := range t.slots {
		if !t.slots[i].allocated {
			pid := t.nextPID
			t.nextPID++
			t.slots[i] = Process{
				PID:       pid,
				State:     StateFree,
				allocated: true,
			}
			return &t.slots[i], nil
		}
	}
	return nil, kerr.OutOfMemory
}

// Get returns the live process with the given pid.
func (t *Table) Get(pid uint64) (*Process, error) {
	if pid == 0 {
		return nil, kerr.InvalidArgument
	}
	for i := range t.slots {
		if t.slots[i].allocated && t.slots[i].PID == pid {
			return &t.slots[i], nil
		}
	}
	return nil, kerr.NotFound
}

// Free returns the slot holding pid to the table, destroying its
// context.
func (t *Table) Free(pid uint64) error {
	for i := range t.slots {
		if t.slots[i].allocated && t.slots[i].PID == pid {
			t.slots[i] = Process{}
			return nil
		}
	}
	return kerr.NotFound
}

// Count returns the number of allocated slots.
func (t *Table) Count() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].allocated {
			n++
		}
	}
	return n
}

// slot returns the i'th slot for scheduler scans.
func (t *Table) slot(i int) *Process {
	return &t.slots[i]
}

// Scheduler tracks the currently running process and the round-robin
// cursor. It never blocks and never preempts; the external stepping
// loop asks it who runs next.
type Scheduler struct {
	// Current is the pid of the running process, zero when idle.
	Current uint64

	cursor int
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// FindNextRunnable scans the table round-robin from the cursor,
// wrapping once, and returns the first runnable pid or zero when none
// exists. The cursor advances past the returned slot so repeated calls
// rotate through all runnable processes.
func (s *Scheduler) FindNextRunnable(t *Table) uint64 {
	for scanned := 0; scanned < MaxProcesses; scanned++ {
		i := (s.cursor + scanned) % MaxProcesses
		p := t.slot(i)
		if p.Runnable() {
			s.cursor = (i + 1) % MaxProcesses
			return p.PID
		}
	}
	return 0
}
