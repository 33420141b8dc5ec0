package proc

// MaxProcesses is the capacity of the process table.
const MaxProcesses = 64

// DefaultStackTop is the initial stack pointer handed to a fresh
// process.
const DefaultStackTop uint64 = 4*1024*1024 - 16

// State is the lifecycle state of a process slot.
type State uint8

const (
	// StateFree marks an unallocated slot.
	StateFree State = iota
	// StateRunning marks a live, schedulable process.
	StateRunning
	// StateExited marks a terminated process whose status is
	// collectable.
	StateExited
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	}
	return "unknown"
}

// CPU is the execution engine's register file as the kernel sees it.
// The VM implements it; the kernel only ever moves the program counter
// and stack pointer across it during context switches.
type CPU interface {
	// PC returns the current program counter.
	PC() uint64
	// SP returns the current stack pointer.
	SP() uint64
	// SetPC sets the program counter.
	SetPC(pc uint64)
	// SetSP sets the stack pointer.
	SetSP(sp uint64)
}

// RunState is the engine's verdict after a bounded batch of
// instructions.
type RunState uint8

const (
	// RunStateRunning means the slice ended with the process still
	// runnable.
	RunStateRunning RunState = iota
	// RunStateHalted means the process executed its halt path.
	RunStateHalted
	// RunStateFaulted means the process hit an unrecoverable fault.
	RunStateFaulted
)

// Context is the saved execution state of one process. It is owned
// exclusively by its process: created at spawn, mutated on every
// context switch, destroyed with the slot.
type Context struct {
	// PC is the saved program counter.
	PC uint64
	// SP is the saved stack pointer.
	SP uint64
	// Entry is the image entry point the context was seeded with.
	Entry uint64
	// Initialized is true once the context has been seeded.
	Initialized bool
}

// NewContext seeds a context at the entry point with the given stack
// pointer.
func NewContext(entry, sp uint64) Context {
	return Context{
		PC:          entry,
		SP:          sp,
		Entry:       entry,
		Initialized: true,
	}
}

// SwitchIn copies the saved registers into the engine before a slice.
func (c *Context) SwitchIn(cpu CPU) {
	cpu.SetPC(c.PC)
	cpu.SetSP(c.SP)
}

// Save copies the engine registers back after a slice.
func (c *Context) Save(cpu CPU) {
	c.PC = cpu.PC()
	c.SP = cpu.SP()
}

// Process is one process table record.
type Process struct {
	// PID is the process id, unique for the life of the kernel.
	PID uint64
	// State is the slot's lifecycle state.
	State State
	// ExitStatus is valid once State is StateExited.
	ExitStatus uint8
	// ImageAddr and ImageLen locate the executable image in VM memory.
	ImageAddr uint64
	ImageLen  uint64
	// Entry is the image entry point.
	Entry uint64
	// Context is the saved execution state.
	Context Context
	// Signals is the per-process signal table.
	Signals SignalTable

	allocated bool
}

// Runnable reports whether the process can be scheduled.
func (p *Process) Runnable() bool {
	return p.allocated && p.State == StateRunning
}
