package kernel

import (
	"fmt"

	hclog "github.com/hashicorp/go-hclog"

	"vkern/pkg/channel"
	"vkern/pkg/kerr"
	"vkern/pkg/ktime"
	"vkern/pkg/mem"
	"vkern/pkg/proc"
	"vkern/pkg/storage"
	"vkern/pkg/user"
)

// BootPhase is one step of the strictly ordered boot sequence.
type BootPhase uint8

// Boot phases, in order. Advancing out of order is a programming error
// and halts the kernel.
const (
	PhaseEarly BootPhase = iota
	PhaseTimer
	PhaseInterrupt
	PhaseMemory
	PhaseStorage
	PhaseScheduler
	PhaseChannels
	PhaseInput
	PhaseUsers
	PhaseComplete
)

var phaseNames = map[BootPhase]string{
	PhaseEarly:     "early",
	PhaseTimer:     "timer",
	PhaseInterrupt: "interrupt",
	PhaseMemory:    "memory",
	PhaseStorage:   "storage",
	PhaseScheduler: "scheduler",
	PhaseChannels:  "channels",
	PhaseInput:     "input",
	PhaseUsers:     "users",
	PhaseComplete:  "complete",
}

// String returns the phase name.
func (p BootPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// Config holds the kernel's injected collaborators. Table capacities
// are fixed compile-time bounds and are not configurable.
type Config struct {
	// Memory is the VM's flat memory. Required.
	Memory Memory
	// Logger receives kernel logs. Defaults to a null logger.
	Logger hclog.Logger
	// Clock is the time source. Defaults to the system clock.
	Clock ktime.Clock
}

// Kernel is the whole machine state. One instance per VM; every call
// threads through it explicitly.
type Kernel struct {
	log   hclog.Logger
	clock ktime.Clock
	vm    Memory
	phase BootPhase

	pages    *mem.PageTable
	mappings *mem.MappingTable
	cow      *mem.CowTable
	heap     *mem.PageAllocator
	store    *storage.Storage
	channels *channel.Table
	procs    *proc.Table
	sched    *proc.Scheduler
	users    *user.Roster
	timer    *ktime.Timer
	irq      *ktime.InterruptController
}

// New creates an unbooted kernel. Call Boot before dispatching.
func New(cfg Config) (*Kernel, error) {
	if cfg.Memory == nil {
		return nil, kerr.InvalidArgument
	}
	log := cfg.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = ktime.NewSystemClock()
	}
	return &Kernel{
		log:   log.Named("kern"),
		clock: clock,
		vm:    cfg.Memory,
		phase: PhaseEarly,
	}, nil
}

// advance moves to the next boot phase. The sequence is strictly
// monotonic; skipping or repeating a phase is a kernel bug.
func (k *Kernel) advance(next BootPhase) {
	if next != k.phase+1 {
		panic(fmt.Sprintf("kernel: boot phase %s cannot follow %s", next, k.phase))
	}
	k.phase = next
	k.log.Info("boot phase", "phase", next.String())
}

// Phase returns the current boot phase.
func (k *Kernel) Phase() BootPhase {
	return k.phase
}

// Boot runs the full boot sequence, initializing each subsystem in its
// phase. It must be called exactly once, before any dispatch.
func (k *Kernel) Boot() {
	k.advance(PhaseTimer)
	k.timer = ktime.NewTimer(k.clock)

	k.advance(PhaseInterrupt)
	k.irq = ktime.NewInterruptController()

	k.advance(PhaseMemory)
	k.pages = mem.NewPageTable()
	k.mappings = mem.NewMappingTable(k.pages)
	k.cow = mem.NewCowTable()
	k.heap = mem.NewPageAllocator(mem.KernelHeapBase, mem.KernelHeapSize)

	k.advance(PhaseStorage)
	k.store = storage.New()

	k.advance(PhaseScheduler)
	k.procs = proc.NewTable()
	k.sched = proc.NewScheduler()

	k.advance(PhaseChannels)
	k.channels = channel.NewTable()

	// Input devices are host-serviced; the phase only marks the point
	// in the sequence where the host may attach them.
	k.advance(PhaseInput)

	k.advance(PhaseUsers)
	k.users = user.NewRoster()

	k.advance(PhaseComplete)
	k.log.Info("boot complete",
		"address_space", mem.AddressSpaceSize,
		"users", k.users.Count(),
	)
}

// booted panics when the kernel is used before boot completes. Reaching
// a syscall with a half-booted kernel is a host bug, not a user error.
func (k *Kernel) booted() {
	if k.phase != PhaseComplete {
		panic(fmt.Sprintf("kernel: dispatch before boot complete (phase %s)", k.phase))
	}
}

// CurrentPID returns the pid of the running process, zero when idle.
func (k *Kernel) CurrentPID() uint64 {
	return k.sched.Current
}

// Users returns the boot-seeded user roster.
func (k *Kernel) Users() *user.Roster {
	return k.users
}

// Interrupts returns the interrupt controller for host wiring.
func (k *Kernel) Interrupts() *ktime.InterruptController {
	return k.irq
}

// CheckAccess resolves the permissions the VM should enforce for an
// arbitrary guest address.
func (k *Kernel) CheckAccess(addr uint64) mem.Access {
	k.booted()
	return k.mappings.CheckAccess(addr)
}

// IncrementPageRefs bumps the sharing count for a page range, making
// it a copy-on-write candidate.
func (k *Kernel) IncrementPageRefs(addr, size uint64) error {
	k.booted()
	return k.cow.IncrementRange(addr, size)
}

// DecrementPageRefs drops the sharing count for a page range. The COW
// mark clears itself once a page is no longer shared.
func (k *Kernel) DecrementPageRefs(addr, size uint64) error {
	k.booted()
	return k.cow.DecrementRange(addr, size)
}

// MarkCopyOnWrite marks a shared page range copy-on-write.
func (k *Kernel) MarkCopyOnWrite(addr, size uint64) error {
	k.booted()
	return k.cow.MarkCow(addr, size)
}

// ResolveWriteFault handles a VM write fault at addr. When the faulting
// page is copy-on-write eligible the kernel privatizes it (one sharer
// fewer, mark dropped once unshared) and reports true so the VM can
// retry the store; otherwise the fault is genuine.
func (k *Kernel) ResolveWriteFault(addr uint64) (bool, error) {
	k.booted()
	if !k.cow.Eligible(addr) {
		return false, nil
	}
	page := addr &^ (mem.PageSize - 1)
	if err := k.cow.DecrementRange(page, mem.PageSize); err != nil {
		return false, err
	}
	k.log.Debug("cow fault resolved", "addr", addr)
	return true, nil
}
