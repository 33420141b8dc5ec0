package kernel

import (
	"vkern/pkg/kerr"
	"vkern/pkg/proc"
)

// StepFunc runs up to maxSteps instructions on the execution engine and
// reports its run state. The VM supplies it; the kernel never steps
// instructions itself.
type StepFunc func(maxSteps uint64) proc.RunState

// RunSlice executes one time slice: pick the current process (or the
// next runnable one), switch its context into the engine, run a bounded
// batch of instructions, and save the context back. A halted process is
// retired with status zero, a faulted one with the fault status; a
// still-running process yields the slice and the scheduler rotates.
// With no runnable process at all it returns NotFound and the stepping
// loop idles.
func (k *Kernel) RunSlice(cpu proc.CPU, step StepFunc, maxSteps uint64) (proc.RunState, error) {
	k.booted()

	pid := k.sched.Current
	if pid == 0 {
		pid = k.sched.FindNextRunnable(k.procs)
		if pid == 0 {
			return proc.RunStateHalted, kerr.NotFound
		}
		k.sched.Current = pid
	}
	p, err := k.procs.Get(pid)
	if err != nil {
		k.sched.Current = 0
		return proc.RunStateFaulted, err
	}

	p.Context.SwitchIn(cpu)
	state := step(maxSteps)
	p.Context.Save(cpu)

	switch state {
	case proc.RunStateHalted:
		k.retire(p, 0)
	case proc.RunStateFaulted:
		k.log.Warn("process faulted", "pid", p.PID, "pc", p.Context.PC)
		k.retire(p, faultExitStatus)
	case proc.RunStateRunning:
		k.sched.Current = k.sched.FindNextRunnable(k.procs)
	}
	return state, nil
}
