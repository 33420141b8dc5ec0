package kernel

import (
	"vkern/pkg/kerr"
	"vkern/pkg/mem"
	"vkern/pkg/proc"
)

// maxSpawnArgs bounds the argument buffer handed to spawn.
const maxSpawnArgs uint64 = 64 * 1024

// faultExitStatus is the exit status of a process retired on an
// unrecoverable fault.
const faultExitStatus uint8 = 0xFF

// segPerm derives mapping permissions from segment flag bits. A segment
// with no flag bits at all still loads readable.
func segPerm(flags uint32) mem.Perm {
	p := mem.Perm{
		Read:    flags&proc.SegFlagRead != 0,
		Write:   flags&proc.SegFlagWrite != 0,
		Execute: flags&proc.SegFlagExec != 0,
	}
	if !p.Read && !p.Write && !p.Execute {
		p.Read = true
	}
	return p
}

// currentProc returns the process the scheduler is running.
func (k *Kernel) currentProc() (*proc.Process, error) {
	if k.sched.Current == 0 {
		return nil, kerr.NotFound
	}
	return k.procs.Get(k.sched.Current)
}

// retire marks a process exited, clears it from the scheduler, and
// sweeps its resources.
func (k *Kernel) retire(p *proc.Process, status uint8) {
	p.State = proc.StateExited
	p.ExitStatus = status
	if k.sched.Current == p.PID {
		k.sched.Current = 0
	}
	reclaimed := k.Cleanup(p.PID)
	k.log.Info("process exited", "pid", p.PID, "status", status, "reclaimed", reclaimed)
}

// sysSpawn creates a process from an executable image in guest memory.
// The image is read from execPtr to the end of the address space; the
// header and program-header table bound how much of it is acted on.
// Validation completes before any table mutation, and a mapping failure
// mid-load rolls the new process back without a trace.
func (k *Kernel) sysSpawn(execPtr, argsPtr, argsLen uint64) (uint64, error) {
	if execPtr == 0 {
		return 0, kerr.InvalidAddress
	}
	if execPtr >= mem.AddressSpaceSize || mem.AddressSpaceSize-execPtr < proc.HeaderSize {
		return 0, kerr.OutOfBounds
	}
	if argsLen > maxSpawnArgs {
		return 0, kerr.InvalidArgument
	}
	if err := checkUserRange(argsPtr, argsLen); err != nil {
		return 0, err
	}

	image, err := k.vm.ReadAt(execPtr, mem.AddressSpaceSize-execPtr)
	if err != nil {
		return 0, err
	}
	img, err := proc.ParseImage(image)
	if err != nil {
		return 0, err
	}
	// Segments must land in user space. A zero vaddr would otherwise
	// take the kernel-chooses mapping path while the copy still targets
	// the reserved region.
	for _, seg := range img.Segments {
		if seg.MemSize == 0 {
			continue
		}
		if seg.Vaddr < mem.UserBase {
			return 0, kerr.InvalidAddress
		}
	}

	p, err := k.procs.Allocate()
	if err != nil {
		return 0, err
	}

	for _, seg := range img.Segments {
		if seg.MemSize == 0 {
			continue
		}
		size := mem.PageRoundUp(seg.MemSize)
		if _, err := k.mappings.Map(p.PID, seg.Vaddr, size, segPerm(seg.Flags)); err != nil {
			k.unwindSpawn(p.PID)
			return 0, err
		}
		if seg.FileSize > 0 {
			if _, err := k.vm.WriteAt(seg.Vaddr, image[seg.Offset:seg.Offset+seg.FileSize]); err != nil {
				k.unwindSpawn(p.PID)
				return 0, err
			}
		}
		if tail := seg.MemSize - seg.FileSize; tail > 0 {
			if _, err := k.vm.WriteAt(seg.Vaddr+seg.FileSize, make([]byte, tail)); err != nil {
				k.unwindSpawn(p.PID)
				return 0, err
			}
		}
	}

	p.ImageAddr = execPtr
	p.ImageLen = uint64(len(image))
	p.Entry = img.Entry
	p.Context = proc.NewContext(img.Entry, proc.DefaultStackTop)
	p.State = proc.StateRunning
	k.sched.Current = p.PID

	k.log.Info("spawn", "pid", p.PID, "entry", img.Entry, "segments", len(img.Segments))
	return p.PID, nil
}

// unwindSpawn erases a half-built process: mappings first, then the
// slot.
func (k *Kernel) unwindSpawn(pid uint64) {
	k.mappings.ReleaseOwned(pid)
	k.procs.Free(pid)
}

// sysExit retires the current process with the low byte of status. Exit
// never fails, even called from an idle machine.
func (k *Kernel) sysExit(status uint64) (uint64, error) {
	p, err := k.currentProc()
	if err != nil {
		return 0, nil
	}
	k.retire(p, uint8(status))
	return 0, nil
}

// sysYield is a scheduling hint only.
func (k *Kernel) sysYield() (uint64, error) {
	return 0, nil
}

// sysWait collects the exit status of an exited process. A still-running
// target returns WouldBlock; the caller polls.
func (k *Kernel) sysWait(pid uint64) (uint64, error) {
	p, err := k.procs.Get(pid)
	if err != nil {
		return 0, err
	}
	switch p.State {
	case proc.StateExited:
		return uint64(p.ExitStatus), nil
	case proc.StateRunning:
		return 0, kerr.WouldBlock
	}
	return 0, kerr.NotFound
}

// sysKill sends a signal to the target process. The kill signal retires
// the target immediately with status 128 plus the signal number.
func (k *Kernel) sysKill(pid, sig uint64) (uint64, error) {
	p, err := k.procs.Get(pid)
	if err != nil {
		return 0, err
	}
	if p.State != proc.StateRunning {
		return 0, kerr.NotFound
	}
	terminate, err := p.Signals.Send(sig)
	if err != nil {
		return 0, err
	}
	if terminate {
		k.retire(p, proc.KillExitBase+uint8(sig))
	}
	return 0, nil
}

// sysSignal installs a bare handler for a signal on the calling process.
func (k *Kernel) sysSignal(sig, handler uint64) (uint64, error) {
	p, err := k.currentProc()
	if err != nil {
		return 0, err
	}
	return 0, p.Signals.Register(sig, handler)
}

// sysSigaction installs a full signal action on the calling process.
func (k *Kernel) sysSigaction(sig, handler, mask, flags uint64) (uint64, error) {
	p, err := k.currentProc()
	if err != nil {
		return 0, err
	}
	act := proc.Action{
		Handler: handler,
		Mask:    uint32(mask),
		Flags:   flags,
	}
	return 0, p.Signals.Sigaction(sig, act)
}
