package kernel

import (
	"fmt"

	"vkern/pkg/kerr"
)

// SyscallBase is the first raw number in the kernel syscall range.
// Numbers below it belong to the hypervisor-call range and never reach
// these handlers.
const SyscallBase uint64 = 0x100

// Op identifies one kernel operation. Raw syscall numbers decode as
// raw minus SyscallBase.
type Op uint64

// Kernel operations.
const (
	OpSpawn Op = 1
	OpExit  Op = 2
	OpYield Op = 3
	OpWait  Op = 4

	OpMap     Op = 10
	OpUnmap   Op = 11
	OpProtect Op = 12

	OpChannelCreate Op = 20
	OpChannelSend   Op = 21
	OpChannelRecv   Op = 22

	OpOpen     Op = 30
	OpRead     Op = 31
	OpWrite    Op = 32
	OpClose    Op = 33
	OpUnlink   Op = 34
	OpRename   Op = 35
	OpMkdir    Op = 36
	OpOpendir  Op = 37
	OpReaddir  Op = 38
	OpClosedir Op = 39

	OpClockGettime Op = 40
	OpSleepUntil   Op = 41

	OpSysinfo Op = 50

	OpReadInputEvent Op = 60

	OpFbClear     Op = 70
	OpFbDrawPixel Op = 71
	OpFbDrawText  Op = 72

	OpKill      Op = 80
	OpSignal    Op = 81
	OpSigaction Op = 82
)

var opNames = map[Op]string{
	OpSpawn:          "spawn",
	OpExit:           "exit",
	OpYield:          "yield",
	OpWait:           "wait",
	OpMap:            "map",
	OpUnmap:          "unmap",
	OpProtect:        "protect",
	OpChannelCreate:  "channel_create",
	OpChannelSend:    "channel_send",
	OpChannelRecv:    "channel_recv",
	OpOpen:           "open",
	OpRead:           "read",
	OpWrite:          "write",
	OpClose:          "close",
	OpUnlink:         "unlink",
	OpRename:         "rename",
	OpMkdir:          "mkdir",
	OpOpendir:        "opendir",
	OpReaddir:        "readdir",
	OpClosedir:       "closedir",
	OpClockGettime:   "clock_gettime",
	OpSleepUntil:     "sleep_until",
	OpSysinfo:        "sysinfo",
	OpReadInputEvent: "read_input_event",
	OpFbClear:        "fb_clear",
	OpFbDrawPixel:    "fb_draw_pixel",
	OpFbDrawText:     "fb_draw_text",
	OpKill:           "kill",
	OpSignal:         "signal",
	OpSigaction:      "sigaction",
}

// String returns the operation name.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint64(op))
}

// Dispatch validates a raw syscall number, decodes it, and routes it to
// its handler with four 64-bit arguments. Each call is a single atomic
// state transition for the calling process: either the handler's full
// effect happens or no table changes at all.
func (k *Kernel) Dispatch(num, a0, a1, a2, a3 uint64) (uint64, error) {
	k.booted()

	if num < SyscallBase {
		k.log.Debug("hypervisor-range call rejected", "num", num)
		return 0, kerr.InvalidSyscall
	}
	op := Op(num - SyscallBase)
	k.log.Debug("syscall", "op", op.String(), "a0", a0, "a1", a1, "a2", a2, "a3", a3)

	switch op {
	case OpSpawn:
		return k.sysSpawn(a0, a1, a2)
	case OpExit:
		return k.sysExit(a0)
	case OpYield:
		return k.sysYield()
	case OpWait:
		return k.sysWait(a0)

	case OpMap:
		return k.sysMap(a0, a1, a2)
	case OpUnmap:
		return k.sysUnmap(a0)
	case OpProtect:
		return k.sysProtect(a0, a1)

	case OpChannelCreate:
		return k.sysChannelCreate()
	case OpChannelSend:
		return k.sysChannelSend(a0, a1, a2)
	case OpChannelRecv:
		return k.sysChannelRecv(a0, a1, a2)

	case OpOpen:
		return k.sysOpen(a0, a1, a2)
	case OpRead:
		return k.sysRead(a0, a1, a2)
	case OpWrite:
		return k.sysWrite(a0, a1, a2)
	case OpClose:
		return k.sysClose(a0)
	case OpUnlink:
		return k.sysUnlink(a0, a1)
	case OpRename:
		return k.sysRename(a0, a1, a2, a3)
	case OpMkdir:
		return k.sysMkdir(a0, a1)
	case OpOpendir:
		return k.sysOpendir(a0, a1)
	case OpReaddir:
		return k.sysReaddir(a0, a1, a2)
	case OpClosedir:
		return k.sysClosedir(a0)

	case OpSleepUntil:
		return k.sysSleepUntil(a0)
	case OpSysinfo:
		return k.sysSysinfo(a0)

	case OpClockGettime, OpReadInputEvent, OpFbClear, OpFbDrawPixel, OpFbDrawText:
		// Host-serviced operations. A host integration layer intercepts
		// these before they reach the core; arriving here means nobody
		// did.
		return 0, kerr.InvalidSyscall

	case OpKill:
		return k.sysKill(a0, a1)
	case OpSignal:
		return k.sysSignal(a0, a1)
	case OpSigaction:
		return k.sysSigaction(a0, a1, a2, a3)
	}

	return 0, kerr.InvalidSyscall
}
