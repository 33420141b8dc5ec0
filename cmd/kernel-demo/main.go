// Kernel Demo - Drives the kernel through its syscall surface
//
// This program boots a kernel over a flat simulated VM memory and
// exercises the main subsystems:
//   - Process: spawn a hand-assembled executable, run slices, wait
//   - Memory: map, protect, unmap
//   - IPC: channel create/send/recv across the memory boundary
//   - Storage: open, write, read, directory iteration
package main

import (
	"encoding/binary"
	"fmt"
	"os"

	hclog "github.com/hashicorp/go-hclog"

	"vkern/pkg/kernel"
	"vkern/pkg/mem"
	"vkern/pkg/proc"
)

func main() {
	fmt.Println("=== Kernel Demo ===")
	fmt.Println()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "vkern",
		Level:  hclog.Info,
		Output: os.Stderr,
	})

	vm := kernel.NewFlatMemory(mem.AddressSpaceSize)
	k, err := kernel.New(kernel.Config{Memory: vm, Logger: logger})
	if err != nil {
		fmt.Printf("Error creating kernel: %v\n", err)
		os.Exit(1)
	}
	k.Boot()

	fmt.Println("--- Process Subsystem ---")
	demoProcess(k, vm)

	fmt.Println()
	fmt.Println("--- Memory Subsystem ---")
	demoMemory(k)

	fmt.Println()
	fmt.Println("--- IPC Channels ---")
	demoChannels(k, vm)

	fmt.Println()
	fmt.Println("--- Storage ---")
	demoStorage(k, vm)

	fmt.Println()
	fmt.Println("--- Sysinfo ---")
	demoSysinfo(k, vm)

	fmt.Println()
	fmt.Println("=== Demo Complete ===")
}

// syscall issues one call through the dispatcher.
func syscall(k *kernel.Kernel, op kernel.Op, args ...uint64) (uint64, error) {
	var a [4]uint64
	copy(a[:], args)
	return k.Dispatch(kernel.SyscallBase+uint64(op), a[0], a[1], a[2], a[3])
}

// buildExecutable assembles a one-segment executable image in the
// kernel's wire format.
func buildExecutable(entry, vaddr uint64, payload []byte) []byte {
	hdr := make([]byte, proc.HeaderSize)
	copy(hdr, []byte{0x7F, 'E', 'L', 'F'})
	hdr[4] = 2 // 64-bit
	hdr[5] = 1 // little-endian
	binary.LittleEndian.PutUint64(hdr[24:], entry)
	binary.LittleEndian.PutUint64(hdr[32:], proc.HeaderSize)
	binary.LittleEndian.PutUint16(hdr[54:], proc.ProgHeaderSize)
	binary.LittleEndian.PutUint16(hdr[56:], 1)

	ph := make([]byte, proc.ProgHeaderSize)
	binary.LittleEndian.PutUint32(ph[0:], proc.SegmentLoad)
	binary.LittleEndian.PutUint32(ph[4:], proc.SegFlagRead|proc.SegFlagExec)
	binary.LittleEndian.PutUint64(ph[8:], proc.HeaderSize+proc.ProgHeaderSize)
	binary.LittleEndian.PutUint64(ph[16:], vaddr)
	binary.LittleEndian.PutUint64(ph[32:], uint64(len(payload)))
	binary.LittleEndian.PutUint64(ph[40:], uint64(len(payload)))
	binary.LittleEndian.PutUint64(ph[48:], mem.PageSize)

	img := append(hdr, ph...)
	return append(img, payload...)
}

// cpu is a minimal register file standing in for the execution engine.
type cpu struct {
	pc, sp uint64
}

func (c *cpu) PC() uint64      { return c.pc }
func (c *cpu) SP() uint64      { return c.sp }
func (c *cpu) SetPC(pc uint64) { c.pc = pc }
func (c *cpu) SetSP(sp uint64) { c.sp = sp }

// demoProcess spawns a process from a hand-assembled image, runs two
// slices, and collects its exit status.
func demoProcess(k *kernel.Kernel, vm *kernel.FlatMemory) {
	img := buildExecutable(mem.UserBase, mem.UserBase, []byte("demo program text"))

	const imageAddr = 0x8000
	if _, err := vm.WriteAt(imageAddr, img); err != nil {
		fmt.Printf("Error staging image: %v\n", err)
		return
	}

	fmt.Println("Spawning process from staged image...")
	pid, err := syscall(k, kernel.OpSpawn, imageAddr, 0, 0)
	if err != nil {
		fmt.Printf("Error spawning: %v\n", err)
		return
	}
	fmt.Printf("Spawned pid %d, entry %#x\n", pid, mem.UserBase)

	engine := &cpu{}
	slices := 0
	for {
		state, err := k.RunSlice(engine, func(maxSteps uint64) proc.RunState {
			// A real VM interprets instructions here; the demo engine
			// "executes" one slice and halts on the second.
			engine.pc += 64
			if slices >= 1 {
				return proc.RunStateHalted
			}
			return proc.RunStateRunning
		}, 1000)
		if err != nil {
			fmt.Printf("Error running slice: %v\n", err)
			return
		}
		slices++
		fmt.Printf("Slice %d ended %s at pc %#x\n", slices, runStateName(state), engine.pc)
		if state != proc.RunStateRunning {
			break
		}
	}

	status, err := syscall(k, kernel.OpWait, pid)
	if err != nil {
		fmt.Printf("Error waiting: %v\n", err)
		return
	}
	fmt.Printf("Process %d exited with status %d\n", pid, status)
}

func runStateName(s proc.RunState) string {
	switch s {
	case proc.RunStateRunning:
		return "running"
	case proc.RunStateHalted:
		return "halted"
	case proc.RunStateFaulted:
		return "faulted"
	}
	return "unknown"
}

// demoMemory maps, protects, and unmaps a region.
func demoMemory(k *kernel.Kernel) {
	fmt.Println("Mapping 4 pages read-write...")
	addr, err := syscall(k, kernel.OpMap, 0, 4*mem.PageSize, 0x3)
	if err != nil {
		fmt.Printf("Error mapping: %v\n", err)
		return
	}
	fmt.Printf("Kernel chose address %#x\n", addr)

	access := k.CheckAccess(addr)
	fmt.Printf("Access: read=%v write=%v execute=%v\n", access.Read, access.Write, access.Execute)

	fmt.Println("Protecting read-only...")
	if _, err := syscall(k, kernel.OpProtect, addr, 0x1); err != nil {
		fmt.Printf("Error protecting: %v\n", err)
		return
	}
	access = k.CheckAccess(addr)
	fmt.Printf("Access: read=%v write=%v execute=%v\n", access.Read, access.Write, access.Execute)

	if _, err := syscall(k, kernel.OpUnmap, addr); err != nil {
		fmt.Printf("Error unmapping: %v\n", err)
		return
	}
	fmt.Println("Unmapped")
}

// demoChannels round-trips a message through a channel.
func demoChannels(k *kernel.Kernel, vm *kernel.FlatMemory) {
	ch, err := syscall(k, kernel.OpChannelCreate)
	if err != nil {
		fmt.Printf("Error creating channel: %v\n", err)
		return
	}
	fmt.Printf("Created channel %d\n", ch)

	msg := []byte("hello over IPC")
	vm.WriteAt(0x4000, msg)
	if _, err := syscall(k, kernel.OpChannelSend, ch, 0x4000, uint64(len(msg))); err != nil {
		fmt.Printf("Error sending: %v\n", err)
		return
	}
	fmt.Printf("Sent %d bytes\n", len(msg))

	n, err := syscall(k, kernel.OpChannelRecv, ch, 0x5000, 4096)
	if err != nil {
		fmt.Printf("Error receiving: %v\n", err)
		return
	}
	out, _ := vm.ReadAt(0x5000, n)
	fmt.Printf("Received %q\n", string(out))
}

// demoStorage exercises the file syscalls and directory iteration.
func demoStorage(k *kernel.Kernel, vm *kernel.FlatMemory) {
	stage := func(addr uint64, s string) uint64 {
		vm.WriteAt(addr, []byte(s))
		return uint64(len(s))
	}

	dirLen := stage(0x4000, "docs")
	if _, err := syscall(k, kernel.OpMkdir, 0x4000, dirLen); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		return
	}
	fmt.Println("Created directory docs")

	nameLen := stage(0x4100, "docs/readme.txt")
	h, err := syscall(k, kernel.OpOpen, 0x4100, nameLen, 0x3)
	if err != nil {
		fmt.Printf("Error opening: %v\n", err)
		return
	}

	body := stage(0x5000, "Hello from the bounded file store!")
	n, err := syscall(k, kernel.OpWrite, h, 0x5000, body)
	if err != nil {
		fmt.Printf("Error writing: %v\n", err)
		return
	}
	fmt.Printf("Wrote %d bytes to docs/readme.txt\n", n)
	syscall(k, kernel.OpClose, h)

	dh, err := syscall(k, kernel.OpOpendir, 0x4000, dirLen)
	if err != nil {
		fmt.Printf("Error opening directory: %v\n", err)
		return
	}
	for {
		n, err := syscall(k, kernel.OpReaddir, dh, 0x6000, 256)
		if err != nil {
			fmt.Printf("Error iterating: %v\n", err)
			return
		}
		if n == 0 {
			break
		}
		entry, _ := vm.ReadAt(0x6000, n)
		fmt.Printf("Directory entry: %s\n", string(entry))
	}
	syscall(k, kernel.OpClosedir, dh)
}

// demoSysinfo dumps the kernel statistics record.
func demoSysinfo(k *kernel.Kernel, vm *kernel.FlatMemory) {
	if _, err := syscall(k, kernel.OpSysinfo, 0x7000); err != nil {
		fmt.Printf("Error reading sysinfo: %v\n", err)
		return
	}
	rec, _ := vm.ReadAt(0x7000, kernel.SysinfoSize)

	labels := []string{
		"version", "processes", "mappings", "mapped bytes",
		"free heap pages", "channels", "files", "uptime ns",
	}
	for i, label := range labels {
		fmt.Printf("%-16s %d\n", label, binary.LittleEndian.Uint64(rec[i*8:]))
	}
}
