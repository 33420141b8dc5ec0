package kernel

import (
	"encoding/binary"

	"vkern/pkg/kerr"
)

// Sysinfo record layout: eight little-endian 64-bit fields.
const (
	// SysinfoSize is the byte size of the sysinfo record.
	SysinfoSize uint64 = 64
	// SysinfoVersion is the current record version, field zero.
	SysinfoVersion uint64 = 1
)

// sysSleepUntil succeeds once monotonic time has reached the deadline.
// An unexpired deadline returns WouldBlock; the caller re-issues the
// call on its next slice.
func (k *Kernel) sysSleepUntil(deadline uint64) (uint64, error) {
	if k.timer.Now() >= deadline {
		return 0, nil
	}
	return 0, kerr.WouldBlock
}

// sysSysinfo writes the kernel statistics record into guest memory:
// version, live processes, live mappings, bytes mapped, free heap
// pages, live channels, allocated files, uptime nanoseconds.
func (k *Kernel) sysSysinfo(ptr uint64) (uint64, error) {
	if err := checkUserRange(ptr, SysinfoSize); err != nil {
		return 0, err
	}
	stats := k.mappings.Stats()

	var rec [SysinfoSize]byte
	binary.LittleEndian.PutUint64(rec[0:], SysinfoVersion)
	binary.LittleEndian.PutUint64(rec[8:], uint64(k.procs.Count()))
	binary.LittleEndian.PutUint64(rec[16:], uint64(k.mappings.Count()))
	binary.LittleEndian.PutUint64(rec[24:], stats.MappedBytes)
	binary.LittleEndian.PutUint64(rec[32:], k.heap.FreeCount())
	binary.LittleEndian.PutUint64(rec[40:], uint64(k.channels.Count()))
	binary.LittleEndian.PutUint64(rec[48:], uint64(k.store.FileCount()))
	binary.LittleEndian.PutUint64(rec[56:], k.timer.Uptime())

	if _, err := k.vm.WriteAt(ptr, rec[:]); err != nil {
		return 0, err
	}
	return SysinfoSize, nil
}
