package kernel

import (
	"vkern/pkg/kerr"
	"vkern/pkg/mem"
)

// Memory is the kernel's window onto the VM's flat memory. The host VM
// injects an implementation at construction; syscall handlers move all
// guest bytes through it.
type Memory interface {
	// ReadAt copies n bytes starting at addr out of guest memory.
	ReadAt(addr, n uint64) ([]byte, error)
	// WriteAt copies b into guest memory at addr and returns the
	// number of bytes written.
	WriteAt(addr uint64, b []byte) (uint64, error)
}

// FlatMemory is a Memory over a plain byte slice. The demo and the
// tests use it in place of a real VM.
type FlatMemory struct {
	buf []byte
}

// NewFlatMemory creates a zeroed flat memory of the given size.
func NewFlatMemory(size uint64) *FlatMemory {
	return &FlatMemory{buf: make([]byte, size)}
}

// ReadAt implements Memory.
func (m *FlatMemory) ReadAt(addr, n uint64) ([]byte, error) {
	if addr > uint64(len(m.buf)) || n > uint64(len(m.buf))-addr {
		return nil, kerr.OutOfBounds
	}
	out := make([]byte, n)
	copy(out, m.buf[addr:addr+n])
	return out, nil
}

// WriteAt implements Memory.
func (m *FlatMemory) WriteAt(addr uint64, b []byte) (uint64, error) {
	if addr > uint64(len(m.buf)) || uint64(len(b)) > uint64(len(m.buf))-addr {
		return 0, kerr.OutOfBounds
	}
	copy(m.buf[addr:], b)
	return uint64(len(b)), nil
}

// readUser validates a guest pointer/length pair against the flat
// address space and reads the bytes. A zero pointer with a non-zero
// length is invalid; a range leaving the space is out of bounds.
func (k *Kernel) readUser(ptr, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if ptr == 0 {
		return nil, kerr.InvalidAddress
	}
	if ptr >= mem.AddressSpaceSize || length > mem.AddressSpaceSize-ptr {
		return nil, kerr.OutOfBounds
	}
	return k.vm.ReadAt(ptr, length)
}

// writeUser validates a guest pointer/length pair and writes the bytes.
func (k *Kernel) writeUser(ptr uint64, b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if ptr == 0 {
		return 0, kerr.InvalidAddress
	}
	if ptr >= mem.AddressSpaceSize || uint64(len(b)) > mem.AddressSpaceSize-ptr {
		return 0, kerr.OutOfBounds
	}
	return k.vm.WriteAt(ptr, b)
}

// checkUserRange validates a guest pointer/length pair without moving
// any bytes.
func checkUserRange(ptr, length uint64) error {
	if length == 0 {
		return nil
	}
	if ptr == 0 {
		return kerr.InvalidAddress
	}
	if ptr >= mem.AddressSpaceSize || length > mem.AddressSpaceSize-ptr {
		return kerr.OutOfBounds
	}
	return nil
}
