package mem

import "vkern/pkg/kerr"

// Address-space geometry. The VM exposes a single flat 4 MiB space; the
// first megabyte is reserved for the kernel and never available to user
// mappings. The display aperture lives outside the flat space entirely.
const (
	// PageSize is the size of one page in bytes.
	PageSize uint64 = 4096
	// AddressSpaceSize is the size of the flat VM address space.
	AddressSpaceSize uint64 = 4 * 1024 * 1024
	// UserBase is the lowest address available to user mappings.
	UserBase uint64 = 1024 * 1024
	// KernelHeapBase is the start of the kernel-internal page heap.
	KernelHeapBase uint64 = 256 * 1024
	// KernelHeapSize is the size of the kernel-internal page heap.
	KernelHeapSize uint64 = 512 * 1024
	// DisplayBase is the start of the display memory aperture.
	DisplayBase uint64 = 0xF0000000
	// DisplaySize is the size of the display memory aperture.
	DisplaySize uint64 = 256 * 1024
	// MaxMapSize is the hard cap on a single mapping.
	MaxMapSize uint64 = 1024 * 1024 * 1024
	// MaxMappings is the capacity of the mapping table.
	MaxMappings = 256
)

// ABI bit positions for permission flags in syscall arguments.
const (
	permBitRead   uint64 = 1 << 0
	permBitWrite  uint64 = 1 << 1
	permBitExec   uint64 = 1 << 2
	permBitShared uint64 = 1 << 3

	permBitsAll = permBitRead | permBitWrite | permBitExec | permBitShared
)

// Perm describes the access permissions of a page or mapping.
type Perm struct {
	// Read allows load access.
	Read bool
	// Write allows store access.
	Write bool
	// Execute allows instruction fetch.
	Execute bool
	// Shared marks the range as shareable across processes.
	Shared bool
}

// PermFromBits decodes a syscall flags argument into a Perm. It rejects
// reserved bits and the empty permission set.
func PermFromBits(bits uint64) (Perm, error) {
	if bits&^permBitsAll != 0 {
		return Perm{}, kerr.InvalidArgument
	}
	p := Perm{
		Read:    bits&permBitRead != 0,
		Write:   bits&permBitWrite != 0,
		Execute: bits&permBitExec != 0,
		Shared:  bits&permBitShared != 0,
	}
	if !p.Read && !p.Write && !p.Execute {
		return Perm{}, kerr.InvalidArgument
	}
	return p, nil
}

// Bits encodes the Perm into its ABI representation.
func (p Perm) Bits() uint64 {
	var bits uint64
	if p.Read {
		bits |= permBitRead
	}
	if p.Write {
		bits |= permBitWrite
	}
	if p.Execute {
		bits |= permBitExec
	}
	if p.Shared {
		bits |= permBitShared
	}
	return bits
}

// PageAligned reports whether v is a multiple of the page size.
func PageAligned(v uint64) bool {
	return v%PageSize == 0
}

// PageRoundUp rounds v up to the next page boundary.
func PageRoundUp(v uint64) uint64 {
	return (v + PageSize - 1) &^ (PageSize - 1)
}
