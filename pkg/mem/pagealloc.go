package mem

import (
	"fmt"

	"vkern/pkg/kerr"
)

// PageAllocator hands out pages from the kernel heap using an occupancy
// bitmap. It backs kernel-internal allocations (COW copies, loader
// scratch) and is fully independent of the user mapping tables.
type PageAllocator struct {
	base   uint64
	pages  uint64
	bitmap []uint64
	free   uint64
}

// NewPageAllocator creates an allocator over the region [base, base+size).
// Both base and size must be page-aligned; this is a kernel-internal
// contract, so violations halt.
func NewPageAllocator(base, size uint64) *PageAllocator {
	if !PageAligned(base) || !PageAligned(size) || size == 0 {
		panic(fmt.Sprintf("mem: unaligned allocator region %#x+%#x", base, size))
	}
	pages := size / PageSize
	return &PageAllocator{
		base:   base,
		pages:  pages,
		bitmap: make([]uint64, (pages+63)/64),
		free:   pages,
	}
}

// AllocPages allocates n contiguous pages and returns the address of the
// first one. It scans the bitmap first-fit.
func (a *PageAllocator) AllocPages(n uint64) (uint64, error) {
	if n == 0 || n > a.pages {
		return 0, kerr.InvalidArgument
	}
	if n > a.free {
		return 0, kerr.OutOfMemory
	}

	var run uint64
	var start uint64
	for i := uint64(0); i < a.pages; i++ {
		if a.isSet(i) {
			run = 0
			continue
		}
		if run == 0 {
			start = i
		}
		run++
		if run == n {
			for p := start; p < start+n; p++ {
				a.set(p)
			}
			a.free -= n
			return a.base + start*PageSize, nil
		}
	}
	return 0, kerr.OutOfMemory
}

// FreePages returns n pages starting at addr to the allocator. Misuse
// here means a kernel bug, never a user-triggerable condition, so the
// checks halt instead of returning an error.
func (a *PageAllocator) FreePages(addr, n uint64) {
	if !PageAligned(addr) {
		panic(fmt.Sprintf("mem: freeing unaligned address %#x", addr))
	}
	if addr < a.base || addr+n*PageSize > a.base+a.pages*PageSize {
		panic(fmt.Sprintf("mem: freeing pages outside heap %#x+%d", addr, n))
	}
	first := (addr - a.base) / PageSize
	for p := first; p < first+n; p++ {
		if !a.isSet(p) {
			panic(fmt.Sprintf("mem: double free of page %d", p))
		}
		a.clear(p)
	}
	a.free += n
}

// FreeCount returns the number of free pages.
func (a *PageAllocator) FreeCount() uint64 {
	return a.free
}

// TotalCount returns the total number of pages managed.
func (a *PageAllocator) TotalCount() uint64 {
	return a.pages
}

func (a *PageAllocator) isSet(page uint64) bool {
	return a.bitmap[page/64]&(1<<(page%64)) != 0
}

func (a *PageAllocator) set(page uint64) {
	a.bitmap[page/64] |= 1 << (page % 64)
}

func (a *PageAllocator) clear(page uint64) {
	a.bitmap[page/64] &^= 1 << (page % 64)
}
