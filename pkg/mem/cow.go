package mem

import "vkern/pkg/kerr"

// maxRefCount is the highest sharing count a page can carry.
const maxRefCount = 255

// CowPageEntry tracks the sharing state of one page.
type CowPageEntry struct {
	// RefCount is the number of owners sharing the page.
	RefCount uint8
	// Cow is true while the page must be copied before a private write.
	Cow bool
}

// CowTable holds per-page reference counts and copy-on-write marks. It is
// independent of the page table and is consulted on write faults: a page
// is eligible for copy-on-write exactly when its reference count is
// greater than one and the mark is set.
type CowTable struct {
	entries []CowPageEntry
}

// NewCowTable creates a COW table covering the whole flat space.
func NewCowTable() *CowTable {
	return &CowTable{
		entries: make([]CowPageEntry, AddressSpaceSize/PageSize),
	}
}

func (t *CowTable) rangeOf(addr, size uint64) (uint64, uint64, error) {
	if !PageAligned(addr) || !PageAligned(size) {
		return 0, 0, kerr.UnalignedAccess
	}
	if size == 0 {
		return 0, 0, kerr.InvalidArgument
	}
	first := addr / PageSize
	count := size / PageSize
	if first+count > uint64(len(t.entries)) {
		return 0, 0, kerr.OutOfBounds
	}
	return first, count, nil
}

// IncrementRange bumps the reference count of every page in the range.
func (t *CowTable) IncrementRange(addr, size uint64) error {
	first, count, err := t.rangeOf(addr, size)
	if err != nil {
		return err
	}
	for i := first; i < first+count; i++ {
		if t.entries[i].RefCount == maxRefCount {
			return kerr.OutOfMemory
		}
	}
	for i := first; i < first+count; i++ {
		t.entries[i].RefCount++
	}
	return nil
}

// DecrementRange drops the reference count of every page in the range.
// The COW mark clears automatically once a page's count falls to one or
// below; a count of zero means the page is unshared and free.
func (t *CowTable) DecrementRange(addr, size uint64) error {
	first, count, err := t.rangeOf(addr, size)
	if err != nil {
		return err
	}
	for i := first; i < first+count; i++ {
		if t.entries[i].RefCount == 0 {
			return kerr.InvalidArgument
		}
	}
	for i := first; i < first+count; i++ {
		t.entries[i].RefCount--
		if t.entries[i].RefCount <= 1 {
			t.entries[i].Cow = false
		}
	}
	return nil
}

// MarkCow sets the copy-on-write mark on every page in the range. A mark
// requires sharing, so every page must carry a reference count above one.
func (t *CowTable) MarkCow(addr, size uint64) error {
	first, count, err := t.rangeOf(addr, size)
	if err != nil {
		return err
	}
	for i := first; i < first+count; i++ {
		if t.entries[i].RefCount <= 1 {
			return kerr.InvalidArgument
		}
	}
	for i := first; i < first+count; i++ {
		t.entries[i].Cow = true
	}
	return nil
}

// Eligible reports whether the page holding addr must be copied before a
// private write.
func (t *CowTable) Eligible(addr uint64) bool {
	page := addr / PageSize
	if page >= uint64(len(t.entries)) {
		return false
	}
	e := t.entries[page]
	return e.Cow && e.RefCount > 1
}

// RefCount returns the reference count of the page holding addr.
func (t *CowTable) RefCount(addr uint64) uint8 {
	page := addr / PageSize
	if page >= uint64(len(t.entries)) {
		return 0
	}
	return t.entries[page].RefCount
}
