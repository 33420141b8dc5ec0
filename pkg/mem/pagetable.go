package mem

import "vkern/pkg/kerr"

// PageEntry holds the permission bits for a single page. The page table
// carries no translation; the address space is flat and the entry index
// is simply address divided by the page size.
type PageEntry struct {
	// Read allows load access to the page.
	Read bool
	// Write allows store access to the page.
	Write bool
	// Execute allows instruction fetch from the page.
	Execute bool
	// Shared marks the page as shareable.
	Shared bool
	// Mapped is true while the page belongs to a live mapping.
	Mapped bool
}

// PageTable tracks per-page permissions over the flat address space.
type PageTable struct {
	entries []PageEntry
}

// NewPageTable creates a page table covering the whole flat space.
func NewPageTable() *PageTable {
	return &PageTable{
		entries: make([]PageEntry, AddressSpaceSize/PageSize),
	}
}

// pageRange converts an aligned address range to an index range,
// validating bounds.
func (t *PageTable) pageRange(addr, size uint64) (uint64, uint64, error) {
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

// Map marks the pages in [addr, addr+size) mapped with the given
// permissions.
func (t *PageTable) Map(addr, size uint64, perm Perm) error {
	first, count, err := t.pageRange(addr, size)
	if err != nil {
		return err
	}
	for i := first; i < first+count; i++ {
		t.entries[i] = PageEntry{
			Read:    perm.Read,
			Write:   perm.Write,
			Execute: perm.Execute,
			Shared:  perm.Shared,
			Mapped:  true,
		}
	}
	return nil
}

// Unmap clears the pages in [addr, addr+size).
func (t *PageTable) Unmap(addr, size uint64) error {
	first, count, err := t.pageRange(addr, size)
	if err != nil {
		return err
	}
	for i := first; i < first+count; i++ {
		t.entries[i] = PageEntry{}
	}
	return nil
}

// Protect overwrites the permissions of the pages in [addr, addr+size).
// The pages must already be mapped.
func (t *PageTable) Protect(addr, size uint64, perm Perm) error {
	first, count, err := t.pageRange(addr, size)
	if err != nil {
		return err
	}
	for i := first; i < first+count; i++ {
		if !t.entries[i].Mapped {
			return kerr.InvalidAddress
		}
	}
	for i := first; i < first+count; i++ {
		t.entries[i].Read = perm.Read
		t.entries[i].Write = perm.Write
		t.entries[i].Execute = perm.Execute
		t.entries[i].Shared = perm.Shared
	}
	return nil
}

// Lookup returns the entry covering addr. The second result is false if
// addr falls outside the flat space.
func (t *PageTable) Lookup(addr uint64) (PageEntry, bool) {
	page := addr / PageSize
	if page >= uint64(len(t.entries)) {
		return PageEntry{}, false
	}
	return t.entries[page], true
}
