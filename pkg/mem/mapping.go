package mem

import "vkern/pkg/kerr"

// Mapping is one caller-visible memory region. Address and size are
// always page-aligned and allocated mappings never overlap.
type Mapping struct {
	// Addr is the page-aligned start of the region.
	Addr uint64
	// Size is the page-aligned length of the region.
	Size uint64
	// Perm holds the region's access permissions.
	Perm Perm
	// Owner is the id of the process that created the mapping.
	Owner uint64

	allocated bool
}

// Stats tracks memory accounting across the life of the table.
type Stats struct {
	// MappedBytes is the total size of live mappings.
	MappedBytes uint64
	// MapCalls counts successful map operations.
	MapCalls uint64
	// UnmapCalls counts successful unmap operations.
	UnmapCalls uint64
}

// MappingTable manages the fixed set of mapping slots layered above the
// page table. The slot count is a deliberate capacity bound.
type MappingTable struct {
	slots [MaxMappings]Mapping
	pages *PageTable
	// next is the bump pointer used when the caller lets the kernel
	// choose an address. It only ever advances.
	next  uint64
	stats Stats
}

// NewMappingTable creates an empty mapping table over the given page
// table. Kernel-chosen addresses start just above the reserved region.
func NewMappingTable(pages *PageTable) *MappingTable {
	return &MappingTable{
		pages: pages,
		next:  UserBase,
	}
}

// overlaps reports whether [addr, addr+size) intersects any allocated
// mapping. Linear scan; the table is small by design.
func (t *MappingTable) overlaps(addr, size uint64) bool {
	end := addr + size
	for i := range t.slots {
		m := &t.slots[i]
		if !m.allocated {
			continue
		}
		if addr < m.Addr+m.Size && m.Addr < end {
			return true
		}
	}
	return false
}

// chooseAddr finds the next free kernel-chosen address of the given
// size, advancing the bump pointer past ranges already taken.
func (t *MappingTable) chooseAddr(size uint64) (uint64, error) {
	addr := t.next
	for addr+size <= AddressSpaceSize {
		if !t.overlaps(addr, size) {
			t.next = addr + size
			return addr, nil
		}
		addr += PageSize
	}
	return 0, kerr.OutOfMemory
}

// Map creates a mapping of size bytes for the owning process. A zero
// addr asks the kernel to choose one; otherwise addr must be page
// aligned, outside the reserved kernel region, and free of overlap with
// every live mapping. Permissions are mirrored into the page table.
func (t *MappingTable) Map(owner, addr, size uint64, perm Perm) (uint64, error) {
	if size == 0 || !PageAligned(size) {
		return 0, kerr.InvalidArgument
	}
	if size > MaxMapSize || size > AddressSpaceSize {
		return 0, kerr.InvalidArgument
	}

	if addr == 0 {
		chosen, err := t.chooseAddr(size)
		if err != nil {
			return 0, err
		}
		addr = chosen
	} else {
		if !PageAligned(addr) {
			return 0, kerr.UnalignedAccess
		}
		if addr < UserBase || addr+size > AddressSpaceSize {
			return 0, kerr.InvalidAddress
		}
		if t.overlaps(addr, size) {
			return 0, kerr.InvalidAddress
		}
	}

	slot := -1
	for i := range t.slots {
		if !t.slots[i].allocated {
			slot = i
			break
		}
	}
	if slot == -1 {
		return 0, kerr.OutOfMemory
	}

	if err := t.pages.Map(addr, size, perm); err != nil {
		return 0, err
	}

	t.slots[slot] = Mapping{
		Addr:      addr,
		Size:      size,
		Perm:      perm,
		Owner:     owner,
		allocated: true,
	}
	t.stats.MappedBytes += size
	t.stats.MapCalls++
	return addr, nil
}

// Unmap removes the mapping that starts exactly at addr and clears its
// pages.
func (t *MappingTable) Unmap(addr uint64) error {
	for i := range t.slots {
		m := &t.slots[i]
		if m.allocated && m.Addr == addr {
			if err := t.pages.Unmap(m.Addr, m.Size); err != nil {
				return err
			}
			t.stats.MappedBytes -= m.Size
			t.stats.UnmapCalls++
			*m = Mapping{}
			return nil
		}
	}
	return kerr.InvalidArgument
}

// Protect overwrites the permissions of the mapping that starts exactly
// at addr, on both the mapping and its page range.
func (t *MappingTable) Protect(addr uint64, perm Perm) error {
	for i := range t.slots {
		m := &t.slots[i]
		if m.allocated && m.Addr == addr {
			if err := t.pages.Protect(m.Addr, m.Size, perm); err != nil {
				return err
			}
			m.Perm = perm
			return nil
		}
	}
	return kerr.InvalidArgument
}

// Lookup returns the mapping that starts exactly at addr.
func (t *MappingTable) Lookup(addr uint64) (Mapping, bool) {
	for i := range t.slots {
		m := &t.slots[i]
		if m.allocated && m.Addr == addr {
			return *m, true
		}
	}
	return Mapping{}, false
}

// OwnedBy returns every live mapping owned by the given process.
func (t *MappingTable) OwnedBy(pid uint64) []Mapping {
	var out []Mapping
	for i := range t.slots {
		if t.slots[i].allocated && t.slots[i].Owner == pid {
			out = append(out, t.slots[i])
		}
	}
	return out
}

// ReleaseOwned frees every mapping owned by the given process and
// returns the number reclaimed. Page entries are cleared as well.
func (t *MappingTable) ReleaseOwned(pid uint64) int {
	released := 0
	for i := range t.slots {
		m := &t.slots[i]
		if m.allocated && m.Owner == pid {
			t.pages.Unmap(m.Addr, m.Size)
			t.stats.MappedBytes -= m.Size
			t.stats.UnmapCalls++
			*m = Mapping{}
			released++
		}
	}
	return released
}

// Count returns the number of live mappings.
func (t *MappingTable) Count() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].allocated {
			n++
		}
	}
	return n
}

// Stats returns a copy of the accounting counters.
func (t *MappingTable) Stats() Stats {
	return t.stats
}

// Access is the verdict of a permission check.
type Access struct {
	// Mapped is false when no mapping covers the address.
	Mapped bool
	// Read, Write and Execute report the permitted access kinds.
	Read, Write, Execute bool
}

// CheckAccess resolves the permissions for an arbitrary address.
// Addresses inside the reserved kernel region or the display aperture
// are always fully permitted; user addresses resolve through the page
// table.
func (t *MappingTable) CheckAccess(addr uint64) Access {
	if addr < UserBase {
		return Access{Mapped: true, Read: true, Write: true, Execute: true}
	}
	if addr >= DisplayBase && addr < DisplayBase+DisplaySize {
		return Access{Mapped: true, Read: true, Write: true, Execute: true}
	}
	entry, ok := t.pages.Lookup(addr)
	if !ok || !entry.Mapped {
		return Access{}
	}
	return Access{
		Mapped:  true,
		Read:    entry.Read,
		Write:   entry.Write,
		Execute: entry.Execute,
	}
}
