package mem

import (
	"errors"
	"testing"

	"vkern/pkg/kerr"
)

func newTable() *MappingTable {
	return NewMappingTable(NewPageTable())
}

// TestMapKernelChosenAddress tests that a zero address lets the kernel
// pick one at or above the user base.
func TestMapKernelChosenAddress(t *testing.T) {
	mt := newTable()

	addr, err := mt.Map(1, 0, 4096, Perm{Read: true, Write: true})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if addr < UserBase {
		t.Errorf("Map() addr = %#x, want >= %#x", addr, UserBase)
	}
	if !PageAligned(addr) {
		t.Errorf("Map() addr = %#x, want page-aligned", addr)
	}
}

// TestMapValidation tests argument validation on map.
func TestMapValidation(t *testing.T) {
	tests := []struct {
		name    string
		addr    uint64
		size    uint64
		wantErr error
	}{
		{"zero size", 0, 0, kerr.InvalidArgument},
		{"unaligned size", 0, 100, kerr.InvalidArgument},
		{"oversized", 0, MaxMapSize + PageSize, kerr.InvalidArgument},
		{"unaligned addr", UserBase + 1, 4096, kerr.UnalignedAccess},
		{"inside reserved region", PageSize, 4096, kerr.InvalidAddress},
		{"past end of space", AddressSpaceSize - PageSize, 2 * PageSize, kerr.InvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := newTable()
			_, err := mt.Map(1, tt.addr, tt.size, Perm{Read: true})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Map(%#x, %d) error = %v, want %v", tt.addr, tt.size, err, tt.wantErr)
			}
		})
	}
}

// TestMapNoOverlap tests that allocated mappings never intersect.
func TestMapNoOverlap(t *testing.T) {
	mt := newTable()

	a, err := mt.Map(1, 0, 8192, Perm{Read: true, Write: true})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	b, err := mt.Map(1, 0, 4096, Perm{Read: true})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if a < b+4096 && b < a+8192 {
		t.Errorf("mappings overlap: [%#x,%#x) and [%#x,%#x)", a, a+8192, b, b+4096)
	}

	// An explicit request for a taken range must fail.
	if _, err := mt.Map(1, a, 4096, Perm{Read: true}); !errors.Is(err, kerr.InvalidAddress) {
		t.Errorf("Map(taken range) error = %v, want %v", err, kerr.InvalidAddress)
	}
}

// TestUnmapAndRemap tests the map/unmap/map round trip.
func TestUnmapAndRemap(t *testing.T) {
	mt := newTable()

	a, err := mt.Map(1, 0, 4096, Perm{Read: true, Write: true})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	keep, err := mt.Map(1, 0, 4096, Perm{Read: true})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if err := mt.Unmap(a); err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}

	b, err := mt.Map(1, 0, 4096, Perm{Read: true, Write: true})
	if err != nil {
		t.Fatalf("Map() after unmap error = %v", err)
	}
	if b < keep+4096 && keep < b+4096 {
		t.Errorf("remapped range [%#x,%#x) overlaps live mapping at %#x", b, b+4096, keep)
	}
}

// TestUnmapUnknownAddress tests unmap of an address with no mapping.
func TestUnmapUnknownAddress(t *testing.T) {
	mt := newTable()
	if err := mt.Unmap(UserBase); !errors.Is(err, kerr.InvalidArgument) {
		t.Errorf("Unmap() error = %v, want %v", err, kerr.InvalidArgument)
	}
}

// TestProtectChangesOnlyTarget tests that protect leaves neighboring
// mappings alone.
func TestProtectChangesOnlyTarget(t *testing.T) {
	mt := newTable()

	first, err := mt.Map(1, 0, 8192, Perm{Read: true, Write: true})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	second, err := mt.Map(1, 0, 4096, Perm{Read: true})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if err := mt.Protect(second, Perm{Read: true, Execute: true}); err != nil {
		t.Fatalf("Protect() error = %v", err)
	}

	m1, _ := mt.Lookup(first)
	if !m1.Perm.Write || m1.Perm.Execute {
		t.Errorf("first mapping perm = %+v, want unchanged R|W", m1.Perm)
	}
	m2, _ := mt.Lookup(second)
	if !m2.Perm.Execute || m2.Perm.Write {
		t.Errorf("second mapping perm = %+v, want R|X", m2.Perm)
	}

	acc := mt.CheckAccess(second)
	if !acc.Execute || acc.Write {
		t.Errorf("CheckAccess(second) = %+v, want execute without write", acc)
	}
}

// TestProtectUnknownAddress tests protect of an unmapped address.
func TestProtectUnknownAddress(t *testing.T) {
	mt := newTable()
	err := mt.Protect(UserBase, Perm{Read: true})
	if !errors.Is(err, kerr.InvalidArgument) {
		t.Errorf("Protect() error = %v, want %v", err, kerr.InvalidArgument)
	}
}

// TestReleaseOwned tests the exit-time ownership sweep.
func TestReleaseOwned(t *testing.T) {
	mt := newTable()

	mt.Map(7, 0, 4096, Perm{Read: true})
	mt.Map(7, 0, 8192, Perm{Read: true, Write: true})
	other, _ := mt.Map(8, 0, 4096, Perm{Read: true})

	released := mt.ReleaseOwned(7)
	if released != 2 {
		t.Errorf("ReleaseOwned(7) = %d, want 2", released)
	}
	if len(mt.OwnedBy(7)) != 0 {
		t.Errorf("OwnedBy(7) = %d mappings, want 0", len(mt.OwnedBy(7)))
	}
	if _, ok := mt.Lookup(other); !ok {
		t.Error("ReleaseOwned(7) removed a mapping owned by 8")
	}
}

// TestCheckAccess tests the always-permitted regions and unmapped pages.
func TestCheckAccess(t *testing.T) {
	mt := newTable()

	tests := []struct {
		name     string
		addr     uint64
		mapped   bool
		writable bool
	}{
		{"reserved region", 0x1000, true, true},
		{"display aperture", DisplayBase + 64, true, true},
		{"unmapped user page", UserBase, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := mt.CheckAccess(tt.addr)
			if acc.Mapped != tt.mapped {
				t.Errorf("CheckAccess(%#x).Mapped = %v, want %v", tt.addr, acc.Mapped, tt.mapped)
			}
			if acc.Write != tt.writable {
				t.Errorf("CheckAccess(%#x).Write = %v, want %v", tt.addr, acc.Write, tt.writable)
			}
		})
	}
}

// TestMappingStats tests the accounting counters.
func TestMappingStats(t *testing.T) {
	mt := newTable()

	a, _ := mt.Map(1, 0, 8192, Perm{Read: true})
	if got := mt.Stats().MappedBytes; got != 8192 {
		t.Errorf("MappedBytes = %d, want 8192", got)
	}
	mt.Unmap(a)
	s := mt.Stats()
	if s.MappedBytes != 0 {
		t.Errorf("MappedBytes after unmap = %d, want 0", s.MappedBytes)
	}
	if s.MapCalls != 1 || s.UnmapCalls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", s.MapCalls, s.UnmapCalls)
	}
}

// TestPermFromBits tests flag decoding at the ABI boundary.
func TestPermFromBits(t *testing.T) {
	tests := []struct {
		name    string
		bits    uint64
		want    Perm
		wantErr bool
	}{
		{"read write", 3, Perm{Read: true, Write: true}, false},
		{"read exec", 5, Perm{Read: true, Execute: true}, false},
		{"shared only is empty", 8, Perm{}, true},
		{"empty", 0, Perm{}, true},
		{"reserved bits", 1 << 7, Perm{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PermFromBits(tt.bits)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PermFromBits(%d) error = %v, wantErr %v", tt.bits, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PermFromBits(%d) = %+v, want %+v", tt.bits, got, tt.want)
			}
		})
	}

	if got := (Perm{Read: true, Write: true, Shared: true}).Bits(); got != 11 {
		t.Errorf("Bits() = %d, want 11", got)
	}
}

// TestPageAllocator tests alloc, free, and first-fit reuse.
func TestPageAllocator(t *testing.T) {
	a := NewPageAllocator(KernelHeapBase, 16*PageSize)

	if a.FreeCount() != 16 {
		t.Fatalf("FreeCount() = %d, want 16", a.FreeCount())
	}

	p1, err := a.AllocPages(4)
	if err != nil {
		t.Fatalf("AllocPages(4) error = %v", err)
	}
	if p1 != KernelHeapBase {
		t.Errorf("AllocPages(4) = %#x, want %#x", p1, KernelHeapBase)
	}

	p2, err := a.AllocPages(2)
	if err != nil {
		t.Fatalf("AllocPages(2) error = %v", err)
	}
	if p2 != KernelHeapBase+4*PageSize {
		t.Errorf("AllocPages(2) = %#x, want %#x", p2, KernelHeapBase+4*PageSize)
	}

	a.FreePages(p1, 4)
	if a.FreeCount() != 14 {
		t.Errorf("FreeCount() = %d, want 14", a.FreeCount())
	}

	// First fit reuses the freed run at the front.
	p3, err := a.AllocPages(3)
	if err != nil {
		t.Fatalf("AllocPages(3) error = %v", err)
	}
	if p3 != KernelHeapBase {
		t.Errorf("AllocPages(3) = %#x, want reuse of %#x", p3, KernelHeapBase)
	}
}

// TestPageAllocatorExhaustion tests out-of-memory behavior.
func TestPageAllocatorExhaustion(t *testing.T) {
	a := NewPageAllocator(KernelHeapBase, 4*PageSize)

	if _, err := a.AllocPages(5); !errors.Is(err, kerr.InvalidArgument) {
		t.Errorf("AllocPages(5) error = %v, want %v", err, kerr.InvalidArgument)
	}

	if _, err := a.AllocPages(4); err != nil {
		t.Fatalf("AllocPages(4) error = %v", err)
	}
	if _, err := a.AllocPages(1); !errors.Is(err, kerr.OutOfMemory) {
		t.Errorf("AllocPages(1) error = %v, want %v", err, kerr.OutOfMemory)
	}
}

// TestCowRefCounting tests increment/decrement over a page range.
func TestCowRefCounting(t *testing.T) {
	ct := NewCowTable()
	addr := UserBase

	if err := ct.IncrementRange(addr, 2*PageSize); err != nil {
		t.Fatalf("IncrementRange() error = %v", err)
	}
	if err := ct.IncrementRange(addr, 2*PageSize); err != nil {
		t.Fatalf("IncrementRange() error = %v", err)
	}
	if got := ct.RefCount(addr); got != 2 {
		t.Errorf("RefCount() = %d, want 2", got)
	}

	if err := ct.MarkCow(addr, 2*PageSize); err != nil {
		t.Fatalf("MarkCow() error = %v", err)
	}
	if !ct.Eligible(addr) {
		t.Error("Eligible() = false, want true for shared cow-marked page")
	}

	if err := ct.DecrementRange(addr, 2*PageSize); err != nil {
		t.Fatalf("DecrementRange() error = %v", err)
	}
	if ct.Eligible(addr) {
		t.Error("Eligible() = true, want false after refcount fell to 1")
	}
	if got := ct.RefCount(addr); got != 1 {
		t.Errorf("RefCount() = %d, want 1", got)
	}
}

// TestCowMarkRequiresSharing tests that unshared pages cannot be marked.
func TestCowMarkRequiresSharing(t *testing.T) {
	ct := NewCowTable()
	addr := UserBase

	ct.IncrementRange(addr, PageSize)
	if err := ct.MarkCow(addr, PageSize); !errors.Is(err, kerr.InvalidArgument) {
		t.Errorf("MarkCow(refcount 1) error = %v, want %v", err, kerr.InvalidArgument)
	}
}

// TestCowDecrementUnderflow tests decrement of an unshared page.
func TestCowDecrementUnderflow(t *testing.T) {
	ct := NewCowTable()
	err := ct.DecrementRange(UserBase, PageSize)
	if !errors.Is(err, kerr.InvalidArgument) {
		t.Errorf("DecrementRange(free page) error = %v, want %v", err, kerr.InvalidArgument)
	}
}

// TestPageTableProtectUnmapped tests protect over unmapped pages.
func TestPageTableProtectUnmapped(t *testing.T) {
	pt := NewPageTable()
	err := pt.Protect(UserBase, PageSize, Perm{Read: true})
	if !errors.Is(err, kerr.InvalidAddress) {
		t.Errorf("Protect(unmapped) error = %v, want %v", err, kerr.InvalidAddress)
	}
}

// TestPageTableRangeValidation tests alignment and bounds on page ops.
func TestPageTableRangeValidation(t *testing.T) {
	pt := NewPageTable()

	if err := pt.Map(UserBase+1, PageSize, Perm{Read: true}); !errors.Is(err, kerr.UnalignedAccess) {
		t.Errorf("Map(unaligned) error = %v, want %v", err, kerr.UnalignedAccess)
	}
	if err := pt.Map(AddressSpaceSize, PageSize, Perm{Read: true}); !errors.Is(err, kerr.OutOfBounds) {
		t.Errorf("Map(out of space) error = %v, want %v", err, kerr.OutOfBounds)
	}
}
