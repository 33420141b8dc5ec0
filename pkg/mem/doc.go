/*
Package mem implements the kernel memory subsystem.

The subsystem is layered, leaf to root:

  - PageAllocator: a page-bitmap allocator over the kernel heap, used for
    kernel-internal allocations only. It is independent of user mappings.
  - PageTable: per-4KiB-page read/write/execute/shared permission bits over
    the fixed flat address space. Pure permission metadata; there is no
    address translation.
  - CowTable: per-page reference counts and copy-on-write marks, consulted
    on write faults. Independent of the page table.
  - MappingTable: coarse-grained regions (address, size, permissions, owner)
    layered above the page table. This is the unit the map/unmap/protect
    syscalls operate on.

All tables are fixed-capacity and allocated once; entries are claimed and
returned in place. Addresses and sizes at this layer are always multiples
of PageSize.
*/
package mem
