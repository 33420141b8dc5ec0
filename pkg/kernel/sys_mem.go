package kernel

import "vkern/pkg/mem"

// sysMap creates a mapping for the calling process. A zero addr lets
// the kernel choose; flags decode through the ABI permission bits.
func (k *Kernel) sysMap(addr, size, flags uint64) (uint64, error) {
	perm, err := mem.PermFromBits(flags)
	if err != nil {
		return 0, err
	}
	return k.mappings.Map(k.sched.Current, addr, size, perm)
}

// sysUnmap removes the mapping that starts exactly at addr.
func (k *Kernel) sysUnmap(addr uint64) (uint64, error) {
	return 0, k.mappings.Unmap(addr)
}

// sysProtect overwrites the permissions of the mapping at addr.
func (k *Kernel) sysProtect(addr, flags uint64) (uint64, error) {
	perm, err := mem.PermFromBits(flags)
	if err != nil {
		return 0, err
	}
	return 0, k.mappings.Protect(addr, perm)
}
