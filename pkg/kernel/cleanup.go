package kernel

// Cleanup frees every mapping, file and directory handle, and channel
// owned by the given process in one pass and returns the count of
// reclaimed resources. Besides explicit unmap/close calls this is the
// only way resources are ever reclaimed.
func (k *Kernel) Cleanup(pid uint64) int {
	reclaimed := k.mappings.ReleaseOwned(pid)
	reclaimed += k.store.ReleaseOwned(pid)
	reclaimed += k.channels.ReleaseOwned(pid)
	if reclaimed > 0 {
		k.log.Debug("resources reclaimed", "pid", pid, "count", reclaimed)
	}
	return reclaimed
}
