package kernel

import (
	"vkern/pkg/kerr"
	"vkern/pkg/storage"
)

// userString reads a bounded name out of guest memory.
func (k *Kernel) userString(ptr, length uint64) (string, error) {
	if length == 0 || length > storage.MaxNameLen {
		return "", kerr.InvalidArgument
	}
	b, err := k.readUser(ptr, length)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sysOpen opens (creating if absent) the named file for the calling
// process.
func (k *Kernel) sysOpen(namePtr, nameLen, flags uint64) (uint64, error) {
	name, err := k.userString(namePtr, nameLen)
	if err != nil {
		return 0, err
	}
	return k.store.Open(name, flags, k.sched.Current)
}

// sysRead copies bytes from the handle's cursor into guest memory and
// returns the count.
func (k *Kernel) sysRead(handle, ptr, length uint64) (uint64, error) {
	if err := checkUserRange(ptr, length); err != nil {
		return 0, err
	}
	buf := make([]byte, length)
	n, err := k.store.Read(handle, buf)
	if err != nil || n == 0 {
		return 0, err
	}
	return k.writeUser(ptr, buf[:n])
}

// sysWrite copies bytes from guest memory to the handle's cursor and
// returns the count, clamped at the file capacity.
func (k *Kernel) sysWrite(handle, ptr, length uint64) (uint64, error) {
	data, err := k.readUser(ptr, length)
	if err != nil {
		return 0, err
	}
	return k.store.Write(handle, data)
}

// sysClose frees the file handle.
func (k *Kernel) sysClose(handle uint64) (uint64, error) {
	return 0, k.store.Close(handle)
}

// sysUnlink removes the file with the exact name.
func (k *Kernel) sysUnlink(namePtr, nameLen uint64) (uint64, error) {
	name, err := k.userString(namePtr, nameLen)
	if err != nil {
		return 0, err
	}
	return 0, k.store.Unlink(name)
}

// sysRename changes a file's exact name.
func (k *Kernel) sysRename(oldPtr, oldLen, newPtr, newLen uint64) (uint64, error) {
	oldName, err := k.userString(oldPtr, oldLen)
	if err != nil {
		return 0, err
	}
	newName, err := k.userString(newPtr, newLen)
	if err != nil {
		return 0, err
	}
	return 0, k.store.Rename(oldName, newName)
}

// sysMkdir creates a directory with the given name.
func (k *Kernel) sysMkdir(namePtr, nameLen uint64) (uint64, error) {
	name, err := k.userString(namePtr, nameLen)
	if err != nil {
		return 0, err
	}
	return 0, k.store.CreateDir(name)
}

// sysOpendir opens a directory iteration for the calling process.
func (k *Kernel) sysOpendir(namePtr, nameLen uint64) (uint64, error) {
	name, err := k.userString(namePtr, nameLen)
	if err != nil {
		return 0, err
	}
	return k.store.OpenDir(name, k.sched.Current)
}

// sysReaddir writes the next member name into guest memory, truncated
// to the buffer length, and returns the bytes written. A finished
// iteration returns zero.
func (k *Kernel) sysReaddir(handle, bufPtr, bufLen uint64) (uint64, error) {
	if err := checkUserRange(bufPtr, bufLen); err != nil {
		return 0, err
	}
	name, ok, err := k.store.ReadDir(handle)
	if err != nil || !ok {
		return 0, err
	}
	b := []byte(name)
	if uint64(len(b)) > bufLen {
		b = b[:bufLen]
	}
	return k.writeUser(bufPtr, b)
}

// sysClosedir frees the directory handle.
func (k *Kernel) sysClosedir(handle uint64) (uint64, error) {
	return 0, k.store.CloseDir(handle)
}
