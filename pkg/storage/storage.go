// Package storage implements the bounded in-memory file store.
//
// Files and directories live in fixed-capacity slot tables searched
// linearly by exact name. There is no persistence: a file is a bounded
// name plus a bounded byte buffer, nothing more. Open files are tracked
// in separate handle tables keyed by opaque 64-bit handles; a handle
// binds to a file's slot index, so reads and writes through a handle and
// by-name operations always see the same bytes.
package storage

import (
	"strings"

	"vkern/pkg/kerr"
)

// Storage capacity bounds.
const (
	// MaxFiles is the capacity of the file table.
	MaxFiles = 128
	// MaxDirs is the capacity of the directory table.
	MaxDirs = 32
	// MaxFileSize is the largest file body in bytes.
	MaxFileSize = 64 * 1024
	// MaxNameLen is the longest file or directory name in bytes.
	MaxNameLen = 255
	// MaxFileHandles is the capacity of the file handle table.
	MaxFileHandles = 128
	// MaxDirHandles is the capacity of the directory handle table.
	MaxDirHandles = 32
	// MaxDirEntries is the number of files one directory can list.
	MaxDirEntries = 64
)

// Open permission bits.
const (
	// OpenRead allows reads through the handle.
	OpenRead uint64 = 1 << 0
	// OpenWrite allows writes through the handle.
	OpenWrite uint64 = 1 << 1

	openBitsAll = OpenRead | OpenWrite
)

// FileEntry is one file slot: a bounded name and a bounded byte buffer.
type FileEntry struct {
	// Name is the file's exact name.
	Name string
	// Size is the number of valid bytes in the buffer.
	Size uint64

	data      [MaxFileSize]byte
	allocated bool
}

// DirectoryEntry is one directory slot holding member file indices.
type DirectoryEntry struct {
	// Name is the directory's exact name.
	Name string

	members   [MaxDirEntries]int
	count     int
	allocated bool
}

// FileHandle references an open file. Position and permissions live on
// the handle; the bytes live in the file slot it binds to.
type FileHandle struct {
	// ID is the handle's non-zero identifier.
	ID uint64
	// FileIndex is the bound slot in the file table.
	FileIndex int
	// Pos is the read/write cursor.
	Pos uint64
	// Flags holds the open permission bits.
	Flags uint64
	// Owner is the id of the opening process.
	Owner uint64

	allocated bool
}

// DirHandle references an open directory iteration.
type DirHandle struct {
	// ID is the handle's non-zero identifier.
	ID uint64
	// DirIndex is the bound slot in the directory table.
	DirIndex int
	// Cursor is the iteration position.
	Cursor int
	// Owner is the id of the opening process.
	Owner uint64

	allocated bool
}

// Storage is the in-memory file store: file and directory tables plus
// their handle tables. Handle ids are allocated from one monotonic
// counter and never reused while the referent is live.
type Storage struct {
	files       [MaxFiles]FileEntry
	dirs        [MaxDirs]DirectoryEntry
	fileHandles [MaxFileHandles]FileHandle
	dirHandles  [MaxDirHandles]DirHandle
	nextID      uint64
}

// New creates an empty store.
func New() *Storage {
	return &Storage{nextID: 1}
}

func validName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return kerr.InvalidArgument
	}
	return nil
}

func (s *Storage) findFile(name string) int {
	for i := range s.files {
		if s.files[i].allocated && s.files[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *Storage) findDir(name string) int {
	for i := range s.dirs {
		if s.dirs[i].allocated && s.dirs[i].Name == name {
			return i
		}
	}
	return -1
}

// attachToParent adds a new file to the directory named by everything
// before the last slash, when such a directory exists. A full member
// list simply leaves the file unlisted.
func (s *Storage) attachToParent(name string, idx int) {
	cut := strings.LastIndexByte(name, '/')
	if cut <= 0 {
		return
	}
	d := s.findDir(name[:cut])
	if d < 0 {
		return
	}
	dir := &s.dirs[d]
	if dir.count < MaxDirEntries {
		dir.members[dir.count] = idx
		dir.count++
	}
}

// detachFromDirs removes the file index from every directory listing.
func (s *Storage) detachFromDirs(idx int) {
	for d := range s.dirs {
		dir := &s.dirs[d]
		if !dir.allocated {
			continue
		}
		for i := 0; i < dir.count; i++ {
			if dir.members[i] == idx {
				copy(dir.members[i:dir.count-1], dir.members[i+1:dir.count])
				dir.count--
				break
			}
		}
	}
}

// CreateFile allocates a file slot with the given name and returns its
// index.
func (s *Storage) CreateFile(name string) (int, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	if s.findFile(name) >= 0 {
		return 0, kerr.InvalidArgument
	}
	for i := range s.files {
		if !s.files[i].allocated {
			s.files[i] = FileEntry{Name: name, allocated: true}
			s.attachToParent(name, i)
			return i, nil
		}
	}
	return 0, kerr.OutOfMemory
}

// CreateDir allocates a directory slot with the given name.
func (s *Storage) CreateDir(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if s.findDir(name) >= 0 {
		return kerr.InvalidArgument
	}
	for i := range s.dirs {
		if !s.dirs[i].allocated {
			s.dirs[i] = DirectoryEntry{Name: name, allocated: true}
			return nil
		}
	}
	return kerr.OutOfMemory
}

// LookupFile returns the slot index of the file with the exact name.
func (s *Storage) LookupFile(name string) (int, error) {
	idx := s.findFile(name)
	if idx < 0 {
		return 0, kerr.NotFound
	}
	return idx, nil
}

// Unlink removes the file with the exact name and delists it from every
// directory. Handles still bound to the slot become invalid.
func (s *Storage) Unlink(name string) error {
	idx := s.findFile(name)
	if idx < 0 {
		return kerr.NotFound
	}
	s.detachFromDirs(idx)
	s.files[idx] = FileEntry{}
	return nil
}

// Rename changes the exact name of a file. The new name must be valid
// and unused. Directory listings follow the name: the file leaves its
// old parent and joins the directory the new name points into.
func (s *Storage) Rename(oldName, newName string) error {
	if err := validName(newName); err != nil {
		return err
	}
	idx := s.findFile(oldName)
	if idx < 0 {
		return kerr.NotFound
	}
	if s.findFile(newName) >= 0 {
		return kerr.InvalidArgument
	}
	s.files[idx].Name = newName
	s.detachFromDirs(idx)
	s.attachToParent(newName, idx)
	return nil
}

// Open binds a new file handle to the named file, creating the file
// when it does not exist yet. flags must carry at least one of the open
// permission bits and no reserved bits.
func (s *Storage) Open(name string, flags, owner uint64) (uint64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	if flags == 0 || flags&^openBitsAll != 0 {
		return 0, kerr.InvalidArgument
	}
	idx := s.findFile(name)
	if idx < 0 {
		created, err := s.CreateFile(name)
		if err != nil {
			return 0, err
		}
		idx = created
	}
	for i := range s.fileHandles {
		if !s.fileHandles[i].allocated {
			id := s.nextID
			s.nextID++
			s.fileHandles[i] = FileHandle{
				ID:        id,
				FileIndex: idx,
				Flags:     flags,
				Owner:     owner,
				allocated: true,
			}
			return id, nil
		}
	}
	return 0, kerr.OutOfMemory
}

// handle returns the live file handle with the given id, verifying that
// its bound file slot is still allocated.
func (s *Storage) handle(id uint64) (*FileHandle, *FileEntry, error) {
	if id == 0 {
		return nil, nil, kerr.InvalidHandle
	}
	for i := range s.fileHandles {
		h := &s.fileHandles[i]
		if h.allocated && h.ID == id {
			f := &s.files[h.FileIndex]
			if !f.allocated {
				return nil, nil, kerr.InvalidHandle
			}
			return h, f, nil
		}
	}
	return nil, nil, kerr.InvalidHandle
}

// Read copies bytes from the handle's cursor into buf and advances the
// cursor. Reads at or past the end return zero bytes.
func (s *Storage) Read(id uint64, buf []byte) (uint64, error) {
	h, f, err := s.handle(id)
	if err != nil {
		return 0, err
	}
	if h.Flags&OpenRead == 0 {
		return 0, kerr.PermissionDenied
	}
	if h.Pos >= f.Size {
		return 0, nil
	}
	n := copy(buf, f.data[h.Pos:f.Size])
	h.Pos += uint64(n)
	return uint64(n), nil
}

// Write copies bytes from data to the handle's cursor, growing the file
// up to its fixed capacity, and advances the cursor. The returned count
// is clamped at the capacity boundary.
func (s *Storage) Write(id uint64, data []byte) (uint64, error) {
	h, f, err := s.handle(id)
	if err != nil {
		return 0, err
	}
	if h.Flags&OpenWrite == 0 {
		return 0, kerr.PermissionDenied
	}
	if h.Pos >= MaxFileSize {
		return 0, kerr.OutOfBounds
	}
	n := copy(f.data[h.Pos:], data)
	h.Pos += uint64(n)
	if h.Pos > f.Size {
		f.Size = h.Pos
	}
	return uint64(n), nil
}

// Close frees the file handle.
func (s *Storage) Close(id uint64) error {
	if id == 0 {
		return kerr.InvalidHandle
	}
	for i := range s.fileHandles {
		h := &s.fileHandles[i]
		if h.allocated && h.ID == id {
			*h = FileHandle{}
			return nil
		}
	}
	return kerr.InvalidHandle
}

// OpenDir binds a new directory handle to the named directory with the
// iteration cursor at the start.
func (s *Storage) OpenDir(name string, owner uint64) (uint64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	idx := s.findDir(name)
	if idx < 0 {
		return 0, kerr.NotFound
	}
	for i := range s.dirHandles {
		if !s.dirHandles[i].allocated {
			id := s.nextID
			s.nextID++
			s.dirHandles[i] = DirHandle{
				ID:        id,
				DirIndex:  idx,
				Owner:     owner,
				allocated: true,
			}
			return id, nil
		}
	}
	return 0, kerr.OutOfMemory
}

// ReadDir returns the name of the next member file and advances the
// cursor. The second result is false once iteration is done.
func (s *Storage) ReadDir(id uint64) (string, bool, error) {
	if id == 0 {
		return "", false, kerr.InvalidHandle
	}
	for i := range s.dirHandles {
		h := &s.dirHandles[i]
		if !h.allocated || h.ID != id {
			continue
		}
		dir := &s.dirs[h.DirIndex]
		if !dir.allocated {
			return "", false, kerr.InvalidHandle
		}
		for h.Cursor < dir.count {
			idx := dir.members[h.Cursor]
			h.Cursor++
			if s.files[idx].allocated {
				return s.files[idx].Name, true, nil
			}
		}
		return "", false, nil
	}
	return "", false, kerr.InvalidHandle
}

// CloseDir frees the directory handle.
func (s *Storage) CloseDir(id uint64) error {
	if id == 0 {
		return kerr.InvalidHandle
	}
	for i := range s.dirHandles {
		h := &s.dirHandles[i]
		if h.allocated && h.ID == id {
			*h = DirHandle{}
			return nil
		}
	}
	return kerr.InvalidHandle
}

// ReleaseOwned frees every file and directory handle owned by the given
// process and returns the number reclaimed. File contents stay put;
// only the handles go away.
func (s *Storage) ReleaseOwned(pid uint64) int {
	released := 0
	for i := range s.fileHandles {
		if s.fileHandles[i].allocated && s.fileHandles[i].Owner == pid {
			s.fileHandles[i] = FileHandle{}
			released++
		}
	}
	for i := range s.dirHandles {
		if s.dirHandles[i].allocated && s.dirHandles[i].Owner == pid {
			s.dirHandles[i] = DirHandle{}
			released++
		}
	}
	return released
}

// FileCount returns the number of allocated file slots.
func (s *Storage) FileCount() int {
	n := 0
	for i := range s.files {
		if s.files[i].allocated {
			n++
		}
	}
	return n
}

// HandleCount returns the number of live file and directory handles.
func (s *Storage) HandleCount() int {
	n := 0
	for i := range s.fileHandles {
		if s.fileHandles[i].allocated {
			n++
		}
	}
	for i := range s.dirHandles {
		if s.dirHandles[i].allocated {
			n++
		}
	}
	return n
}

// OwnedHandleCount returns the number of live handles owned by pid.
func (s *Storage) OwnedHandleCount(pid uint64) int {
	n := 0
	for i := range s.fileHandles {
		if s.fileHandles[i].allocated && s.fileHandles[i].Owner == pid {
			n++
		}
	}
	for i := range s.dirHandles {
		if s.dirHandles[i].allocated && s.dirHandles[i].Owner == pid {
			n++
		}
	}
	return n
}
