package proc

import (
	"encoding/binary"

	"vkern/pkg/kerr"
)

// Executable image layout. The format is a fixed little-endian subset:
// a 64-byte header followed by an optional program-header table. Only
// loadable segments are ever acted on.
const (
	// HeaderSize is the fixed executable header size.
	HeaderSize = 64
	// ProgHeaderSize is the minimum program-header entry size.
	ProgHeaderSize = 56
	// MaxProgHeaders bounds the program-header table.
	MaxProgHeaders = 128

	// SegmentLoad is the program-header type the loader acts on.
	SegmentLoad uint32 = 1

	// Segment permission flag bits.
	SegFlagExec  uint32 = 1
	SegFlagWrite uint32 = 2
	SegFlagRead  uint32 = 4

	classELF64     = 2
	dataLittleEnd  = 1
	offEntry       = 24
	offPhOff       = 32
	offPhEntSize   = 54
	offPhCount     = 56
	phOffType      = 0
	phOffFlags     = 4
	phOffOffset    = 8
	phOffVaddr     = 16
	phOffFileSize  = 32
	phOffMemSize   = 40
	phOffAlignment = 48
)

var imageMagic = [4]byte{0x7F, 'E', 'L', 'F'}

// Segment describes one loadable range of an executable image.
type Segment struct {
	// Vaddr is the virtual address the segment loads at.
	Vaddr uint64
	// Offset is the segment's byte offset inside the image.
	Offset uint64
	// FileSize is the number of initialized bytes in the image.
	FileSize uint64
	// MemSize is the in-memory size; the tail past FileSize is
	// zero-filled.
	MemSize uint64
	// Flags holds the segment permission bits.
	Flags uint32
}

// Image is a fully validated executable image.
type Image struct {
	// Entry is the non-zero entry point.
	Entry uint64
	// Segments lists the loadable segments in table order.
	Segments []Segment
}

// ParseImage validates an executable image and extracts its entry point
// and loadable segments. Validation is complete before the caller
// mutates any kernel table: a rejected image has no side effects.
func ParseImage(b []byte) (*Image, error) {
	if len(b) < HeaderSize {
		return nil, kerr.InvalidArgument
	}
	if [4]byte(b[:4]) != imageMagic {
		return nil, kerr.InvalidArgument
	}
	if b[4] != classELF64 || b[5] != dataLittleEnd {
		return nil, kerr.InvalidArgument
	}

	entry := binary.LittleEndian.Uint64(b[offEntry:])
	if entry == 0 {
		return nil, kerr.InvalidArgument
	}

	phOff := binary.LittleEndian.Uint64(b[offPhOff:])
	phEntSize := uint64(binary.LittleEndian.Uint16(b[offPhEntSize:]))
	phCount := uint64(binary.LittleEndian.Uint16(b[offPhCount:]))

	img := &Image{Entry: entry}
	if phCount == 0 {
		return img, nil
	}
	if phCount > MaxProgHeaders {
		return nil, kerr.InvalidArgument
	}
	if phEntSize < ProgHeaderSize {
		return nil, kerr.InvalidArgument
	}

	imageLen := uint64(len(b))
	tableLen := phCount * phEntSize
	if phOff > imageLen || tableLen > imageLen-phOff {
		return nil, kerr.OutOfBounds
	}

	for i := uint64(0); i < phCount; i++ {
		ph := b[phOff+i*phEntSize:]

		segType := binary.LittleEndian.Uint32(ph[phOffType:])
		if segType != SegmentLoad {
			continue
		}

		seg := Segment{
			Vaddr:    binary.LittleEndian.Uint64(ph[phOffVaddr:]),
			Offset:   binary.LittleEndian.Uint64(ph[phOffOffset:]),
			FileSize: binary.LittleEndian.Uint64(ph[phOffFileSize:]),
			MemSize:  binary.LittleEndian.Uint64(ph[phOffMemSize:]),
			Flags:    binary.LittleEndian.Uint32(ph[phOffFlags:]),
		}

		if seg.MemSize < seg.FileSize {
			return nil, kerr.InvalidArgument
		}
		align := binary.LittleEndian.Uint64(ph[phOffAlignment:])
		if align != 0 && align&(align-1) != 0 {
			return nil, kerr.InvalidArgument
		}
		if seg.Offset > imageLen || seg.FileSize > imageLen-seg.Offset {
			return nil, kerr.OutOfBounds
		}

		img.Segments = append(img.Segments, seg)
	}

	return img, nil
}
