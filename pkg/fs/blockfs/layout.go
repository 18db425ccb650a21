package blockfs

import (
	"encoding/binary"

	"github.com/example/sectorfs/pkg/device"
)

// On-disk layout constants. The layout is bit-exact little-endian and must
// remain stable across runs.
const (
	// SectorSize mirrors the device sector size.
	SectorSize = device.SectorSize

	// FreeMapSector holds the inode header of the free-map file.
	FreeMapSector = 0

	// RootDirSector holds the root directory's inode.
	RootDirSector = 1

	// DirectBlocks is the number of direct sector pointers in an inode.
	DirectBlocks = 123

	// IndirectBlocks is the number of sector pointers in one indirect block.
	IndirectBlocks = SectorSize / 4

	// InodeMagic identifies a valid on-disk inode.
	InodeMagic = 0x494e4f44

	// NameMax is the longest directory entry name, excluding the NUL.
	NameMax = 14

	// dirEntrySize is in_use (1) + name[NameMax+1] + inode sector (4).
	dirEntrySize = 1 + NameMax + 1 + 4

	// rootDirEntries is the initial entry capacity of a new directory.
	rootDirEntries = 16
)

// maxFileSectors is the addressable capacity of one inode.
const maxFileSectors = DirectBlocks + IndirectBlocks + IndirectBlocks*IndirectBlocks

// MaxFileSize is the largest byte length a single file can reach.
const MaxFileSize = int64(maxFileSectors) * SectorSize

// Field offsets within the 512-byte inode sector.
const (
	inodeOffIndirect       = DirectBlocks * 4
	inodeOffDoubleIndirect = inodeOffIndirect + 4
	inodeOffLength         = inodeOffDoubleIndirect + 4
	inodeOffMagic          = inodeOffLength + 4
	inodeOffIsDir          = inodeOffMagic + 4
)

// diskInode mirrors the on-disk inode, exactly one sector long:
// direct[123] pointers, single and double indirect pointers, signed byte
// length, magic, and the directory flag.
type diskInode struct {
	direct         [DirectBlocks]uint32
	indirect       uint32
	doubleIndirect uint32
	length         int32
	magic          uint32
	isDir          uint32
}

func (di *diskInode) encode(b []byte) {
	for i, s := range di.direct {
		binary.LittleEndian.PutUint32(b[i*4:], s)
	}
	binary.LittleEndian.PutUint32(b[inodeOffIndirect:], di.indirect)
	binary.LittleEndian.PutUint32(b[inodeOffDoubleIndirect:], di.doubleIndirect)
	binary.LittleEndian.PutUint32(b[inodeOffLength:], uint32(di.length))
	binary.LittleEndian.PutUint32(b[inodeOffMagic:], di.magic)
	binary.LittleEndian.PutUint32(b[inodeOffIsDir:], di.isDir)
}

func (di *diskInode) decode(b []byte) {
	for i := range di.direct {
		di.direct[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	di.indirect = binary.LittleEndian.Uint32(b[inodeOffIndirect:])
	di.doubleIndirect = binary.LittleEndian.Uint32(b[inodeOffDoubleIndirect:])
	di.length = int32(binary.LittleEndian.Uint32(b[inodeOffLength:]))
	di.magic = binary.LittleEndian.Uint32(b[inodeOffMagic:])
	di.isDir = binary.LittleEndian.Uint32(b[inodeOffIsDir:])
}

// mapTableOffset returns the byte offset of pointer slot index within an
// indirect block.
func mapTableOffset(index int) int {
	return index * 4
}

// Directness levels of a byte position within an inode's sector map.
type directness int

const (
	normalDirect directness = iota
	indirect
	doubleIndirect
	outOfLimit
)

// sectorLocation addresses one pointer slot in the inode's sector tree.
type sectorLocation struct {
	directness directness
	index1     int
	index2     int
}

// locateByte classifies byte position pos. Pure math, no I/O.
func locateByte(pos int64) sectorLocation {
	sec := pos / SectorSize
	switch {
	case sec < DirectBlocks:
		return sectorLocation{directness: normalDirect, index1: int(sec)}
	case sec < DirectBlocks+IndirectBlocks:
		return sectorLocation{directness: indirect, index1: int(sec - DirectBlocks)}
	case sec < DirectBlocks+IndirectBlocks*(IndirectBlocks+1):
		r := sec - DirectBlocks - IndirectBlocks
		return sectorLocation{
			directness: doubleIndirect,
			index1:     int(r / IndirectBlocks),
			index2:     int(r % IndirectBlocks),
		}
	default:
		return sectorLocation{directness: outOfLimit}
	}
}

// Directory entry codec: in_use (1 B), name[NameMax+1], inode sector (4 B).

type dirEntry struct {
	inUse  bool
	name   string
	sector uint32
}

func (e *dirEntry) encode(b []byte) {
	if e.inUse {
		b[0] = 1
	} else {
		b[0] = 0
	}
	var name [NameMax + 1]byte
	copy(name[:NameMax], e.name)
	copy(b[1:1+NameMax+1], name[:])
	binary.LittleEndian.PutUint32(b[1+NameMax+1:], e.sector)
}

func (e *dirEntry) decode(b []byte) {
	e.inUse = b[0] != 0
	name := b[1 : 1+NameMax+1]
	n := 0
	for n < NameMax && name[n] != 0 {
		n++
	}
	e.name = string(name[:n])
	e.sector = binary.LittleEndian.Uint32(b[1+NameMax+1:])
}
