package blockfs

import (
	"github.com/example/sectorfs/pkg/fs"
)

// freeMap is the persistent bitmap allocator of device sectors. One bit
// per sector; the bitmap lives in its own file whose inode sits in
// FreeMapSector, so the bitmap's data sectors flow through the buffer
// cache like any other file. Allocation state is held in memory between
// open and close.
type freeMap struct {
	fsys    *FileSys
	sectors uint32
	bits    []byte
}

func newFreeMap(fsys *FileSys, sectors uint32) *freeMap {
	return &freeMap{fsys: fsys, sectors: sectors}
}

func (m *freeMap) byteLen() int64 {
	return int64((m.sectors + 7) / 8)
}

func (m *freeMap) isSet(sector uint32) bool {
	return m.bits[sector/8]&(1<<(sector%8)) != 0
}

func (m *freeMap) set(sector uint32) {
	m.bits[sector/8] |= 1 << (sector % 8)
}

func (m *freeMap) clear(sector uint32) {
	m.bits[sector/8] &^= 1 << (sector % 8)
}

// create builds a fresh bitmap with the reserved sectors marked, then
// materialises the bitmap file on disk. Called only while formatting;
// the in-memory bitmap is live before the file exists so that the file's
// own data sectors can be allocated through it.
func (m *freeMap) create() error {
	m.bits = make([]byte, m.byteLen())
	m.set(FreeMapSector)
	m.set(RootDirSector)

	if err := m.fsys.inodeCreate(FreeMapSector, m.byteLen(), false); err != nil {
		return err
	}
	return m.flush()
}

// open loads the bitmap from its file through the buffer cache.
func (m *freeMap) open() error {
	m.bits = make([]byte, m.byteLen())

	ino, err := m.fsys.inodeOpen(FreeMapSector)
	if err != nil {
		return err
	}
	defer m.fsys.inodeClose(ino)

	n, err := ino.readAt(m.bits, 0)
	if err != nil {
		return err
	}
	if int64(n) != m.byteLen() {
		return fs.NewError("freemap open", "", fs.ErrIO)
	}
	return nil
}

// flush persists the bitmap into its file.
func (m *freeMap) flush() error {
	ino, err := m.fsys.inodeOpen(FreeMapSector)
	if err != nil {
		return err
	}
	defer m.fsys.inodeClose(ino)

	n, err := ino.writeAt(m.bits, 0)
	if err != nil {
		return err
	}
	if int64(n) != m.byteLen() {
		return fs.NewError("freemap flush", "", fs.ErrIO)
	}
	return nil
}

// close persists the bitmap and drops it from memory.
func (m *freeMap) close() error {
	if m.bits == nil {
		return nil
	}
	err := m.flush()
	m.bits = nil
	return err
}

// allocate finds n contiguous clear bits, sets them, and returns the
// first sector number. The find-then-set sequence runs under the
// filesystem's free-map lock so two callers cannot claim the same run.
func (m *freeMap) allocate(n uint32) (uint32, error) {
	if n == 0 {
		return 0, fs.NewError("freemap allocate", "", fs.ErrNoSpace)
	}
	var run uint32
	for s := uint32(0); s < m.sectors; s++ {
		if m.isSet(s) {
			run = 0
			continue
		}
		run++
		if run == n {
			first := s - n + 1
			for i := first; i <= s; i++ {
				m.set(i)
			}
			return first, nil
		}
	}
	return 0, fs.NewError("freemap allocate", "", fs.ErrNoSpace)
}

// release clears n bits starting at sector.
func (m *freeMap) release(sector, n uint32) {
	for i := uint32(0); i < n; i++ {
		if sector+i >= m.sectors {
			panic("freemap: release beyond device")
		}
		m.clear(sector + i)
	}
}

// countFree returns the number of clear bits, for statistics.
func (m *freeMap) countFree() uint32 {
	var free uint32
	for s := uint32(0); s < m.sectors; s++ {
		if !m.isSet(s) {
			free++
		}
	}
	return free
}
