package blockfs

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/example/sectorfs/pkg/fs"
)

// inode is the in-memory inode. At most one exists per on-disk sector;
// the filesystem's open-inode table enforces uniqueness. openCnt,
// denyWriteCnt and removed are guarded by the table mutex.
type inode struct {
	fsys         *FileSys
	sector       uint32
	openCnt      int
	denyWriteCnt int
	removed      bool
	extendMu     sync.Mutex
}

// readDiskInode reads an inode header through the buffer cache. A bad
// magic number is a corrupted filesystem or a programming error, and
// aborts.
func (fsys *FileSys) readDiskInode(sector uint32, di *diskInode) error {
	var buf [SectorSize]byte
	if err := fsys.cache.read(sector, buf[:], 0, SectorSize, 0); err != nil {
		return err
	}
	di.decode(buf[:])
	if di.magic != InodeMagic {
		panic(fmt.Sprintf("blockfs: sector %d is not an inode (magic %#x)", sector, di.magic))
	}
	return nil
}

func (fsys *FileSys) writeDiskInode(sector uint32, di *diskInode) error {
	var buf [SectorSize]byte
	di.encode(buf[:])
	return fsys.cache.write(sector, buf[:], 0, SectorSize, 0)
}

// byteToSector returns the device sector backing byte offset pos, or 0 if
// pos is past the length or lands on an unallocated slot.
func (fsys *FileSys) byteToSector(di *diskInode, pos int64) (uint32, error) {
	if pos >= int64(di.length) {
		return 0, nil
	}
	loc := locateByte(pos)
	switch loc.directness {
	case normalDirect:
		return di.direct[loc.index1], nil

	case indirect:
		if di.indirect == 0 {
			return 0, nil
		}
		return fsys.readMapEntry(di.indirect, loc.index1)

	case doubleIndirect:
		if di.doubleIndirect == 0 {
			return 0, nil
		}
		l2, err := fsys.readMapEntry(di.doubleIndirect, loc.index1)
		if err != nil || l2 == 0 {
			return 0, err
		}
		return fsys.readMapEntry(l2, loc.index2)

	default:
		return 0, nil
	}
}

// readMapEntry reads one sector pointer out of an indirect block.
func (fsys *FileSys) readMapEntry(block uint32, index int) (uint32, error) {
	var ptr [4]byte
	if err := fsys.cache.read(block, ptr[:], 0, 4, mapTableOffset(index)); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(ptr[:]), nil
}

func (fsys *FileSys) writeMapEntry(block uint32, index int, sector uint32) error {
	var ptr [4]byte
	binary.LittleEndian.PutUint32(ptr[:], sector)
	return fsys.cache.write(block, ptr[:], 0, 4, mapTableOffset(index))
}

// allocRecord remembers one sector allocated during a single extension,
// together with the pointer slot that references it, so a failed
// extension can be unwound completely.
type allocRecord struct {
	sector    uint32
	parent    uint32 // on-disk block holding the pointer slot
	parentOff int
	inHeader  bool // pointer lives in the in-memory header instead
}

type growLog struct {
	recs []allocRecord
}

func (l *growLog) add(sector, parent uint32, parentOff int, inHeader bool) {
	l.recs = append(l.recs, allocRecord{sector, parent, parentOff, inHeader})
}

// rollbackGrow releases everything a failed extension allocated and
// zeroes the pointer slots that were written to on-disk blocks, keeping
// the invariant that a nonzero slot always references an allocated bit.
func (fsys *FileSys) rollbackGrow(log *growLog) {
	for i := len(log.recs) - 1; i >= 0; i-- {
		rec := log.recs[i]
		if !rec.inHeader {
			// best effort; the header itself is never committed on failure
			_ = fsys.writeMapEntry(rec.parent, rec.parentOff/4, 0)
		}
		fsys.sectorRelease(rec.sector, 1)
	}
	log.recs = nil
}

// registerSector writes a newly allocated data sector's pointer into the
// right direct/indirect/double-indirect slot, allocating and zero-filling
// parent indirect blocks on demand. Writes go through the buffer cache at
// the precise slot offset so sibling pointers are untouched.
func (fsys *FileSys) registerSector(di *diskInode, newSector uint32, loc sectorLocation, log *growLog) error {
	switch loc.directness {
	case normalDirect:
		di.direct[loc.index1] = newSector
		log.add(newSector, 0, 0, true)
		return nil

	case indirect:
		if di.indirect == 0 {
			block, err := fsys.sectorAllocate(1)
			if err != nil {
				return err
			}
			log.add(block, 0, 0, true)
			di.indirect = block
			var fresh [SectorSize]byte
			binary.LittleEndian.PutUint32(fresh[mapTableOffset(loc.index1):], newSector)
			if err := fsys.cache.write(block, fresh[:], 0, SectorSize, 0); err != nil {
				return err
			}
		} else if err := fsys.writeMapEntry(di.indirect, loc.index1, newSector); err != nil {
			return err
		}
		log.add(newSector, di.indirect, mapTableOffset(loc.index1), false)
		return nil

	case doubleIndirect:
		if di.doubleIndirect == 0 {
			top, err := fsys.sectorAllocate(1)
			if err != nil {
				return err
			}
			log.add(top, 0, 0, true)
			di.doubleIndirect = top
			if err := fsys.cache.zero(top); err != nil {
				return err
			}
		}

		l2, err := fsys.readMapEntry(di.doubleIndirect, loc.index1)
		if err != nil {
			return err
		}
		if l2 == 0 {
			l2, err = fsys.sectorAllocate(1)
			if err != nil {
				return err
			}
			log.add(l2, di.doubleIndirect, mapTableOffset(loc.index1), false)
			if err := fsys.writeMapEntry(di.doubleIndirect, loc.index1, l2); err != nil {
				return err
			}
			var fresh [SectorSize]byte
			binary.LittleEndian.PutUint32(fresh[mapTableOffset(loc.index2):], newSector)
			if err := fsys.cache.write(l2, fresh[:], 0, SectorSize, 0); err != nil {
				return err
			}
		} else if err := fsys.writeMapEntry(l2, loc.index2, newSector); err != nil {
			return err
		}
		log.add(newSector, l2, mapTableOffset(loc.index2), false)
		return nil

	default:
		return fs.ErrOutOfRange
	}
}

// extend grows the file's backing store so bytes [start, end] are
// allocated and zero-filled. Entering a new sector allocates it;
// extending within an existing tail sector zero-fills from the current
// offset to the sector's end. On failure every sector allocated by this
// call is released again.
func (fsys *FileSys) extend(di *diskInode, start, end int64) error {
	var log growLog
	zeroes := make([]byte, SectorSize)

	offset := start
	size := end - start + 1
	for size > 0 {
		sectorOfs := int(offset % SectorSize)
		sectorLeft := SectorSize - sectorOfs
		chunk := size
		if chunk > int64(sectorLeft) {
			chunk = int64(sectorLeft)
		}

		if sectorOfs > 0 {
			sec, err := fsys.byteToSector(di, offset)
			if err != nil {
				fsys.rollbackGrow(&log)
				return err
			}
			if sec == 0 {
				panic("blockfs: tail sector missing during extension")
			}
			if err := fsys.cache.write(sec, zeroes, 0, sectorLeft, sectorOfs); err != nil {
				fsys.rollbackGrow(&log)
				return err
			}
		} else {
			sec, err := fsys.sectorAllocate(1)
			if err != nil {
				fsys.rollbackGrow(&log)
				return err
			}
			if err := fsys.registerSector(di, sec, locateByte(offset), &log); err != nil {
				fsys.sectorRelease(sec, 1)
				fsys.rollbackGrow(&log)
				return err
			}
			if err := fsys.cache.zero(sec); err != nil {
				fsys.rollbackGrow(&log)
				return err
			}
		}

		size -= chunk
		offset += chunk
	}
	return nil
}

// inodeCreate writes a fresh inode header to sector, extending the file
// to length bytes of zero-filled data first. A failed extension releases
// what it allocated and propagates.
func (fsys *FileSys) inodeCreate(sector uint32, length int64, isDir bool) error {
	if length < 0 || length > MaxFileSize {
		return fs.ErrOutOfRange
	}
	di := &diskInode{
		length: int32(length),
		magic:  InodeMagic,
	}
	if isDir {
		di.isDir = 1
	}
	if length > 0 {
		if err := fsys.extend(di, 0, length-1); err != nil {
			return err
		}
	}
	return fsys.writeDiskInode(sector, di)
}

// inodeOpen returns the canonical in-memory inode for sector from the
// open-inode table, creating it on first open.
func (fsys *FileSys) inodeOpen(sector uint32) (*inode, error) {
	fsys.itabMu.Lock()
	defer fsys.itabMu.Unlock()
	if ino, ok := fsys.itab[sector]; ok {
		ino.openCnt++
		return ino, nil
	}
	ino := &inode{fsys: fsys, sector: sector, openCnt: 1}
	fsys.itab[sector] = ino
	return ino, nil
}

// inodeReopen bumps the open count of an already-open inode.
func (fsys *FileSys) inodeReopen(ino *inode) *inode {
	fsys.itabMu.Lock()
	ino.openCnt++
	fsys.itabMu.Unlock()
	return ino
}

// inodeClose drops one reference. The last close removes the inode from
// the table and, if it was removed, walks the on-disk structure and
// releases every allocated sector.
func (fsys *FileSys) inodeClose(ino *inode) error {
	if ino == nil {
		return nil
	}
	fsys.itabMu.Lock()
	ino.openCnt--
	if ino.openCnt < 0 {
		panic("blockfs: inode open count underflow")
	}
	last := ino.openCnt == 0
	removed := ino.removed
	if last {
		delete(fsys.itab, ino.sector)
	}
	fsys.itabMu.Unlock()

	if !last || !removed {
		return nil
	}
	var di diskInode
	if err := fsys.readDiskInode(ino.sector, &di); err != nil {
		return err
	}
	if err := fsys.freeInodeSectors(&di); err != nil {
		return err
	}
	fsys.sectorRelease(ino.sector, 1)
	return nil
}

// inodeRemove marks the inode doomed; its blocks are released when the
// last opener closes.
func (fsys *FileSys) inodeRemove(ino *inode) {
	fsys.itabMu.Lock()
	ino.removed = true
	fsys.itabMu.Unlock()
}

func (fsys *FileSys) inodeIsRemoved(ino *inode) bool {
	fsys.itabMu.Lock()
	defer fsys.itabMu.Unlock()
	return ino.removed
}

// freeInodeSectors releases every sector the inode references: each
// second level of the double-indirect tree, the single-indirect entries,
// both header blocks, and the direct pointers. Pointer tables are packed,
// so the walk stops at the first zero slot.
func (fsys *FileSys) freeInodeSectors(di *diskInode) error {
	if di.doubleIndirect > 0 {
		for i := 0; i < IndirectBlocks; i++ {
			l2, err := fsys.readMapEntry(di.doubleIndirect, i)
			if err != nil {
				return err
			}
			if l2 == 0 {
				break
			}
			for j := 0; j < IndirectBlocks; j++ {
				sec, err := fsys.readMapEntry(l2, j)
				if err != nil {
					return err
				}
				if sec == 0 {
					break
				}
				fsys.sectorRelease(sec, 1)
			}
			fsys.sectorRelease(l2, 1)
		}
		fsys.sectorRelease(di.doubleIndirect, 1)
	}

	if di.indirect > 0 {
		for i := 0; i < IndirectBlocks; i++ {
			sec, err := fsys.readMapEntry(di.indirect, i)
			if err != nil {
				return err
			}
			if sec == 0 {
				break
			}
			fsys.sectorRelease(sec, 1)
		}
		fsys.sectorRelease(di.indirect, 1)
	}

	for _, sec := range di.direct {
		if sec == 0 {
			break
		}
		fsys.sectorRelease(sec, 1)
	}
	return nil
}

// readAt reads up to len(p) bytes starting at offset. A zero sector slot
// or the file length ends the read; the byte count is returned.
func (ino *inode) readAt(p []byte, offset int64) (int, error) {
	var di diskInode
	if err := ino.fsys.readDiskInode(ino.sector, &di); err != nil {
		return 0, err
	}

	bytesRead := 0
	size := len(p)
	for size > 0 {
		sectorOfs := int(offset % SectorSize)
		inodeLeft := int64(di.length) - offset
		sectorLeft := SectorSize - sectorOfs

		chunk := int64(size)
		if chunk > int64(sectorLeft) {
			chunk = int64(sectorLeft)
		}
		if chunk > inodeLeft {
			chunk = inodeLeft
		}
		if chunk <= 0 {
			break
		}

		sec, err := ino.fsys.byteToSector(&di, offset)
		if err != nil {
			return bytesRead, err
		}
		if sec == 0 {
			break
		}
		if err := ino.fsys.cache.read(sec, p, bytesRead, int(chunk), sectorOfs); err != nil {
			return bytesRead, err
		}

		size -= int(chunk)
		offset += chunk
		bytesRead += int(chunk)
	}
	return bytesRead, nil
}

// writeAt writes len(p) bytes at offset, growing the file when the write
// reaches past the current length. Growth and the length commit happen
// under the inode's extension lock; payload bytes are copied after the
// lock is released, so a concurrent reader may observe zero-filled
// sectors before the writer fills them.
func (ino *inode) writeAt(p []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, fs.ErrOutOfRange
	}
	ino.fsys.itabMu.Lock()
	denied := ino.denyWriteCnt > 0
	ino.fsys.itabMu.Unlock()
	if denied {
		return 0, fs.ErrWriteDenied
	}
	if len(p) == 0 {
		return 0, nil
	}

	writeEnd := offset + int64(len(p)) - 1
	if writeEnd >= MaxFileSize {
		return 0, fs.ErrOutOfRange
	}

	var di diskInode
	ino.extendMu.Lock()
	if err := ino.fsys.readDiskInode(ino.sector, &di); err != nil {
		ino.extendMu.Unlock()
		return 0, err
	}
	if writeEnd > int64(di.length)-1 {
		oldLength := int64(di.length)
		di.length = int32(writeEnd + 1)
		if err := ino.fsys.extend(&di, oldLength, writeEnd); err != nil {
			ino.extendMu.Unlock()
			return 0, err
		}
		if err := ino.fsys.writeDiskInode(ino.sector, &di); err != nil {
			ino.extendMu.Unlock()
			return 0, err
		}
	}
	ino.extendMu.Unlock()

	bytesWritten := 0
	size := len(p)
	for size > 0 {
		sectorOfs := int(offset % SectorSize)
		inodeLeft := int64(di.length) - offset
		sectorLeft := SectorSize - sectorOfs

		chunk := int64(size)
		if chunk > int64(sectorLeft) {
			chunk = int64(sectorLeft)
		}
		if chunk > inodeLeft {
			chunk = inodeLeft
		}
		if chunk <= 0 {
			break
		}

		sec, err := ino.fsys.byteToSector(&di, offset)
		if err != nil {
			return bytesWritten, err
		}
		if sec == 0 {
			break
		}
		if err := ino.fsys.cache.write(sec, p, bytesWritten, int(chunk), sectorOfs); err != nil {
			return bytesWritten, err
		}

		size -= int(chunk)
		offset += chunk
		bytesWritten += int(chunk)
	}
	return bytesWritten, nil
}

// length returns the file's byte length from the on-disk header.
func (ino *inode) length() (int64, error) {
	var di diskInode
	if err := ino.fsys.readDiskInode(ino.sector, &di); err != nil {
		return 0, err
	}
	return int64(di.length), nil
}

// isDir reports whether the inode is a directory.
func (ino *inode) isDir() (bool, error) {
	var di diskInode
	if err := ino.fsys.readDiskInode(ino.sector, &di); err != nil {
		return false, err
	}
	return di.isDir != 0, nil
}

// denyWrite disables writes to the inode. May be called at most once per
// opener.
func (ino *inode) denyWrite() {
	ino.fsys.itabMu.Lock()
	defer ino.fsys.itabMu.Unlock()
	ino.denyWriteCnt++
	if ino.denyWriteCnt > ino.openCnt {
		panic("blockfs: deny_write_cnt exceeds open_cnt")
	}
}

// allowWrite re-enables writes. Must be called once per earlier denyWrite.
func (ino *inode) allowWrite() {
	ino.fsys.itabMu.Lock()
	defer ino.fsys.itabMu.Unlock()
	if ino.denyWriteCnt <= 0 {
		panic("blockfs: allow_write without deny_write")
	}
	ino.denyWriteCnt--
}
