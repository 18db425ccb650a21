// Package blockfs implements a sector-backed filesystem with growable
// files, hierarchical directories, and a write-back buffer cache. Logical
// file and directory operations are converted into whole-sector reads and
// writes against a fixed-sector block device.
//
// Layout on the device: sector 0 holds the free-map file's inode, sector
// 1 the root directory's inode. Files are indexed-allocation inodes with
// direct, single-indirect, and double-indirect pointers, grown on demand
// with zero-fill.
package blockfs

import (
	"sync"

	"github.com/example/sectorfs/pkg/device"
	"github.com/example/sectorfs/pkg/fs"
)

// FileSys is a mounted filesystem. A coarse lock serialises multi-step
// directory mutations; per-inode extension locks and per-buffer-head
// locks provide finer-grained concurrency for data I/O. Lock order is
// always façade lock, then extension lock, then buffer-head lock.
type FileSys struct {
	dev   device.BlockDevice
	cache *bufferCache

	mu sync.Mutex // file_sys_lock: create/open/remove/mkdir/chdir

	fmapMu sync.Mutex
	fmap   *freeMap

	itabMu sync.Mutex
	itab   map[uint32]*inode
}

var _ fs.FileSystem = (*FileSys)(nil)

// Task carries the per-caller state the core consumes: the current
// directory relative paths resolve against.
type Task struct {
	fsys   *FileSys
	curDir *Dir
}

var _ fs.Task = (*Task)(nil)

// Close releases the task's current-directory handle.
func (t *Task) Close() error {
	if t == nil || t.curDir == nil {
		return nil
	}
	d := t.curDir
	t.curDir = nil
	return d.Close()
}

// Mount attaches to a block device. When format is set the device is
// wiped first: free map created with the reserved sectors marked, root
// directory created with "." and ".." pointing at itself.
func Mount(dev device.BlockDevice, format bool) (*FileSys, error) {
	fsys := &FileSys{
		dev:   dev,
		cache: newBufferCache(dev),
		itab:  make(map[uint32]*inode),
	}
	fsys.fmap = newFreeMap(fsys, dev.SectorCount())

	if format {
		if err := fsys.doFormat(); err != nil {
			return nil, err
		}
	} else {
		// refuse to mount an image that was never formatted
		var buf [SectorSize]byte
		if err := fsys.cache.read(FreeMapSector, buf[:], 0, SectorSize, 0); err != nil {
			return nil, err
		}
		var di diskInode
		di.decode(buf[:])
		if di.magic != InodeMagic {
			return nil, fs.NewError("mount", "", fs.ErrIO)
		}
		if err := fsys.fmap.open(); err != nil {
			return nil, err
		}
	}
	return fsys, nil
}

func (fsys *FileSys) doFormat() error {
	if err := fsys.fmap.create(); err != nil {
		return err
	}
	if err := fsys.dirCreate(RootDirSector, rootDirEntries); err != nil {
		return err
	}
	root, err := fsys.dirOpenRoot()
	if err != nil {
		return err
	}
	defer root.Close()
	if err := root.add(".", RootDirSector); err != nil {
		return err
	}
	if err := root.add("..", RootDirSector); err != nil {
		return err
	}
	return fsys.fmap.flush()
}

// sectorAllocate claims n contiguous free sectors. The find-then-set
// sequence is atomic under the free-map lock.
func (fsys *FileSys) sectorAllocate(n uint32) (uint32, error) {
	fsys.fmapMu.Lock()
	defer fsys.fmapMu.Unlock()
	return fsys.fmap.allocate(n)
}

// sectorRelease returns n sectors starting at sector to the free map.
func (fsys *FileSys) sectorRelease(sector, n uint32) {
	fsys.fmapMu.Lock()
	defer fsys.fmapMu.Unlock()
	fsys.fmap.release(sector, n)
}

// NewTask returns a caller context whose current directory is the root.
func (fsys *FileSys) NewTask() (fs.Task, error) {
	root, err := fsys.dirOpenRoot()
	if err != nil {
		return nil, err
	}
	return &Task{fsys: fsys, curDir: root}, nil
}

func (fsys *FileSys) task(t fs.Task) (*Task, error) {
	task, ok := t.(*Task)
	if !ok || task == nil || task.curDir == nil {
		return nil, fs.ErrInvalidHandle
	}
	return task, nil
}

// Create creates a file of the given initial size at path.
func (fsys *FileSys) Create(t fs.Task, path string, size int64) error {
	const op = "create"
	task, err := fsys.task(t)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	dir, leaf, err := fsys.parsePath(task, path)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	defer dir.Close()
	if fsys.inodeIsRemoved(dir.ino) {
		return fs.NewError(op, path, fs.ErrRemoved)
	}

	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	sector, err := fsys.sectorAllocate(1)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	if err := fsys.inodeCreate(sector, size, false); err != nil {
		fsys.sectorRelease(sector, 1)
		return fs.NewError(op, path, err)
	}
	if err := dir.add(leaf, sector); err != nil {
		fsys.releaseCreated(sector)
		return fs.NewError(op, path, err)
	}
	return nil
}

// releaseCreated undoes a successful inodeCreate whose directory entry
// never landed: data sectors first, then the header sector.
func (fsys *FileSys) releaseCreated(sector uint32) {
	var di diskInode
	if err := fsys.readDiskInode(sector, &di); err == nil {
		fsys.freeInodeSectors(&di)
	}
	fsys.sectorRelease(sector, 1)
}

// CreateDir creates a directory at path and initialises "." and "..".
func (fsys *FileSys) CreateDir(t fs.Task, path string) error {
	const op = "mkdir"
	task, err := fsys.task(t)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	dir, leaf, err := fsys.parsePath(task, path)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	defer dir.Close()
	if fsys.inodeIsRemoved(dir.ino) {
		return fs.NewError(op, path, fs.ErrRemoved)
	}

	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	sector, err := fsys.sectorAllocate(1)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	if err := fsys.dirCreate(sector, rootDirEntries); err != nil {
		fsys.sectorRelease(sector, 1)
		return fs.NewError(op, path, err)
	}
	if err := dir.add(leaf, sector); err != nil {
		fsys.releaseCreated(sector)
		return fs.NewError(op, path, err)
	}

	ino, err := fsys.inodeOpen(sector)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	newDir := fsys.dirOpen(ino)
	defer newDir.Close()
	if err := newDir.add(".", sector); err != nil {
		return fs.NewError(op, path, err)
	}
	if err := newDir.add("..", dir.Inumber()); err != nil {
		return fs.NewError(op, path, err)
	}
	return nil
}

// Open opens the file or directory at path. Directories come back as
// fs.Dir handles, regular files as fs.File handles.
func (fsys *FileSys) Open(t fs.Task, path string) (fs.Handle, error) {
	const op = "open"
	task, err := fsys.task(t)
	if err != nil {
		return nil, fs.NewError(op, path, err)
	}
	dir, leaf, err := fsys.parsePath(task, path)
	if err != nil {
		return nil, fs.NewError(op, path, err)
	}
	defer dir.Close()
	if fsys.inodeIsRemoved(dir.ino) {
		return nil, fs.NewError(op, path, fs.ErrRemoved)
	}

	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ino, err := dir.lookup(leaf)
	if err != nil {
		return nil, fs.NewError(op, path, err)
	}
	isDir, err := ino.isDir()
	if err != nil {
		fsys.inodeClose(ino)
		return nil, fs.NewError(op, path, err)
	}
	if isDir {
		return fsys.dirOpen(ino), nil
	}
	return fsys.fileOpen(ino), nil
}

// Remove removes the file or directory named by path. A directory must
// contain nothing beyond "." and ".."; a removed inode that is still open
// elsewhere keeps its sectors until the last close.
func (fsys *FileSys) Remove(t fs.Task, path string) error {
	const op = "remove"
	task, err := fsys.task(t)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	dir, leaf, err := fsys.parsePath(task, path)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	defer dir.Close()
	if fsys.inodeIsRemoved(dir.ino) {
		return fs.NewError(op, path, fs.ErrRemoved)
	}

	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ino, err := dir.lookup(leaf)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	defer fsys.inodeClose(ino)

	isDir, err := ino.isDir()
	if err != nil {
		return fs.NewError(op, path, err)
	}
	if isDir {
		child := fsys.dirOpen(fsys.inodeReopen(ino))
		nonEmpty, err := child.hasRealEntries()
		child.Close()
		if err != nil {
			return fs.NewError(op, path, err)
		}
		if nonEmpty {
			return fs.NewError(op, path, fs.ErrNotEmpty)
		}
	}
	if err := dir.remove(leaf); err != nil {
		return fs.NewError(op, path, err)
	}
	return nil
}

// ChDir swaps the task's current directory to path.
func (fsys *FileSys) ChDir(t fs.Task, path string) error {
	const op = "chdir"
	task, err := fsys.task(t)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	dir, leaf, err := fsys.parsePath(task, path)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	defer dir.Close()

	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ino, err := dir.lookup(leaf)
	if err != nil {
		return fs.NewError(op, path, err)
	}
	isDir, err := ino.isDir()
	if err != nil {
		fsys.inodeClose(ino)
		return fs.NewError(op, path, err)
	}
	if !isDir {
		fsys.inodeClose(ino)
		return fs.NewError(op, path, fs.ErrNotDir)
	}

	old := task.curDir
	task.curDir = fsys.dirOpen(ino)
	return old.Close()
}

// Flush writes every dirty cache entry back to the device.
func (fsys *FileSys) Flush() error {
	return fsys.cache.flushAll()
}

// Close persists the free map, flushes the cache, and closes the device.
// In-flight operations racing with Close are a caller error.
func (fsys *FileSys) Close() error {
	// no free-map lock here: persisting the bitmap goes through the
	// inode layer, which sits above the free-map lock in the ordering
	if err := fsys.fmap.close(); err != nil {
		return err
	}
	if err := fsys.cache.flushAll(); err != nil {
		return err
	}
	return fsys.dev.Close()
}

// Stats reports total and free sectors on the device.
func (fsys *FileSys) Stats() (total, free uint32) {
	fsys.fmapMu.Lock()
	defer fsys.fmapMu.Unlock()
	return fsys.fmap.sectors, fsys.fmap.countFree()
}

// SectorUsage returns a snapshot of the allocation bit for every sector,
// for inspection tooling.
func (fsys *FileSys) SectorUsage() []bool {
	fsys.fmapMu.Lock()
	defer fsys.fmapMu.Unlock()
	used := make([]bool, fsys.fmap.sectors)
	for s := uint32(0); s < fsys.fmap.sectors; s++ {
		used[s] = fsys.fmap.isSet(s)
	}
	return used
}
