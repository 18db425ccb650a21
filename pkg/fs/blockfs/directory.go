package blockfs

import (
	"github.com/example/sectorfs/pkg/fs"
)

// Dir is an open directory: a handle over a directory inode whose data is
// a packed table of fixed-size entries, plus this opener's read cursor.
type Dir struct {
	fsys *FileSys
	ino  *inode
	pos  int64
}

var _ fs.Dir = (*Dir)(nil)

// dirCreate writes a directory inode at sector sized for entryCnt entries.
func (fsys *FileSys) dirCreate(sector uint32, entryCnt int) error {
	return fsys.inodeCreate(sector, int64(entryCnt)*dirEntrySize, true)
}

// dirOpen wraps an open inode in a directory handle. The handle owns the
// inode reference and releases it on Close.
func (fsys *FileSys) dirOpen(ino *inode) *Dir {
	return &Dir{fsys: fsys, ino: ino}
}

// dirOpenRoot opens the root directory.
func (fsys *FileSys) dirOpenRoot() (*Dir, error) {
	ino, err := fsys.inodeOpen(RootDirSector)
	if err != nil {
		return nil, err
	}
	return fsys.dirOpen(ino), nil
}

// reopen returns an independent handle over the same directory inode.
func (d *Dir) reopen() *Dir {
	return d.fsys.dirOpen(d.fsys.inodeReopen(d.ino))
}

// Close releases the handle's inode reference.
func (d *Dir) Close() error {
	if d == nil {
		return nil
	}
	return d.fsys.inodeClose(d.ino)
}

func (d *Dir) Inumber() uint32 { return d.ino.sector }

func (d *Dir) IsDir() bool { return true }

func (d *Dir) Stat() fs.Stat {
	length, _ := d.ino.length()
	return fs.Stat{Inode: d.ino.sector, Size: length, IsDir: true}
}

// entryCount returns the number of entry slots the table currently holds.
func (d *Dir) entryCount() (int, error) {
	length, err := d.ino.length()
	if err != nil {
		return 0, err
	}
	return int(length / dirEntrySize), nil
}

// readEntry reads entry slot i.
func (d *Dir) readEntry(i int, e *dirEntry) error {
	var buf [dirEntrySize]byte
	n, err := d.ino.readAt(buf[:], int64(i)*dirEntrySize)
	if err != nil {
		return err
	}
	if n != dirEntrySize {
		return fs.NewError("dir read", "", fs.ErrIO)
	}
	e.decode(buf[:])
	return nil
}

// writeEntry writes entry slot i, growing the table when i is one past
// the end.
func (d *Dir) writeEntry(i int, e *dirEntry) error {
	var buf [dirEntrySize]byte
	e.encode(buf[:])
	n, err := d.ino.writeAt(buf[:], int64(i)*dirEntrySize)
	if err != nil {
		return err
	}
	if n != dirEntrySize {
		return fs.NewError("dir write", "", fs.ErrNoSpace)
	}
	return nil
}

// findEntry returns the slot index of the live entry named name, or -1.
func (d *Dir) findEntry(name string) (int, *dirEntry, error) {
	count, err := d.entryCount()
	if err != nil {
		return -1, nil, err
	}
	var e dirEntry
	for i := 0; i < count; i++ {
		if err := d.readEntry(i, &e); err != nil {
			return -1, nil, err
		}
		if e.inUse && e.name == name {
			return i, &e, nil
		}
	}
	return -1, nil, nil
}

// lookup finds name in the directory and opens the referenced inode.
func (d *Dir) lookup(name string) (*inode, error) {
	if len(name) > NameMax {
		return nil, fs.ErrNameTooLong
	}
	i, e, err := d.findEntry(name)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return nil, fs.ErrNotExist
	}
	return d.fsys.inodeOpen(e.sector)
}

// add records name -> sector in the first free slot, growing the table
// if every slot is live. Fails if a live entry already has the name or
// the name is too long.
func (d *Dir) add(name string, sector uint32) error {
	if name == "" || len(name) > NameMax {
		return fs.ErrNameTooLong
	}
	if i, _, err := d.findEntry(name); err != nil {
		return err
	} else if i >= 0 {
		return fs.ErrExist
	}

	count, err := d.entryCount()
	if err != nil {
		return err
	}
	slot := count
	var e dirEntry
	for i := 0; i < count; i++ {
		if err := d.readEntry(i, &e); err != nil {
			return err
		}
		if !e.inUse {
			slot = i
			break
		}
	}
	return d.writeEntry(slot, &dirEntry{inUse: true, name: name, sector: sector})
}

// remove clears name's entry and marks the referenced inode removed so
// its sectors are released when the last opener closes.
func (d *Dir) remove(name string) error {
	i, e, err := d.findEntry(name)
	if err != nil {
		return err
	}
	if i < 0 {
		return fs.ErrNotExist
	}

	ino, err := d.fsys.inodeOpen(e.sector)
	if err != nil {
		return err
	}

	e.inUse = false
	if err := d.writeEntry(i, e); err != nil {
		d.fsys.inodeClose(ino)
		return err
	}

	d.fsys.inodeRemove(ino)
	return d.fsys.inodeClose(ino)
}

// ReadDir returns the next in-use entry's name and inode, advancing the
// handle's cursor. "." and ".." are yielded like any other entry.
func (d *Dir) ReadDir() (fs.DirEntry, bool) {
	count, err := d.entryCount()
	if err != nil {
		return fs.DirEntry{}, false
	}
	var e dirEntry
	for int(d.pos) < count {
		i := int(d.pos)
		d.pos++
		if err := d.readEntry(i, &e); err != nil {
			return fs.DirEntry{}, false
		}
		if e.inUse {
			return fs.DirEntry{Name: e.name, Inode: e.sector}, true
		}
	}
	return fs.DirEntry{}, false
}

// Rewind resets the read cursor.
func (d *Dir) Rewind() { d.pos = 0 }

// hasRealEntries reports whether the directory contains anything beyond
// "." and "..". Used to enforce the removal rule.
func (d *Dir) hasRealEntries() (bool, error) {
	count, err := d.entryCount()
	if err != nil {
		return false, err
	}
	var e dirEntry
	for i := 0; i < count; i++ {
		if err := d.readEntry(i, &e); err != nil {
			return false, err
		}
		if e.inUse && e.name != "." && e.name != ".." {
			return true, nil
		}
	}
	return false, nil
}
