package blockfs

import (
	"sync"

	"github.com/example/sectorfs/pkg/fs"
)

// File is an open regular file: an inode reference, this opener's seek
// cursor, and whether this handle has denied writes.
type File struct {
	fsys *FileSys
	ino  *inode

	mu     sync.Mutex
	pos    int64
	denied bool
	closed bool
}

var _ fs.File = (*File)(nil)

func (fsys *FileSys) fileOpen(ino *inode) *File {
	return &File{fsys: fsys, ino: ino}
}

// Close releases the handle. A handle that denied writes re-allows them
// first, and the last close of a removed inode releases its sectors.
func (f *File) Close() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return fs.ErrInvalidHandle
	}
	f.closed = true
	if f.denied {
		f.denied = false
		f.ino.allowWrite()
	}
	f.mu.Unlock()
	return f.fsys.inodeClose(f.ino)
}

func (f *File) Inumber() uint32 { return f.ino.sector }

func (f *File) IsDir() bool { return false }

func (f *File) Stat() fs.Stat {
	length, _ := f.ino.length()
	return fs.Stat{Inode: f.ino.sector, Size: length}
}

// Read reads at the cursor and advances it by the bytes read.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.ino.readAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// ReadAt reads at an explicit offset; the cursor is untouched.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fs.ErrOutOfRange
	}
	return f.ino.readAt(p, off)
}

// Write writes at the cursor, growing the file as needed, and advances
// the cursor by the bytes written.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.ino.writeAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// WriteAt writes at an explicit offset; the cursor is untouched.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	return f.ino.writeAt(p, off)
}

// Seek repositions the cursor. Seeking past end of file is legal; a later
// write there zero-fills the gap.
func (f *File) Seek(off int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var base int64
	switch whence {
	case fs.SeekSet:
		base = 0
	case fs.SeekCur:
		base = f.pos
	case fs.SeekEnd:
		length, err := f.ino.length()
		if err != nil {
			return f.pos, err
		}
		base = length
	default:
		return f.pos, fs.ErrOutOfRange
	}
	if base+off < 0 {
		return f.pos, fs.ErrOutOfRange
	}
	f.pos = base + off
	return f.pos, nil
}

// Tell returns the cursor position.
func (f *File) Tell() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Length returns the file's byte length.
func (f *File) Length() int64 {
	length, _ := f.ino.length()
	return length
}

// DenyWrite blocks writes to the underlying inode. At most once per handle.
func (f *File) DenyWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied {
		return
	}
	f.denied = true
	f.ino.denyWrite()
}

// AllowWrite undoes this handle's DenyWrite.
func (f *File) AllowWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.denied {
		return
	}
	f.denied = false
	f.ino.allowWrite()
}
