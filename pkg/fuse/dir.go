package fuse

import (
	"context"
	"errors"
	"os"
	"path"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	sectorfs "github.com/example/sectorfs/pkg/fs"
)

// Dir represents a directory in the mounted filesystem.
type Dir struct {
	fsys *SFS
	path string
}

// Attr sets the attributes of the directory.
func (d *Dir) Attr(ctx context.Context, attr *fuse.Attr) error {
	open, err := d.fsys.client.Open(ctx, d.path)
	if err != nil {
		return mapError(err)
	}
	defer d.fsys.client.CloseFd(ctx, open.Fd)

	attr.Inode = uint64(open.Inode)
	attr.Mode = os.ModeDir | 0o755
	return nil
}

// Lookup resolves a name inside the directory to a file or directory node.
func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	child := path.Join(d.path, name)
	open, err := d.fsys.client.Open(ctx, child)
	if err != nil {
		return nil, mapError(err)
	}
	defer d.fsys.client.CloseFd(ctx, open.Fd)

	if open.IsDir {
		return &Dir{fsys: d.fsys, path: child}, nil
	}
	return &File{fsys: d.fsys, path: child}, nil
}

// ReadDirAll returns all entries in the directory.
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	open, err := d.fsys.client.Open(ctx, d.path)
	if err != nil {
		return nil, mapError(err)
	}
	defer d.fsys.client.CloseFd(ctx, open.Fd)

	entries, err := d.fsys.client.ReadDir(ctx, open.Fd)
	if err != nil {
		return nil, mapError(err)
	}

	dirents := make([]fuse.Dirent, 0, len(entries))
	for _, ent := range entries {
		if ent.Name == "." || ent.Name == ".." {
			continue
		}
		dirents = append(dirents, fuse.Dirent{
			Inode: uint64(ent.Inode),
			Name:  ent.Name,
		})
	}
	return dirents, nil
}

// Create makes a new empty file in the directory.
func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	child := path.Join(d.path, req.Name)
	if err := d.fsys.client.CreateFile(ctx, child, 0); err != nil {
		return nil, nil, mapError(err)
	}
	f := &File{fsys: d.fsys, path: child}
	return f, f, nil
}

// Mkdir makes a new subdirectory.
func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	child := path.Join(d.path, req.Name)
	if err := d.fsys.client.MakeDir(ctx, child); err != nil {
		return nil, mapError(err)
	}
	return &Dir{fsys: d.fsys, path: child}, nil
}

// Remove removes a file or an empty subdirectory.
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	return mapError(d.fsys.client.Remove(ctx, path.Join(d.path, req.Name)))
}

// mapError converts filesystem errors to FUSE errnos.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sectorfs.ErrNotExist):
		return fuse.ENOENT
	case errors.Is(err, sectorfs.ErrExist):
		return fuse.EEXIST
	case errors.Is(err, sectorfs.ErrNotDir):
		return fuse.Errno(syscall.ENOTDIR)
	case errors.Is(err, sectorfs.ErrIsDir):
		return fuse.Errno(syscall.EISDIR)
	case errors.Is(err, sectorfs.ErrNotEmpty):
		return fuse.Errno(syscall.ENOTEMPTY)
	case errors.Is(err, sectorfs.ErrNameTooLong):
		return fuse.Errno(syscall.ENAMETOOLONG)
	case errors.Is(err, sectorfs.ErrNoSpace):
		return fuse.Errno(syscall.ENOSPC)
	case errors.Is(err, sectorfs.ErrOutOfRange):
		return fuse.Errno(syscall.EINVAL)
	case errors.Is(err, sectorfs.ErrWriteDenied):
		return fuse.EPERM
	default:
		return fuse.EIO
	}
}
