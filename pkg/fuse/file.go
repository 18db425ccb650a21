package fuse

import (
	"context"

	"bazil.org/fuse"
)

// File represents a regular file in the mounted filesystem. Descriptors
// are opened per request so the node carries no server state.
type File struct {
	fsys *SFS
	path string
}

// Attr sets the attributes of the file.
func (f *File) Attr(ctx context.Context, attr *fuse.Attr) error {
	open, err := f.fsys.client.Open(ctx, f.path)
	if err != nil {
		return mapError(err)
	}
	defer f.fsys.client.CloseFd(ctx, open.Fd)

	attr.Inode = uint64(open.Inode)
	attr.Mode = 0o644
	attr.Size = uint64(open.Size)
	return nil
}

// Read serves a kernel read at the request offset.
func (f *File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	open, err := f.fsys.client.Open(ctx, f.path)
	if err != nil {
		return mapError(err)
	}
	defer f.fsys.client.CloseFd(ctx, open.Fd)

	data, _, err := f.fsys.client.ReadAt(ctx, open.Fd, req.Offset, req.Size)
	if err != nil {
		return mapError(err)
	}
	resp.Data = data
	return nil
}

// Write serves a kernel write at the request offset.
func (f *File) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	open, err := f.fsys.client.Open(ctx, f.path)
	if err != nil {
		return mapError(err)
	}
	defer f.fsys.client.CloseFd(ctx, open.Fd)

	n, err := f.fsys.client.WriteAt(ctx, open.Fd, req.Offset, req.Data)
	if err != nil {
		return mapError(err)
	}
	resp.Size = n
	return nil
}

// Flush pushes the server's dirty cache entries to the device.
func (f *File) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	return mapError(f.fsys.client.Flush(ctx))
}
