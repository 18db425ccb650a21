package client

import (
	"context"

	"github.com/example/sectorfs/pkg/api"
	"github.com/example/sectorfs/pkg/fs"
	"github.com/example/sectorfs/pkg/sfs"
)

// statusErr turns a non-OK wire status into the matching filesystem
// error, wrapped with the operation and path for context.
func statusErr(op, path string, s api.Status) error {
	if s == api.Status_OK {
		return nil
	}
	return fs.NewError(op, path, sfs.StatusToError(s))
}

// CreateFile creates a file of the given initial size at path.
func (c *Client) CreateFile(ctx context.Context, path string, size int64) error {
	var resp *api.StatusResponse
	err := c.callWithRetry(ctx, "CreateFile", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.CreateFile(ctx, &api.PathRequest{Session: c.session, Path: path, Size: size})
		return err
	})
	if err != nil {
		return err
	}
	return statusErr("create", path, resp.Status)
}

// MakeDir creates a directory at path.
func (c *Client) MakeDir(ctx context.Context, path string) error {
	var resp *api.StatusResponse
	err := c.callWithRetry(ctx, "MakeDir", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.MakeDir(ctx, &api.PathRequest{Session: c.session, Path: path})
		return err
	})
	if err != nil {
		return err
	}
	return statusErr("mkdir", path, resp.Status)
}

// Remove removes the file or directory at path.
func (c *Client) Remove(ctx context.Context, path string) error {
	var resp *api.StatusResponse
	err := c.callWithRetry(ctx, "Remove", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Remove(ctx, &api.PathRequest{Session: c.session, Path: path})
		return err
	})
	if err != nil {
		return err
	}
	return statusErr("remove", path, resp.Status)
}

// ChangeDir swaps the session's current directory.
func (c *Client) ChangeDir(ctx context.Context, path string) error {
	var resp *api.StatusResponse
	err := c.callWithRetry(ctx, "ChangeDir", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.ChangeDir(ctx, &api.PathRequest{Session: c.session, Path: path})
		return err
	})
	if err != nil {
		return err
	}
	return statusErr("chdir", path, resp.Status)
}

// Open opens a file or directory and returns the descriptor plus the
// attributes the server reported.
func (c *Client) Open(ctx context.Context, path string) (*api.OpenResponse, error) {
	var resp *api.OpenResponse
	err := c.callWithRetry(ctx, "Open", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Open(ctx, &api.PathRequest{Session: c.session, Path: path})
		return err
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != api.Status_OK {
		return nil, statusErr("open", path, resp.Status)
	}
	return resp, nil
}

// CloseFd closes a descriptor.
func (c *Client) CloseFd(ctx context.Context, fd int32) error {
	c.statCache.invalidate(fd)
	var resp *api.StatusResponse
	err := c.callWithRetry(ctx, "CloseFd", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.CloseFd(ctx, &api.HandleRequest{Session: c.session, Fd: fd})
		return err
	})
	if err != nil {
		return err
	}
	return statusErr("close", "", resp.Status)
}

// Read reads up to count bytes at the descriptor's cursor. The returned
// flag reports end of file; the server caps count at its maximum read
// size, so a slice shorter than count is not by itself end of file.
func (c *Client) Read(ctx context.Context, fd int32, count int) ([]byte, bool, error) {
	return c.read(ctx, &api.IORequest{Session: c.session, Fd: fd, Count: uint32(count)})
}

// ReadAt reads at an explicit offset, leaving the cursor alone.
func (c *Client) ReadAt(ctx context.Context, fd int32, offset int64, count int) ([]byte, bool, error) {
	return c.read(ctx, &api.IORequest{
		Session: c.session, Fd: fd, Count: uint32(count), Offset: offset, UseOffset: true,
	})
}

func (c *Client) read(ctx context.Context, req *api.IORequest) ([]byte, bool, error) {
	var resp *api.IOResponse
	err := c.callWithRetry(ctx, "Read", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Read(ctx, req)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if resp.Status != api.Status_OK {
		return nil, false, statusErr("read", "", resp.Status)
	}
	return resp.Data, resp.Eof, nil
}

// Write writes data at the descriptor's cursor and returns the byte
// count. A denied write reports zero bytes and fs.ErrWriteDenied.
func (c *Client) Write(ctx context.Context, fd int32, data []byte) (int, error) {
	return c.write(ctx, fd, &api.IORequest{Session: c.session, Fd: fd, Data: data})
}

// WriteAt writes at an explicit offset, leaving the cursor alone.
func (c *Client) WriteAt(ctx context.Context, fd int32, offset int64, data []byte) (int, error) {
	return c.write(ctx, fd, &api.IORequest{
		Session: c.session, Fd: fd, Data: data, Offset: offset, UseOffset: true,
	})
}

func (c *Client) write(ctx context.Context, fd int32, req *api.IORequest) (int, error) {
	c.statCache.invalidate(fd)
	var resp *api.IOResponse
	err := c.callWithRetry(ctx, "Write", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Write(ctx, req)
		return err
	})
	if err != nil {
		return 0, err
	}
	if resp.Status != api.Status_OK {
		return int(resp.Count), statusErr("write", "", resp.Status)
	}
	return int(resp.Count), nil
}

// Seek repositions the descriptor's cursor and returns the new position.
func (c *Client) Seek(ctx context.Context, fd int32, offset int64, whence int) (int64, error) {
	c.statCache.invalidate(fd)
	var resp *api.SeekResponse
	err := c.callWithRetry(ctx, "Seek", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Seek(ctx, &api.SeekRequest{
			Session: c.session, Fd: fd, Offset: offset, Whence: int32(whence),
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	if resp.Status != api.Status_OK {
		return 0, statusErr("seek", "", resp.Status)
	}
	return resp.Pos, nil
}

// Stat describes an open descriptor. Results are served from a short
// TTL cache between mutations.
func (c *Client) Stat(ctx context.Context, fd int32) (*api.StatResponse, error) {
	if stat, ok := c.statCache.get(fd); ok {
		return stat, nil
	}
	var resp *api.StatResponse
	err := c.callWithRetry(ctx, "Stat", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Stat(ctx, &api.HandleRequest{Session: c.session, Fd: fd})
		return err
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != api.Status_OK {
		return nil, statusErr("stat", "", resp.Status)
	}
	c.statCache.put(fd, resp)
	return resp, nil
}

// ReadDir lists a directory descriptor's entries, dot entries included.
func (c *Client) ReadDir(ctx context.Context, fd int32) ([]*api.DirEntry, error) {
	var resp *api.ReadDirResponse
	err := c.callWithRetry(ctx, "ReadDir", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.ReadDir(ctx, &api.HandleRequest{Session: c.session, Fd: fd})
		return err
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != api.Status_OK {
		return nil, statusErr("readdir", "", resp.Status)
	}
	return resp.Entries, nil
}

// DenyWrite blocks writes to the descriptor's file until AllowWrite.
func (c *Client) DenyWrite(ctx context.Context, fd int32) error {
	return c.setDenyWrite(ctx, fd, true)
}

// AllowWrite undoes an earlier DenyWrite on the descriptor.
func (c *Client) AllowWrite(ctx context.Context, fd int32) error {
	return c.setDenyWrite(ctx, fd, false)
}

func (c *Client) setDenyWrite(ctx context.Context, fd int32, deny bool) error {
	var resp *api.StatusResponse
	err := c.callWithRetry(ctx, "SetDenyWrite", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.SetDenyWrite(ctx, &api.DenyWriteRequest{Session: c.session, Fd: fd, Deny: deny})
		return err
	})
	if err != nil {
		return err
	}
	return statusErr("deny_write", "", resp.Status)
}

// Flush asks the server to write back all dirty cache entries.
func (c *Client) Flush(ctx context.Context) error {
	var resp *api.StatusResponse
	err := c.callWithRetry(ctx, "Flush", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Flush(ctx, &api.FlushRequest{Session: c.session})
		return err
	})
	if err != nil {
		return err
	}
	return statusErr("flush", "", resp.Status)
}
