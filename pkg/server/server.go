// Package server exposes a mounted sector filesystem over gRPC. It plays
// the role of the syscall dispatcher: every request names a session, and
// the server owns that session's task (current directory) and descriptor
// table.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"

	"github.com/example/sectorfs/pkg/api"
	"github.com/example/sectorfs/pkg/fs"
	"github.com/example/sectorfs/pkg/sfs"
)

// Config contains the server configuration.
type Config struct {
	// Network address to listen on (e.g. ":5649")
	ListenAddress string

	// Maximum concurrent requests
	MaxConcurrent int

	// Maximum read size in bytes
	MaxReadSize int

	// Maximum write size in bytes
	MaxWriteSize int

	// Maximum open descriptors per session
	MaxOpenFiles int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: ":5649",
		MaxConcurrent: 100,
		MaxReadSize:   1024 * 1024, // 1MB
		MaxWriteSize:  1024 * 1024, // 1MB
		MaxOpenFiles:  128,
	}
}

// session is the per-caller state: a task holding the current directory,
// and the open descriptor table.
type session struct {
	mu     sync.Mutex
	task   fs.Task
	fds    map[int32]fs.Handle
	nextFd int32
}

// Server implements api.SectorFSServer over an fs.FileSystem.
type Server struct {
	api.UnimplementedSectorFSServer

	config     *Config
	fileSystem fs.FileSystem

	sessionMu sync.Mutex
	sessions  map[uint64]*session

	// Worker pool for limiting concurrent requests
	workerPool chan struct{}
}

// New creates a server over an already mounted filesystem.
func New(config *Config, fileSystem fs.FileSystem) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		config:     config,
		fileSystem: fileSystem,
		sessions:   make(map[uint64]*session),
		workerPool: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Start listens on the configured address and serves until the listener
// fails. Serve is the listener-supplied variant used by main.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve runs the gRPC server on lis.
func (s *Server) Serve(lis net.Listener) error {
	grpcServer := grpc.NewServer()
	api.RegisterSectorFSServer(grpcServer, s)

	log.Printf("sectorfs server starting on %s", lis.Addr())
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// acquireWorker gets a worker from the pool or gives up with the context.
func (s *Server) acquireWorker(ctx context.Context) error {
	select {
	case s.workerPool <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) releaseWorker() {
	<-s.workerPool
}

// getSession returns the session for id, creating it (with a task rooted
// at "/") on first use.
func (s *Server) getSession(id uint64) (*session, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	task, err := s.fileSystem.NewTask()
	if err != nil {
		return nil, err
	}
	sess := &session{
		task:   task,
		fds:    make(map[int32]fs.Handle),
		nextFd: 3, // leave room for the conventional std descriptors
	}
	s.sessions[id] = sess
	return sess, nil
}

// install adds a handle to the session's descriptor table.
func (sess *session) install(h fs.Handle, limit int) (int32, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.fds) >= limit {
		return 0, false
	}
	fd := sess.nextFd
	sess.nextFd++
	sess.fds[fd] = h
	return fd, true
}

// handle looks a descriptor up.
func (sess *session) handle(fd int32) (fs.Handle, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	h, ok := sess.fds[fd]
	return h, ok
}

// detach removes a descriptor without closing it.
func (sess *session) detach(fd int32) (fs.Handle, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	h, ok := sess.fds[fd]
	if ok {
		delete(sess.fds, fd)
	}
	return h, ok
}

// processRequest handles the common wrapping: logging, worker pool,
// duration accounting.
func (s *Server) processRequest(ctx context.Context, op string, process func() (interface{}, api.Status, error)) (interface{}, error) {
	reqID := fmt.Sprintf("%s-%d", op, time.Now().UnixNano())
	clientAddr := "unknown"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		clientAddr = p.Addr.String()
	}

	sfs.LogRequest(op, reqID, clientAddr)
	startTime := time.Now()

	if err := s.acquireWorker(ctx); err != nil {
		sfs.LogError(op, reqID, err)
		return nil, err
	}
	defer s.releaseWorker()

	result, status, err := process()
	if err != nil {
		sfs.LogError(op, reqID, err)
		return nil, err
	}

	sfs.LogResponse(op, reqID, status, time.Since(startTime).String())
	return result, nil
}

// CreateFile implements the CreateFile RPC method.
func (s *Server) CreateFile(ctx context.Context, req *api.PathRequest) (*api.StatusResponse, error) {
	result, err := s.processRequest(ctx, "CreateFile", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		st := sfs.MapErrorToStatus(s.fileSystem.Create(sess.task, req.Path, req.Size))
		return &api.StatusResponse{Status: st}, st, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.StatusResponse), nil
}

// MakeDir implements the MakeDir RPC method.
func (s *Server) MakeDir(ctx context.Context, req *api.PathRequest) (*api.StatusResponse, error) {
	result, err := s.processRequest(ctx, "MakeDir", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		st := sfs.MapErrorToStatus(s.fileSystem.CreateDir(sess.task, req.Path))
		return &api.StatusResponse{Status: st}, st, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.StatusResponse), nil
}

// Remove implements the Remove RPC method.
func (s *Server) Remove(ctx context.Context, req *api.PathRequest) (*api.StatusResponse, error) {
	result, err := s.processRequest(ctx, "Remove", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		st := sfs.MapErrorToStatus(s.fileSystem.Remove(sess.task, req.Path))
		return &api.StatusResponse{Status: st}, st, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.StatusResponse), nil
}

// ChangeDir implements the ChangeDir RPC method.
func (s *Server) ChangeDir(ctx context.Context, req *api.PathRequest) (*api.StatusResponse, error) {
	result, err := s.processRequest(ctx, "ChangeDir", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		st := sfs.MapErrorToStatus(s.fileSystem.ChDir(sess.task, req.Path))
		return &api.StatusResponse{Status: st}, st, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.StatusResponse), nil
}

// Open implements the Open RPC method.
func (s *Server) Open(ctx context.Context, req *api.PathRequest) (*api.OpenResponse, error) {
	result, err := s.processRequest(ctx, "Open", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		h, err := s.fileSystem.Open(sess.task, req.Path)
		if err != nil {
			st := sfs.MapErrorToStatus(err)
			return &api.OpenResponse{Status: st}, st, nil
		}
		fd, ok := sess.install(h, s.config.MaxOpenFiles)
		if !ok {
			h.Close()
			return &api.OpenResponse{Status: api.Status_ERR_NOSPC}, api.Status_ERR_NOSPC, nil
		}
		stat := h.Stat()
		return &api.OpenResponse{
			Status: api.Status_OK,
			Fd:     fd,
			IsDir:  stat.IsDir,
			Inode:  stat.Inode,
			Size:   stat.Size,
		}, api.Status_OK, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.OpenResponse), nil
}

// CloseFd implements the CloseFd RPC method.
func (s *Server) CloseFd(ctx context.Context, req *api.HandleRequest) (*api.StatusResponse, error) {
	result, err := s.processRequest(ctx, "CloseFd", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		h, ok := sess.detach(req.Fd)
		if !ok {
			return &api.StatusResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE, nil
		}
		st := sfs.MapErrorToStatus(h.Close())
		return &api.StatusResponse{Status: st}, st, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.StatusResponse), nil
}

// Read implements the Read RPC method.
func (s *Server) Read(ctx context.Context, req *api.IORequest) (*api.IOResponse, error) {
	result, err := s.processRequest(ctx, "Read", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		h, ok := sess.handle(req.Fd)
		if !ok {
			return &api.IOResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE, nil
		}
		f, ok := h.(fs.File)
		if !ok {
			return &api.IOResponse{Status: api.Status_ERR_ISDIR}, api.Status_ERR_ISDIR, nil
		}

		count := int(req.Count)
		if count > s.config.MaxReadSize {
			count = s.config.MaxReadSize
		}
		buf := make([]byte, count)
		var n int
		if req.UseOffset {
			n, err = f.ReadAt(buf, req.Offset)
		} else {
			n, err = f.Read(buf)
		}
		if err != nil {
			st := sfs.MapErrorToStatus(err)
			return &api.IOResponse{Status: st}, st, nil
		}
		eof := n < count
		return &api.IOResponse{Status: api.Status_OK, Data: buf[:n], Eof: eof}, api.Status_OK, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.IOResponse), nil
}

// Write implements the Write RPC method. A write denied by deny_write
// reports ERR_ACCES with a zero count, matching the core's contract.
func (s *Server) Write(ctx context.Context, req *api.IORequest) (*api.IOResponse, error) {
	result, err := s.processRequest(ctx, "Write", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		h, ok := sess.handle(req.Fd)
		if !ok {
			return &api.IOResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE, nil
		}
		f, ok := h.(fs.File)
		if !ok {
			return &api.IOResponse{Status: api.Status_ERR_ISDIR}, api.Status_ERR_ISDIR, nil
		}
		if len(req.Data) > s.config.MaxWriteSize {
			return &api.IOResponse{Status: api.Status_ERR_INVAL}, api.Status_ERR_INVAL, nil
		}

		var n int
		if req.UseOffset {
			n, err = f.WriteAt(req.Data, req.Offset)
		} else {
			n, err = f.Write(req.Data)
		}
		if err != nil {
			st := sfs.MapErrorToStatus(err)
			return &api.IOResponse{Status: st, Count: uint32(n)}, st, nil
		}
		return &api.IOResponse{Status: api.Status_OK, Count: uint32(n)}, api.Status_OK, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.IOResponse), nil
}

// Seek implements the Seek RPC method.
func (s *Server) Seek(ctx context.Context, req *api.SeekRequest) (*api.SeekResponse, error) {
	result, err := s.processRequest(ctx, "Seek", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		h, ok := sess.handle(req.Fd)
		if !ok {
			return &api.SeekResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE, nil
		}
		f, ok := h.(fs.File)
		if !ok {
			return &api.SeekResponse{Status: api.Status_ERR_ISDIR}, api.Status_ERR_ISDIR, nil
		}
		pos, err := f.Seek(req.Offset, int(req.Whence))
		if err != nil {
			st := sfs.MapErrorToStatus(err)
			return &api.SeekResponse{Status: st}, st, nil
		}
		return &api.SeekResponse{Status: api.Status_OK, Pos: pos}, api.Status_OK, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.SeekResponse), nil
}

// Stat implements the Stat RPC method. It covers the length, isdir, and
// inumber calls of the dispatcher surface in one response.
func (s *Server) Stat(ctx context.Context, req *api.HandleRequest) (*api.StatResponse, error) {
	result, err := s.processRequest(ctx, "Stat", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		h, ok := sess.handle(req.Fd)
		if !ok {
			return &api.StatResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE, nil
		}
		stat := h.Stat()
		resp := &api.StatResponse{
			Status: api.Status_OK,
			Inode:  stat.Inode,
			Size:   stat.Size,
			IsDir:  stat.IsDir,
		}
		if f, ok := h.(fs.File); ok {
			resp.Pos = f.Tell()
		}
		return resp, api.Status_OK, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.StatResponse), nil
}

// ReadDir implements the ReadDir RPC method. The descriptor must name a
// directory handle; anything else is ERR_NOTDIR.
func (s *Server) ReadDir(ctx context.Context, req *api.HandleRequest) (*api.ReadDirResponse, error) {
	result, err := s.processRequest(ctx, "ReadDir", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		h, ok := sess.handle(req.Fd)
		if !ok {
			return &api.ReadDirResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE, nil
		}
		dir, ok := h.(fs.Dir)
		if !ok {
			return &api.ReadDirResponse{Status: api.Status_ERR_NOTDIR}, api.Status_ERR_NOTDIR, nil
		}

		dir.Rewind()
		var entries []*api.DirEntry
		for {
			ent, ok := dir.ReadDir()
			if !ok {
				break
			}
			entries = append(entries, &api.DirEntry{Name: ent.Name, Inode: ent.Inode})
		}
		return &api.ReadDirResponse{Status: api.Status_OK, Entries: entries, Eof: true}, api.Status_OK, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.ReadDirResponse), nil
}

// SetDenyWrite implements the SetDenyWrite RPC method.
func (s *Server) SetDenyWrite(ctx context.Context, req *api.DenyWriteRequest) (*api.StatusResponse, error) {
	result, err := s.processRequest(ctx, "SetDenyWrite", func() (interface{}, api.Status, error) {
		sess, err := s.getSession(req.Session)
		if err != nil {
			return nil, api.Status_ERR_IO, err
		}
		h, ok := sess.handle(req.Fd)
		if !ok {
			return &api.StatusResponse{Status: api.Status_ERR_BADHANDLE}, api.Status_ERR_BADHANDLE, nil
		}
		f, ok := h.(fs.File)
		if !ok {
			return &api.StatusResponse{Status: api.Status_ERR_ISDIR}, api.Status_ERR_ISDIR, nil
		}
		if req.Deny {
			f.DenyWrite()
		} else {
			f.AllowWrite()
		}
		return &api.StatusResponse{Status: api.Status_OK}, api.Status_OK, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.StatusResponse), nil
}

// Flush implements the Flush RPC method.
func (s *Server) Flush(ctx context.Context, req *api.FlushRequest) (*api.StatusResponse, error) {
	result, err := s.processRequest(ctx, "Flush", func() (interface{}, api.Status, error) {
		st := sfs.MapErrorToStatus(s.fileSystem.Flush())
		return &api.StatusResponse{Status: st}, st, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*api.StatusResponse), nil
}

// CloseSessions releases every session's descriptors and tasks. Called
// on shutdown, before the filesystem is closed.
func (s *Server) CloseSessions() {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		for fd, h := range sess.fds {
			h.Close()
			delete(sess.fds, fd)
		}
		sess.task.Close()
		sess.mu.Unlock()
		delete(s.sessions, id)
	}
}
