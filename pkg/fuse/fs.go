// Package fuse mounts a remote sectorfs through bazil.org/fuse, driving
// every kernel request over the gRPC client.
package fuse

import (
	"bazil.org/fuse/fs"

	"github.com/example/sectorfs/pkg/client"
)

// SFS implements the FUSE filesystem interface over a sectorfs client.
type SFS struct {
	client *client.Client
}

// NewSFS creates a FUSE filesystem bound to a connected client.
func NewSFS(c *client.Client) *SFS {
	return &SFS{client: c}
}

// Root returns the root directory of the filesystem.
func (s *SFS) Root() (fs.Node, error) {
	return &Dir{fsys: s, path: "/"}, nil
}
