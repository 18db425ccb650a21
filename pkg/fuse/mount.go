package fuse

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/example/sectorfs/pkg/client"
)

// MountOptions contains options for mounting the filesystem.
type MountOptions struct {
	MountPoint string
	ServerAddr string // sectorfs server address
	ReadOnly   bool
	Debug      bool
}

// Mount mounts a remote sectorfs at the mount point and serves it until
// SIGINT or SIGTERM.
func Mount(options MountOptions) error {
	config := client.DefaultConfig()
	config.ServerAddress = options.ServerAddr

	log.Printf("Connecting to sectorfs server at %s", options.ServerAddr)
	c, err := client.New(config)
	if err != nil {
		return fmt.Errorf("failed to connect to sectorfs server: %w", err)
	}

	mountOpts := []fuse.MountOption{
		fuse.FSName("sectorfs"),
		fuse.Subtype("sectorfs"),
	}
	if options.ReadOnly {
		mountOpts = append(mountOpts, fuse.ReadOnly())
	}
	if options.Debug {
		fuse.Debug = func(msg interface{}) {
			fmt.Printf("FUSE: %v\n", msg)
		}
	}

	log.Printf("Mounting FUSE filesystem at %s", options.MountPoint)
	conn, err := fuse.Mount(options.MountPoint, mountOpts...)
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to mount: %w", err)
	}
	defer conn.Close()

	serveErr := make(chan error, 1)
	go func() {
		log.Println("Starting FUSE server")
		serveErr <- fs.Serve(conn, NewSFS(c))
	}()

	log.Println("FUSE filesystem mounted, press Ctrl+C to unmount")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			log.Printf("Error serving filesystem: %v", err)
		}
	case s := <-sig:
		log.Printf("Received %v, unmounting...", s)
		if err := Unmount(options.MountPoint); err != nil {
			log.Printf("Warning: failed to unmount cleanly: %v", err)
		}
		// let the serve loop drain before tearing the client down
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	}

	c.Close()
	log.Println("sectorfs connection closed")
	return nil
}

// Unmount unmounts the filesystem.
func Unmount(mountPoint string) error {
	return fuse.Unmount(mountPoint)
}
