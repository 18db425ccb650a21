// sfs-fuse mounts a remote sectorfs through FUSE.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/example/sectorfs/pkg/fuse"
)

func main() {
	serverAddr := flag.String("server", "localhost:5649", "sectorfs server address")
	mountPoint := flag.String("mount", "", "Directory to mount at (required)")
	readOnly := flag.Bool("ro", false, "Mount read-only")
	debug := flag.Bool("debug", false, "Print FUSE debug messages")
	flag.Parse()

	if *mountPoint == "" {
		fmt.Fprintln(os.Stderr, "usage: sfs-fuse -mount <dir> [-server addr] [-ro] [-debug]")
		os.Exit(2)
	}

	err := fuse.Mount(fuse.MountOptions{
		MountPoint: *mountPoint,
		ServerAddr: *serverAddr,
		ReadOnly:   *readOnly,
		Debug:      *debug,
	})
	if err != nil {
		log.Fatalf("Mount failed: %v", err)
	}
}
