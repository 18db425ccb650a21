// server exports a sector filesystem image over gRPC.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/netutil"

	"github.com/example/sectorfs/pkg/device"
	"github.com/example/sectorfs/pkg/fs/blockfs"
	"github.com/example/sectorfs/pkg/server"
)

func main() {
	listenAddr := flag.String("listen", ":5649", "Network address to listen on")
	imagePath := flag.String("image", "disk.img", "Disk image to export")
	format := flag.Bool("format", false, "Format the image before serving")
	sectors := flag.Uint("sectors", 8192, "Device size in sectors when creating a fresh image")
	maxConcurrent := flag.Int("max-concurrent", 100, "Maximum concurrent requests")
	maxConns := flag.Int("max-conns", 64, "Maximum concurrent client connections")
	maxReadSize := flag.Int("max-read", 1024*1024, "Maximum read size in bytes")
	maxWriteSize := flag.Int("max-write", 1024*1024, "Maximum write size in bytes")
	flag.Parse()

	var dev *device.FileDevice
	var err error
	if _, statErr := os.Stat(*imagePath); os.IsNotExist(statErr) {
		dev, err = device.Create(*imagePath, uint32(*sectors))
		*format = true
	} else {
		dev, err = device.Open(*imagePath)
	}
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}

	fsys, err := blockfs.Mount(dev, *format)
	if err != nil {
		log.Fatalf("Failed to mount filesystem: %v", err)
	}

	config := &server.Config{
		ListenAddress: *listenAddr,
		MaxConcurrent: *maxConcurrent,
		MaxReadSize:   *maxReadSize,
		MaxWriteSize:  *maxWriteSize,
		MaxOpenFiles:  128,
	}
	srv, err := server.New(config, fsys)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	lis, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	lis = netutil.LimitListener(lis, *maxConns)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Serve(lis)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	// flush everything before the process goes away
	srv.CloseSessions()
	if err := fsys.Close(); err != nil {
		log.Fatalf("Failed to close filesystem: %v", err)
	}
	log.Println("sectorfs server stopped")
}
