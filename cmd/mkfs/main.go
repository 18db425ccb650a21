// mkfs creates a disk image and formats a sector filesystem onto it.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/example/sectorfs/pkg/device"
	"github.com/example/sectorfs/pkg/fs/blockfs"
)

func main() {
	imagePath := flag.String("image", "disk.img", "Path of the image file to create")
	sectors := flag.Uint("sectors", 8192, "Device size in 512-byte sectors")
	force := flag.Bool("force", false, "Overwrite an existing image")
	flag.Parse()

	if !*force {
		if _, err := os.Stat(*imagePath); err == nil {
			log.Fatalf("%s already exists (use -force to overwrite)", *imagePath)
		}
	}
	if *sectors < 16 {
		log.Fatalf("device too small: %d sectors", *sectors)
	}

	dev, err := device.Create(*imagePath, uint32(*sectors))
	if err != nil {
		log.Fatalf("Failed to create image: %v", err)
	}

	fsys, err := blockfs.Mount(dev, true)
	if err != nil {
		os.Remove(*imagePath)
		log.Fatalf("Failed to format: %v", err)
	}

	total, free := fsys.Stats()
	if err := fsys.Close(); err != nil {
		log.Fatalf("Failed to finalize image: %v", err)
	}

	log.Printf("Formatted %s: %d sectors, %d free", *imagePath, total, free)
}
