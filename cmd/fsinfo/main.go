// fsinfo inspects a sector filesystem image offline: tree listing with
// sizes, optional blake3 content digests, and an optional PNG rendering
// of the free-map.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"path"

	"github.com/fogleman/gg"
	"lukechampine.com/blake3"

	"github.com/example/sectorfs/pkg/device"
	"github.com/example/sectorfs/pkg/fs"
	"github.com/example/sectorfs/pkg/fs/blockfs"
)

func main() {
	imagePath := flag.String("image", "disk.img", "Disk image to inspect")
	digest := flag.Bool("digest", false, "Print a blake3 digest per file")
	mapOut := flag.String("map", "", "Write a PNG of the free-map to this path")
	flag.Parse()

	dev, err := device.Open(*imagePath)
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}
	fsys, err := blockfs.Mount(dev, false)
	if err != nil {
		log.Fatalf("Failed to mount %s: %v", *imagePath, err)
	}
	defer fsys.Close()

	total, free := fsys.Stats()
	fmt.Printf("%s: %d sectors (%d KiB), %d free\n",
		*imagePath, total, total*blockfs.SectorSize/1024, free)

	task, err := fsys.NewTask()
	if err != nil {
		log.Fatalf("Failed to create task: %v", err)
	}
	defer task.Close()

	if err := walk(fsys, task, "/", *digest); err != nil {
		log.Fatalf("Walk failed: %v", err)
	}

	if *mapOut != "" {
		if err := renderMap(fsys, *mapOut); err != nil {
			log.Fatalf("Failed to render free-map: %v", err)
		}
		fmt.Printf("free-map written to %s\n", *mapOut)
	}
}

// walk prints the tree rooted at dir, one line per entry.
func walk(fsys *blockfs.FileSys, task fs.Task, dir string, digest bool) error {
	h, err := fsys.Open(task, dir)
	if err != nil {
		return err
	}
	d, ok := h.(fs.Dir)
	if !ok {
		h.Close()
		return fs.NewError("walk", dir, fs.ErrNotDir)
	}
	defer d.Close()

	var subdirs []string
	for {
		ent, ok := d.ReadDir()
		if !ok {
			break
		}
		if ent.Name == "." || ent.Name == ".." {
			continue
		}
		full := path.Join(dir, ent.Name)
		child, err := fsys.Open(task, full)
		if err != nil {
			return err
		}
		stat := child.Stat()
		if stat.IsDir {
			fmt.Printf("%10s  %s/\n", "dir", full)
			subdirs = append(subdirs, full)
		} else if digest {
			sum, err := fileDigest(child.(fs.File))
			if err != nil {
				child.Close()
				return err
			}
			fmt.Printf("%10d  %s  blake3:%x\n", stat.Size, full, sum[:8])
		} else {
			fmt.Printf("%10d  %s\n", stat.Size, full)
		}
		child.Close()
	}

	for _, sub := range subdirs {
		if err := walk(fsys, task, sub, digest); err != nil {
			return err
		}
	}
	return nil
}

// fileDigest streams a file through blake3.
func fileDigest(f fs.File) ([]byte, error) {
	h := blake3.New(32, nil)
	buf := make([]byte, 64*1024)
	var off int64
	for {
		n, err := f.ReadAt(buf, off)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		h.Write(buf[:n])
		off += int64(n)
	}
	return h.Sum(nil), nil
}

// renderMap draws one cell per sector, used cells filled, as a PNG grid.
func renderMap(fsys *blockfs.FileSys, out string) error {
	used := fsys.SectorUsage()

	cols := int(math.Ceil(math.Sqrt(float64(len(used)))))
	rows := (len(used) + cols - 1) / cols
	const cell = 4

	dc := gg.NewContext(cols*cell, rows*cell)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for s, inUse := range used {
		if !inUse {
			continue
		}
		x := float64((s % cols) * cell)
		y := float64((s / cols) * cell)
		dc.SetRGB(0.15, 0.35, 0.75)
		dc.DrawRectangle(x, y, cell-1, cell-1)
		dc.Fill()
	}
	return dc.SavePNG(out)
}
