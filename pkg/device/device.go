// Package device provides the fixed-sector block device abstraction the
// filesystem is built on. All I/O is exactly one sector at a time.
package device

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// SectorSize is the fixed unit of device I/O in bytes.
const SectorSize = 512

var (
	// ErrOutOfRange is returned when a sector number is outside the device.
	ErrOutOfRange = errors.New("sector number out of range")
	// ErrShortSector is returned when a buffer is not exactly one sector.
	ErrShortSector = errors.New("buffer is not exactly one sector")
)

// BlockDevice is the contract consumed by the filesystem: a count of
// sectors and whole-sector reads and writes.
type BlockDevice interface {
	// SectorCount returns the number of addressable sectors.
	SectorCount() uint32

	// ReadSector reads sector n into dst. dst must be SectorSize bytes.
	ReadSector(n uint32, dst []byte) error

	// WriteSector writes src to sector n. src must be SectorSize bytes.
	WriteSector(n uint32, src []byte) error

	// Close releases the underlying storage.
	Close() error
}

func checkSector(n, count uint32, buf []byte) error {
	if n >= count {
		return fmt.Errorf("sector %d of %d: %w", n, count, ErrOutOfRange)
	}
	if len(buf) != SectorSize {
		return ErrShortSector
	}
	return nil
}

// FileDevice is a block device backed by an image file on the host
// filesystem.
type FileDevice struct {
	f       *os.File
	sectors uint32
}

// Open opens an existing image file as a block device. The file size must
// be a whole number of sectors.
func Open(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size()%SectorSize != 0 {
		f.Close()
		return nil, fmt.Errorf("image %s: size %d is not sector aligned", path, fi.Size())
	}
	return &FileDevice{f: f, sectors: uint32(fi.Size() / SectorSize)}, nil
}

// Create creates a zero-filled image file holding the given number of
// sectors, truncating any existing file at path.
func Create(path string, sectors uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(sectors) * SectorSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &FileDevice{f: f, sectors: sectors}, nil
}

func (d *FileDevice) SectorCount() uint32 { return d.sectors }

func (d *FileDevice) ReadSector(n uint32, dst []byte) error {
	if err := checkSector(n, d.sectors, dst); err != nil {
		return err
	}
	_, err := d.f.ReadAt(dst, int64(n)*SectorSize)
	return err
}

func (d *FileDevice) WriteSector(n uint32, src []byte) error {
	if err := checkSector(n, d.sectors, src); err != nil {
		return err
	}
	_, err := d.f.WriteAt(src, int64(n)*SectorSize)
	return err
}

// Sync flushes the image file to stable storage.
func (d *FileDevice) Sync() error { return d.f.Sync() }

func (d *FileDevice) Close() error { return d.f.Close() }

// MemDevice is an in-memory block device used in tests.
type MemDevice struct {
	mu      sync.Mutex
	data    []byte
	sectors uint32

	// Reads and Writes count sector operations, for cache tests.
	Reads  int
	Writes int
}

// NewMem returns a zero-filled in-memory device with the given sector count.
func NewMem(sectors uint32) *MemDevice {
	return &MemDevice{
		data:    make([]byte, int(sectors)*SectorSize),
		sectors: sectors,
	}
}

func (d *MemDevice) SectorCount() uint32 { return d.sectors }

func (d *MemDevice) ReadSector(n uint32, dst []byte) error {
	if err := checkSector(n, d.sectors, dst); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Reads++
	copy(dst, d.data[int(n)*SectorSize:int(n+1)*SectorSize])
	return nil
}

func (d *MemDevice) WriteSector(n uint32, src []byte) error {
	if err := checkSector(n, d.sectors, src); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Writes++
	copy(d.data[int(n)*SectorSize:int(n+1)*SectorSize], src)
	return nil
}

func (d *MemDevice) Close() error { return nil }
