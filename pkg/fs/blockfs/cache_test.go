package blockfs

import (
	"bytes"
	"sync"
	"testing"

	"github.com/example/sectorfs/pkg/device"
)

func TestCacheReadWrite(t *testing.T) {
	dev := device.NewMem(128)
	c := newBufferCache(dev)

	src := bytes.Repeat([]byte{0x5A}, SectorSize)
	if err := c.write(7, src, 0, SectorSize, 0); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst := make([]byte, SectorSize)
	if err := c.read(7, dst, 0, SectorSize, 0); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(src, dst) {
		t.Error("read back bytes differ from written bytes")
	}

	// write-back: nothing reaches the device until a flush
	if dev.Writes != 0 {
		t.Errorf("device writes before flush: got %d, want 0", dev.Writes)
	}
	if err := c.flushAll(); err != nil {
		t.Fatalf("flushAll: %v", err)
	}
	if dev.Writes != 1 {
		t.Errorf("device writes after flush: got %d, want 1", dev.Writes)
	}

	// flushing twice writes nothing new
	if err := c.flushAll(); err != nil {
		t.Fatalf("flushAll: %v", err)
	}
	if dev.Writes != 1 {
		t.Errorf("device writes after second flush: got %d, want 1", dev.Writes)
	}
}

func TestCachePartialWritePreservesSector(t *testing.T) {
	dev := device.NewMem(16)

	// seed the device behind the cache's back
	seed := bytes.Repeat([]byte{0xEE}, SectorSize)
	if err := dev.WriteSector(3, seed); err != nil {
		t.Fatal(err)
	}

	c := newBufferCache(dev)

	// a partial write must fault the old contents in first
	patch := []byte{1, 2, 3, 4}
	if err := c.write(3, patch, 0, len(patch), 100); err != nil {
		t.Fatalf("write: %v", err)
	}
	if dev.Reads != 1 {
		t.Errorf("partial write should read the sector: got %d reads", dev.Reads)
	}

	dst := make([]byte, SectorSize)
	if err := c.read(3, dst, 0, SectorSize, 0); err != nil {
		t.Fatalf("read: %v", err)
	}
	want := append([]byte{}, seed...)
	copy(want[100:], patch)
	if !bytes.Equal(want, dst) {
		t.Error("bytes outside the patched range were disturbed")
	}
}

func TestCacheFullSectorWriteSkipsRead(t *testing.T) {
	dev := device.NewMem(16)
	c := newBufferCache(dev)

	full := bytes.Repeat([]byte{9}, SectorSize)
	if err := c.write(5, full, 0, SectorSize, 0); err != nil {
		t.Fatalf("write: %v", err)
	}
	if dev.Reads != 0 {
		t.Errorf("full-sector write should not read the device: got %d reads", dev.Reads)
	}
}

// TestCacheClockEviction fills every slot with dirty sectors and touches
// one more; exactly one prior entry must be written back and the new
// sector must be resident.
func TestCacheClockEviction(t *testing.T) {
	dev := device.NewMem(256)
	c := newBufferCache(dev)

	one := []byte{0xAA}
	for s := uint32(0); s < cacheSlots; s++ {
		if err := c.write(s, one, 0, 1, 0); err != nil {
			t.Fatalf("write sector %d: %v", s, err)
		}
	}

	if err := c.write(cacheSlots, one, 0, 1, 0); err != nil {
		t.Fatalf("write sector %d: %v", cacheSlots, err)
	}

	if dev.Writes != 1 {
		t.Errorf("evictions written back: got %d, want exactly 1", dev.Writes)
	}

	c.mu.Lock()
	resident := c.lookup(cacheSlots) != nil
	victims := 0
	for s := uint32(0); s < cacheSlots; s++ {
		if c.lookup(s) == nil {
			victims++
		}
	}
	c.mu.Unlock()

	if !resident {
		t.Error("newly accessed sector is not resident")
	}
	if victims != 1 {
		t.Errorf("evicted entries: got %d, want exactly 1", victims)
	}
}

// TestCacheCoherence interleaves two writers on the same sector through
// distinct call paths and checks the merged bytes, then verifies that no
// stale device read overwrites the pending dirty data.
func TestCacheCoherence(t *testing.T) {
	dev := device.NewMem(16)
	c := newBufferCache(dev)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(half int) {
			defer wg.Done()
			chunk := bytes.Repeat([]byte{byte(half + 1)}, SectorSize/2)
			for iter := 0; iter < 100; iter++ {
				if err := c.write(2, chunk, 0, len(chunk), half*SectorSize/2); err != nil {
					t.Errorf("write: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	dst := make([]byte, SectorSize)
	if err := c.read(2, dst, 0, SectorSize, 0); err != nil {
		t.Fatal(err)
	}
	for i, b := range dst {
		want := byte(1)
		if i >= SectorSize/2 {
			want = 2
		}
		if b != want {
			t.Fatalf("byte %d: got %d, want %d", i, b, want)
		}
	}
}

func TestCacheConcurrentDistinctSectors(t *testing.T) {
	dev := device.NewMem(512)
	c := newBufferCache(dev)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			buf := make([]byte, SectorSize)
			for s := uint32(g * 32); s < uint32(g*32+32); s++ {
				fill := bytes.Repeat([]byte{byte(s)}, SectorSize)
				if err := c.write(s, fill, 0, SectorSize, 0); err != nil {
					t.Errorf("write: %v", err)
					return
				}
				if err := c.read(s, buf, 0, SectorSize, 0); err != nil {
					t.Errorf("read: %v", err)
					return
				}
				if buf[0] != byte(s) || buf[SectorSize-1] != byte(s) {
					t.Errorf("sector %d: bytes corrupted", s)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if err := c.flushAll(); err != nil {
		t.Fatal(err)
	}

	// everything must be durable on the device now
	buf := make([]byte, SectorSize)
	for s := uint32(0); s < 256; s++ {
		if err := dev.ReadSector(s, buf); err != nil {
			t.Fatal(err)
		}
		if buf[0] != byte(s) {
			t.Fatalf("sector %d not written back", s)
		}
	}
}
