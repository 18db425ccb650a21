package blockfs

import (
	"errors"
	"testing"

	"github.com/example/sectorfs/pkg/fs"
)

func TestFreeMapReservedSectors(t *testing.T) {
	fsys, _ := newTestFS(t, 1024)

	fsys.fmapMu.Lock()
	defer fsys.fmapMu.Unlock()
	if !fsys.fmap.isSet(FreeMapSector) {
		t.Error("free-map sector not marked used")
	}
	if !fsys.fmap.isSet(RootDirSector) {
		t.Error("root directory sector not marked used")
	}
}

func TestFreeMapAllocateRelease(t *testing.T) {
	fsys, _ := newTestFS(t, 1024)
	_, freeBefore := fsys.Stats()

	first, err := fsys.sectorAllocate(4)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	fsys.fmapMu.Lock()
	for i := uint32(0); i < 4; i++ {
		if !fsys.fmap.isSet(first + i) {
			t.Errorf("sector %d not marked after allocate", first+i)
		}
	}
	fsys.fmapMu.Unlock()

	if _, free := fsys.Stats(); free != freeBefore-4 {
		t.Errorf("free = %d, want %d", free, freeBefore-4)
	}

	fsys.sectorRelease(first, 4)
	if _, free := fsys.Stats(); free != freeBefore {
		t.Errorf("free after release = %d, want %d", free, freeBefore)
	}
}

func TestFreeMapContiguous(t *testing.T) {
	fsys, _ := newTestFS(t, 1024)

	a, err := fsys.sectorAllocate(8)
	if err != nil {
		t.Fatal(err)
	}
	b, err := fsys.sectorAllocate(8)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two allocations returned the same run")
	}

	// punch a 2-sector hole; an 8-sector request must not land in it
	fsys.sectorRelease(a+2, 2)
	c, err := fsys.sectorAllocate(8)
	if err != nil {
		t.Fatal(err)
	}
	if c == a+2 {
		t.Error("8-sector run placed in a 2-sector hole")
	}

	// a 2-sector request fits the hole exactly
	d, err := fsys.sectorAllocate(2)
	if err != nil {
		t.Fatal(err)
	}
	if d != a+2 {
		t.Errorf("2-sector run = %d, want hole at %d", d, a+2)
	}
}

func TestFreeMapExhaustion(t *testing.T) {
	fsys, _ := newTestFS(t, 64)

	if _, err := fsys.sectorAllocate(1000); !errors.Is(err, fs.ErrNoSpace) {
		t.Errorf("oversized allocate = %v, want no space", err)
	}

	// drain the device one sector at a time, then fail
	for {
		if _, err := fsys.sectorAllocate(1); err != nil {
			if !errors.Is(err, fs.ErrNoSpace) {
				t.Fatalf("allocate = %v, want no space", err)
			}
			break
		}
	}
	if _, free := fsys.Stats(); free != 0 {
		t.Errorf("free after drain = %d, want 0", free)
	}
}
