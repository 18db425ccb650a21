package blockfs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/example/sectorfs/pkg/device"
	"github.com/example/sectorfs/pkg/fs"
)

// newTestFS formats an in-memory device and mounts a filesystem on it.
func newTestFS(t *testing.T, sectors uint32) (*FileSys, *device.MemDevice) {
	t.Helper()
	dev := device.NewMem(sectors)
	fsys, err := Mount(dev, true)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return fsys, dev
}

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 256)
	}
	return p
}

func TestLocateByte(t *testing.T) {
	cases := []struct {
		pos    int64
		level  directness
		index1 int
		index2 int
	}{
		{0, normalDirect, 0, 0},
		{SectorSize - 1, normalDirect, 0, 0},
		{SectorSize, normalDirect, 1, 0},
		{(DirectBlocks - 1) * SectorSize, normalDirect, DirectBlocks - 1, 0},
		{DirectBlocks * SectorSize, indirect, 0, 0},
		{(DirectBlocks + IndirectBlocks - 1) * SectorSize, indirect, IndirectBlocks - 1, 0},
		{(DirectBlocks + IndirectBlocks) * SectorSize, doubleIndirect, 0, 0},
		{(DirectBlocks + IndirectBlocks + 1) * SectorSize, doubleIndirect, 0, 1},
		{(DirectBlocks + IndirectBlocks + IndirectBlocks) * SectorSize, doubleIndirect, 1, 0},
		{MaxFileSize - 1, doubleIndirect, IndirectBlocks - 1, IndirectBlocks - 1},
		{MaxFileSize, outOfLimit, 0, 0},
	}
	for _, tc := range cases {
		loc := locateByte(tc.pos)
		if loc.directness != tc.level {
			t.Errorf("pos %d: directness %d, want %d", tc.pos, loc.directness, tc.level)
			continue
		}
		if loc.directness == outOfLimit {
			continue
		}
		if loc.index1 != tc.index1 || (loc.directness == doubleIndirect && loc.index2 != tc.index2) {
			t.Errorf("pos %d: indexes (%d,%d), want (%d,%d)", tc.pos, loc.index1, loc.index2, tc.index1, tc.index2)
		}
	}
}

func TestInodeRoundTrip(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)

	sizes := []int{1, SectorSize - 1, SectorSize, SectorSize + 1, 600, 5 * SectorSize}
	for _, size := range sizes {
		sector, err := fsys.sectorAllocate(1)
		if err != nil {
			t.Fatal(err)
		}
		if err := fsys.inodeCreate(sector, 0, false); err != nil {
			t.Fatal(err)
		}
		ino, err := fsys.inodeOpen(sector)
		if err != nil {
			t.Fatal(err)
		}

		data := pattern(size)
		n, err := ino.writeAt(data, 0)
		if err != nil || n != size {
			t.Fatalf("size %d: writeAt = (%d, %v)", size, n, err)
		}

		got := make([]byte, size)
		n, err = ino.readAt(got, 0)
		if err != nil || n != size {
			t.Fatalf("size %d: readAt = (%d, %v)", size, n, err)
		}
		if !bytes.Equal(data, got) {
			t.Errorf("size %d: data mismatch", size)
		}

		length, err := ino.length()
		if err != nil || length != int64(size) {
			t.Errorf("size %d: length = (%d, %v)", size, length, err)
		}
		fsys.inodeClose(ino)
	}
}

func TestInodeSparseZeroFill(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)

	sector, err := fsys.sectorAllocate(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := fsys.inodeCreate(sector, 0, false); err != nil {
		t.Fatal(err)
	}
	ino, err := fsys.inodeOpen(sector)
	if err != nil {
		t.Fatal(err)
	}
	defer fsys.inodeClose(ino)

	const k = 3*SectorSize + 17
	if n, err := ino.writeAt([]byte{0xAB}, k); err != nil || n != 1 {
		t.Fatalf("writeAt past EOF = (%d, %v)", n, err)
	}

	got := make([]byte, k+1)
	if n, err := ino.readAt(got, 0); err != nil || n != k+1 {
		t.Fatalf("readAt = (%d, %v)", n, err)
	}
	for i := 0; i < k; i++ {
		if got[i] != 0 {
			t.Fatalf("byte %d: got %#x, want zero fill", i, got[i])
		}
	}
	if got[k] != 0xAB {
		t.Errorf("byte %d: got %#x, want 0xAB", k, got[k])
	}
}

func TestInodeGrowthMonotonic(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)

	sector, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(sector, 0, false); err != nil {
		t.Fatal(err)
	}
	ino, _ := fsys.inodeOpen(sector)
	defer fsys.inodeClose(ino)

	writes := []struct {
		off  int64
		size int
	}{
		{0, 100},
		{50, 10},  // inside: no growth
		{90, 100}, // straddles the end
		{0, 5},    // inside again
		{1000, 1},
	}
	var prev int64
	for _, w := range writes {
		n, err := ino.writeAt(pattern(w.size), w.off)
		if err != nil || n != w.size {
			t.Fatalf("writeAt(%d, %d) = (%d, %v)", w.off, w.size, n, err)
		}
		length, _ := ino.length()
		if length < prev {
			t.Errorf("length shrank: %d -> %d", prev, length)
		}
		if length < w.off+int64(n) {
			t.Errorf("length %d below write end %d", length, w.off+int64(n))
		}
		prev = length
	}
	if prev != 1001 {
		t.Errorf("final length = %d, want 1001", prev)
	}
}

// TestInodeDoubleIndirect writes one byte just past the first
// double-indirect boundary and checks the zero gap below it.
func TestInodeDoubleIndirect(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)

	sector, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(sector, 0, false); err != nil {
		t.Fatal(err)
	}
	ino, _ := fsys.inodeOpen(sector)
	defer fsys.inodeClose(ino)

	const off = (DirectBlocks + IndirectBlocks + 1) * SectorSize
	if n, err := ino.writeAt([]byte{0xAB}, off); err != nil || n != 1 {
		t.Fatalf("writeAt = (%d, %v)", n, err)
	}
	if length, _ := ino.length(); length != off+1 {
		t.Fatalf("length = %d, want %d", length, off+1)
	}

	// spot-check zeros across all three mapping levels
	buf := make([]byte, 1)
	for _, pos := range []int64{0, DirectBlocks*SectorSize - 1, DirectBlocks * SectorSize,
		(DirectBlocks + IndirectBlocks) * SectorSize, off - 1} {
		if n, err := ino.readAt(buf, pos); err != nil || n != 1 {
			t.Fatalf("readAt(%d) = (%d, %v)", pos, n, err)
		}
		if buf[0] != 0 {
			t.Errorf("offset %d: got %#x, want 0", pos, buf[0])
		}
	}
	if n, err := ino.readAt(buf, off); err != nil || n != 1 || buf[0] != 0xAB {
		t.Fatalf("readAt(end) = (%d, %v, %#x)", n, err, buf[0])
	}
}

func TestInodeOpenTableCanonical(t *testing.T) {
	fsys, _ := newTestFS(t, 1024)

	sector, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(sector, 0, false); err != nil {
		t.Fatal(err)
	}

	a, err := fsys.inodeOpen(sector)
	if err != nil {
		t.Fatal(err)
	}
	b, err := fsys.inodeOpen(sector)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("two opens of one sector returned distinct inodes")
	}
	if a.openCnt != 2 {
		t.Fatalf("openCnt = %d, want 2", a.openCnt)
	}
	fsys.inodeClose(b)
	fsys.inodeClose(a)

	fsys.itabMu.Lock()
	_, still := fsys.itab[sector]
	fsys.itabMu.Unlock()
	if still {
		t.Error("inode left in open table after last close")
	}
}

// TestInodeRemovedSectorRelease checks that a removed inode's sectors are
// released exactly when the last opener closes.
func TestInodeRemovedSectorRelease(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)
	_, freeBefore := fsys.Stats()

	sector, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(sector, 3*SectorSize, false); err != nil {
		t.Fatal(err)
	}

	a, _ := fsys.inodeOpen(sector)
	b := fsys.inodeReopen(a)
	fsys.inodeRemove(a)

	// still readable through the open handle
	buf := make([]byte, 10)
	if n, err := a.readAt(buf, 0); err != nil || n != 10 {
		t.Fatalf("readAt after remove = (%d, %v)", n, err)
	}

	fsys.inodeClose(b)
	if _, free := fsys.Stats(); free == freeBefore {
		t.Error("sectors released before last close")
	}

	fsys.inodeClose(a)
	if _, free := fsys.Stats(); free != freeBefore {
		t.Errorf("free sectors after last close = %d, want %d", free, freeBefore)
	}
}

func TestInodeDenyWrite(t *testing.T) {
	fsys, _ := newTestFS(t, 1024)

	sector, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(sector, 0, false); err != nil {
		t.Fatal(err)
	}
	ino, _ := fsys.inodeOpen(sector)
	defer fsys.inodeClose(ino)

	ino.denyWrite()
	n, err := ino.writeAt(pattern(10), 0)
	if n != 0 || !errors.Is(err, fs.ErrWriteDenied) {
		t.Fatalf("denied writeAt = (%d, %v)", n, err)
	}
	if length, _ := ino.length(); length != 0 {
		t.Errorf("length changed by a denied write: %d", length)
	}

	ino.allowWrite()
	if n, err := ino.writeAt(pattern(10), 0); n != 10 || err != nil {
		t.Fatalf("writeAt after allow = (%d, %v)", n, err)
	}
}

// TestInodeNoSpaceRollback exhausts a tiny device and checks that a
// failed growth releases everything it allocated.
func TestInodeNoSpaceRollback(t *testing.T) {
	fsys, _ := newTestFS(t, 64)

	sector, err := fsys.sectorAllocate(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := fsys.inodeCreate(sector, 0, false); err != nil {
		t.Fatal(err)
	}
	ino, _ := fsys.inodeOpen(sector)
	defer fsys.inodeClose(ino)

	_, freeBefore := fsys.Stats()

	// far larger than the device
	n, err := ino.writeAt(pattern(10), 200*SectorSize)
	if n != 0 || !errors.Is(err, fs.ErrNoSpace) {
		t.Fatalf("writeAt on full device = (%d, %v), want (0, no space)", n, err)
	}
	if length, _ := ino.length(); length != 0 {
		t.Errorf("length committed despite failed growth: %d", length)
	}
	if _, free := fsys.Stats(); free != freeBefore {
		t.Errorf("leaked sectors: free %d, want %d", free, freeBefore)
	}

	// the file still works afterwards
	if n, err := ino.writeAt(pattern(100), 0); n != 100 || err != nil {
		t.Fatalf("writeAt after failure = (%d, %v)", n, err)
	}
}

func TestInodeOutOfRange(t *testing.T) {
	fsys, _ := newTestFS(t, 1024)

	sector, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(sector, 0, false); err != nil {
		t.Fatal(err)
	}
	ino, _ := fsys.inodeOpen(sector)
	defer fsys.inodeClose(ino)

	if n, err := ino.writeAt([]byte{1}, MaxFileSize); n != 0 || !errors.Is(err, fs.ErrOutOfRange) {
		t.Errorf("writeAt beyond capacity = (%d, %v)", n, err)
	}
	if n, err := ino.writeAt([]byte{1}, -1); n != 0 || !errors.Is(err, fs.ErrOutOfRange) {
		t.Errorf("writeAt negative offset = (%d, %v)", n, err)
	}
}
