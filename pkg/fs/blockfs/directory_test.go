package blockfs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/sectorfs/pkg/fs"
)

// mkdirAt creates a child directory inside dir and returns its sector.
func mkdirAt(t *testing.T, fsys *FileSys, dir *Dir, name string) uint32 {
	t.Helper()
	sector, err := fsys.sectorAllocate(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := fsys.dirCreate(sector, rootDirEntries); err != nil {
		t.Fatal(err)
	}
	if err := dir.add(name, sector); err != nil {
		t.Fatal(err)
	}
	ino, err := fsys.inodeOpen(sector)
	if err != nil {
		t.Fatal(err)
	}
	child := fsys.dirOpen(ino)
	defer child.Close()
	if err := child.add(".", sector); err != nil {
		t.Fatal(err)
	}
	if err := child.add("..", dir.Inumber()); err != nil {
		t.Fatal(err)
	}
	return sector
}

func TestDirAddLookupRemove(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)
	root, err := fsys.dirOpenRoot()
	if err != nil {
		t.Fatal(err)
	}
	defer root.Close()

	sector, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(sector, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := root.add("alpha", sector); err != nil {
		t.Fatalf("add: %v", err)
	}

	ino, err := root.lookup("alpha")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ino.sector != sector {
		t.Errorf("lookup sector = %d, want %d", ino.sector, sector)
	}
	fsys.inodeClose(ino)

	if _, err := root.lookup("beta"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("lookup missing = %v, want not exist", err)
	}

	if err := root.remove("alpha"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := root.lookup("alpha"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("lookup removed = %v, want not exist", err)
	}
}

// TestDirNameUniqueness: a second add of a live name fails; remove then
// add again succeeds.
func TestDirNameUniqueness(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)
	root, _ := fsys.dirOpenRoot()
	defer root.Close()

	s1, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(s1, 0, false); err != nil {
		t.Fatal(err)
	}
	s2, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(s2, 0, false); err != nil {
		t.Fatal(err)
	}

	if err := root.add("name", s1); err != nil {
		t.Fatal(err)
	}
	if err := root.add("name", s2); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("duplicate add = %v, want exists", err)
	}
	if err := root.remove("name"); err != nil {
		t.Fatal(err)
	}
	if err := root.add("name", s2); err != nil {
		t.Fatalf("add after remove = %v", err)
	}
}

func TestDirNameTooLong(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)
	root, _ := fsys.dirOpenRoot()
	defer root.Close()

	long := "abcdefghijklmnop" // NameMax is 14
	if err := root.add(long, 99); !errors.Is(err, fs.ErrNameTooLong) {
		t.Errorf("long add = %v, want name too long", err)
	}
	if err := root.add("", 99); !errors.Is(err, fs.ErrNameTooLong) {
		t.Errorf("empty add = %v, want name too long", err)
	}

	exact := "abcdefghijklmn" // exactly NameMax
	sector, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(sector, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := root.add(exact, sector); err != nil {
		t.Errorf("NameMax add = %v", err)
	}
	ino, err := root.lookup(exact)
	if err != nil {
		t.Fatalf("NameMax lookup = %v", err)
	}
	fsys.inodeClose(ino)
}

func TestDirDotEntries(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)
	root, _ := fsys.dirOpenRoot()
	defer root.Close()

	// root's "." and ".." both point at root itself
	for _, name := range []string{".", ".."} {
		ino, err := root.lookup(name)
		if err != nil {
			t.Fatalf("root lookup %q: %v", name, err)
		}
		if ino.sector != RootDirSector {
			t.Errorf("root %q sector = %d, want %d", name, ino.sector, RootDirSector)
		}
		fsys.inodeClose(ino)
	}

	sector := mkdirAt(t, fsys, root, "sub")
	ino, err := root.lookup("sub")
	if err != nil {
		t.Fatal(err)
	}
	sub := fsys.dirOpen(ino)
	defer sub.Close()

	self, err := sub.lookup(".")
	if err != nil || self.sector != sector {
		t.Errorf("sub \".\" = (%v, %v), want sector %d", self, err, sector)
	}
	fsys.inodeClose(self)

	parent, err := sub.lookup("..")
	if err != nil || parent.sector != RootDirSector {
		t.Errorf("sub \"..\" = (%v, %v), want root", parent, err)
	}
	fsys.inodeClose(parent)
}

func TestDirReadDir(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)
	root, _ := fsys.dirOpenRoot()
	defer root.Close()

	names := []string{"one", "two", "three"}
	for _, name := range names {
		sector, _ := fsys.sectorAllocate(1)
		if err := fsys.inodeCreate(sector, 0, false); err != nil {
			t.Fatal(err)
		}
		if err := root.add(name, sector); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[string]bool{}
	for {
		ent, ok := root.ReadDir()
		if !ok {
			break
		}
		seen[ent.Name] = true
	}
	// dot entries are yielded too
	want := append([]string{".", ".."}, names...)
	for _, name := range want {
		if !seen[name] {
			t.Errorf("ReadDir missed %q", name)
		}
	}
	if len(seen) != len(want) {
		t.Errorf("ReadDir yielded %d entries, want %d", len(seen), len(want))
	}

	root.Rewind()
	if _, ok := root.ReadDir(); !ok {
		t.Error("ReadDir after Rewind yielded nothing")
	}
}

// TestDirGrowsPastCapacity adds more entries than the initial table holds.
func TestDirGrowsPastCapacity(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)
	root, _ := fsys.dirOpenRoot()
	defer root.Close()

	for i := 0; i < rootDirEntries+8; i++ {
		sector, err := fsys.sectorAllocate(1)
		if err != nil {
			t.Fatal(err)
		}
		if err := fsys.inodeCreate(sector, 0, false); err != nil {
			t.Fatal(err)
		}
		if err := root.add(fmt.Sprintf("f%02d", i), sector); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	for i := 0; i < rootDirEntries+8; i++ {
		ino, err := root.lookup(fmt.Sprintf("f%02d", i))
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		fsys.inodeClose(ino)
	}
}

// TestDirSlotReuse: freed entry slots are reused before the table grows.
func TestDirSlotReuse(t *testing.T) {
	fsys, _ := newTestFS(t, 4096)
	root, _ := fsys.dirOpenRoot()
	defer root.Close()

	s1, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(s1, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := root.add("gone", s1); err != nil {
		t.Fatal(err)
	}
	before, _ := root.ino.length()
	if err := root.remove("gone"); err != nil {
		t.Fatal(err)
	}

	s2, _ := fsys.sectorAllocate(1)
	if err := fsys.inodeCreate(s2, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := root.add("back", s2); err != nil {
		t.Fatal(err)
	}
	after, _ := root.ino.length()
	if after != before {
		t.Errorf("table grew from %d to %d despite a free slot", before, after)
	}
}
