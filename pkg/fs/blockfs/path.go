package blockfs

import (
	"strings"

	"github.com/example/sectorfs/pkg/fs"
)

// parsePath resolves every component of path except the last, returning
// the opened parent directory and the leaf name. An absolute path starts
// at the root; a relative one at the task's current directory. The empty
// path fails; "/" resolves to the root with leaf ".".
func (fsys *FileSys) parsePath(t *Task, path string) (*Dir, string, error) {
	if path == "" {
		return nil, "", fs.ErrNotExist
	}

	var dir *Dir
	var err error
	if path[0] == '/' {
		dir, err = fsys.dirOpenRoot()
		if err != nil {
			return nil, "", err
		}
	} else {
		dir = t.curDir.reopen()
	}

	tokens := make([]string, 0, 8)
	for _, tok := range strings.Split(path, "/") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		// path was "/" (or all separators): the parent is the root and
		// the leaf redirects to itself.
		return dir, ".", nil
	}

	for _, tok := range tokens[:len(tokens)-1] {
		ino, err := dir.lookup(tok)
		if err != nil {
			dir.Close()
			return nil, "", err
		}
		isDir, err := ino.isDir()
		if err != nil || !isDir {
			fsys.inodeClose(ino)
			dir.Close()
			if err == nil {
				err = fs.ErrNotDir
			}
			return nil, "", err
		}
		// keep parent and child open together so a concurrent removal of
		// the parent cannot slip between the two
		next := fsys.dirOpen(ino)
		dir.Close()
		dir = next
	}

	leaf := tokens[len(tokens)-1]
	if len(leaf) > NameMax {
		dir.Close()
		return nil, "", fs.ErrNameTooLong
	}
	return dir, leaf, nil
}
