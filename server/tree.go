package server

import (
	"errors"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/brettbedarf/devfs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// entry is a node of the mount tree. Files carry the resolved [devfs.File];
// directories carry their explicitly added children and optionally a backing
// [devfs.Directory] whose contents show through beneath them.
type entry struct {
	name     string
	file     devfs.File
	children *xsync.Map[string, *entry] // nil for files

	mu   sync.RWMutex
	dir  devfs.Directory // Protected by mu
	attr fuse.Attr       // Protected by mu; Size is refreshed on every stat
}

func newDirEntry(name string, attr fuse.Attr, backing devfs.Directory) *entry {
	return &entry{
		name:     name,
		dir:      backing,
		children: xsync.NewMap[string, *entry](),
		attr:     attr,
	}
}

func newFileEntry(name string, attr fuse.Attr, file devfs.File) *entry {
	return &entry{name: name, file: file, attr: attr}
}

func (e *entry) isDir() bool {
	return e.children != nil
}

// backing returns the mirrored directory, if any
func (e *entry) backing() devfs.Directory {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dir
}

// setBacking attaches d unless a backing directory is already set
func (e *entry) setBacking(d devfs.Directory) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dir != nil {
		return false
	}
	e.dir = d
	return true
}

// ino returns the stable inode number; 0 lets the bridge pick one
func (e *entry) ino() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attr.Ino
}

func (e *entry) mode() uint32 {
	if e.isDir() {
		return dirAttr
	}
	return fileAttr
}

// CopyAttr returns a thread-safe copy of the entry's attributes
func (e *entry) CopyAttr() fuse.Attr {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attr
}

// UpdateAttr runs fn under the write lock for atomic modifications
func (e *entry) UpdateAttr(fn func(attr *fuse.Attr)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.attr)
}

// child returns the named child, falling back to the backing directory's
// listing when no explicit child exists
func (e *entry) child(name string) (*entry, error) {
	if !e.isDir() {
		return nil, errNotDir
	}
	if c, ok := e.children.Load(name); ok {
		return c, nil
	}
	backing := e.backing()
	if backing == nil {
		return nil, devfs.ErrNotFound
	}

	files, err := backing.Files()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Name() == name {
			return e.backedFile(f), nil
		}
	}
	dirs, err := backing.Directories()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if d.Name() == name {
			return e.backedDir(d), nil
		}
	}
	return nil, devfs.ErrNotFound
}

// list returns every child sorted by name. Explicit children shadow backing
// entries of the same name.
func (e *entry) list() ([]*entry, error) {
	if !e.isDir() {
		return nil, errNotDir
	}
	byName := make(map[string]*entry, e.children.Size())
	e.children.Range(func(name string, c *entry) bool {
		byName[name] = c
		return true
	})

	if backing := e.backing(); backing != nil {
		files, err := backing.Files()
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if _, ok := byName[f.Name()]; !ok {
				byName[f.Name()] = e.backedFile(f)
			}
		}
		dirs, err := backing.Directories()
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			if _, ok := byName[d.Name()]; !ok {
				byName[d.Name()] = e.backedDir(d)
			}
		}
	}

	out := make([]*entry, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// backed children inherit ownership from their mirrored parent
func (e *entry) backedFile(f devfs.File) *entry {
	attr := e.inheritedAttr()
	attr.Mode = fileAttr | defaultFilePerms
	return newFileEntry(f.Name(), attr, f)
}

func (e *entry) backedDir(d devfs.Directory) *entry {
	attr := e.inheritedAttr()
	attr.Mode = dirAttr | defaultDirPerms
	return newDirEntry(d.Name(), attr, d)
}

func (e *entry) inheritedAttr() fuse.Attr {
	attr := e.CopyAttr()
	attr.Ino = 0
	attr.Size = 0
	attr.Blocks = 0
	return attr
}

var (
	errNotDir = errors.New("not a directory")
	errExists = errors.New("node already exists")
)

// splitPath cleans a mount relative path into its segments. The root is
// returned as an empty slice and ".." never climbs above it.
func splitPath(p string) []string {
	p = path.Clean("/" + strings.TrimSpace(p))
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}
