package server

import (
	"context"
	"syscall"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// dirNode serves a directory entry of the mount tree
type dirNode struct {
	fs.Inode
	srv *Server
	e   *entry
}

// fileNode serves a file entry. Every open creates a new stream on the file.
type fileNode struct {
	fs.Inode
	srv *Server
	e   *entry
}

func (s *Server) newNode(e *entry) fs.InodeEmbedder {
	if e.isDir() {
		return &dirNode{srv: s, e: e}
	}
	return &fileNode{srv: s, e: e}
}

func (n *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child, err := n.e.child(name)
	if err != nil {
		return nil, toErrno(err)
	}
	child.fillAttr(nil, &out.Attr)
	return n.NewInode(ctx, n.srv.newNode(child), fs.StableAttr{Mode: child.mode(), Ino: child.ino()}), 0
}

func (n *dirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	logger := util.GetLogger("Fuse.Readdir")

	children, err := n.e.list()
	if err != nil {
		logger.Error().Err(err).Str("dir", n.e.name).Msg("Listing failed")
		return nil, toErrno(err)
	}
	list := make([]fuse.DirEntry, 0, len(children))
	for _, c := range children {
		list = append(list, fuse.DirEntry{Name: c.name, Mode: c.mode(), Ino: c.ino()})
	}
	return fs.NewListDirStream(list), 0
}

func (n *dirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.e.fillAttr(nil, &out.Attr)
	return 0
}

func (n *fileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	h, _ := f.(*handle)
	n.e.fillAttr(h, &out.Attr)
	return 0
}

// Setattr keeps mode, ownership and time changes in the tree. They are not
// written through to the backing device.
func (n *dirNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	n.e.applySetattr(in)
	n.e.fillAttr(nil, &out.Attr)
	return 0
}

// Setattr truncates through the open handle; other changes are kept in the tree
func (n *fileNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	h, _ := f.(*handle)
	if size, ok := in.GetSize(); ok {
		if h == nil {
			return syscall.ENOTSUP
		}
		if errno := h.truncate(int64(size)); errno != 0 {
			return errno
		}
	}
	n.e.applySetattr(in)
	n.e.fillAttr(h, &out.Attr)
	return 0
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	logger := util.GetLogger("Fuse.Open")

	mode, access := openMode(flags)
	stream, err := n.e.file.Open(mode, access, devfs.ShareReadWrite)
	if err != nil {
		logger.Debug().Err(err).Str("name", n.e.name).Msg("Open failed")
		return nil, 0, toErrno(err)
	}

	var fuseFlags uint32
	if n.srv.cfg.DirectIO {
		fuseFlags |= fuse.FOPEN_DIRECT_IO
	}
	logger.Trace().Str("name", n.e.name).Uint32("flags", flags).Msg("Opened")
	return newHandle(stream, n.e.name), fuseFlags, 0
}

// openMode translates open(2) flags into a devfs open mode and access
func openMode(flags uint32) (devfs.Mode, devfs.Access) {
	access := devfs.AccessRead
	switch flags & syscall.O_ACCMODE {
	case syscall.O_WRONLY:
		access = devfs.AccessWrite
	case syscall.O_RDWR:
		access = devfs.AccessReadWrite
	}
	if !access.CanWrite() {
		return devfs.ModeOpen, access
	}
	switch {
	case flags&syscall.O_TRUNC != 0:
		return devfs.ModeTruncate, access
	case flags&syscall.O_APPEND != 0:
		return devfs.ModeAppend, access
	}
	return devfs.ModeOpen, access
}

// fillAttr copies the entry's attributes into out. File sizes come from the
// open handle when one is given, otherwise from the file itself. A length the
// backend cannot report is shown as 0.
func (e *entry) fillAttr(h *handle, out *fuse.Attr) {
	*out = e.CopyAttr()
	if e.isDir() {
		return
	}
	if h != nil {
		if n, ok := h.length(); ok {
			setSize(out, n)
			return
		}
	}
	if n, err := e.file.Length(); err == nil {
		setSize(out, n)
	}
}

var (
	_ fs.NodeLookuper  = (*dirNode)(nil)
	_ fs.NodeReaddirer = (*dirNode)(nil)
	_ fs.NodeGetattrer = (*dirNode)(nil)
	_ fs.NodeSetattrer = (*dirNode)(nil)
	_ fs.NodeGetattrer = (*fileNode)(nil)
	_ fs.NodeSetattrer = (*fileNode)(nil)
	_ fs.NodeOpener    = (*fileNode)(nil)
)
