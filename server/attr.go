package server

import (
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

const (
	fileAttr = syscall.S_IFREG
	dirAttr  = syscall.S_IFDIR

	defaultFilePerms = 0o644
	defaultDirPerms  = 0o755
	defaultBlksize   = 4096
)

// newDefaultAttr returns the default attributes for a new node
// NOTE: Make sure to set the Mode field appropriately
func newDefaultAttr(ino uint64) fuse.Attr {
	now := time.Now()
	return fuse.Attr{
		Ino:   ino,
		Nlink: 1,
		Owner: fuse.Owner{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		},
		Atime:     uint64(now.Unix()),
		Mtime:     uint64(now.Unix()),
		Ctime:     uint64(now.Unix()),
		Atimensec: uint32(now.Nanosecond()),
		Mtimensec: uint32(now.Nanosecond()),
		Ctimensec: uint32(now.Nanosecond()),
		Blksize:   defaultBlksize,
	}
}

// applyRequest overlays the optional request fields on attr
func applyRequest(attr *fuse.Attr, req *NodeRequest, kind uint32, defaultPerms uint32) {
	perms := req.Perms
	if perms == 0 {
		perms = defaultPerms
	}
	attr.Mode = kind | (perms & 0o7777)
	if req.OwnerUID != 0 {
		attr.Uid = req.OwnerUID
	}
	if req.OwnerGID != 0 {
		attr.Gid = req.OwnerGID
	}
	if !req.Mtime.IsZero() {
		attr.Mtime = uint64(req.Mtime.Unix())
		attr.Mtimensec = uint32(req.Mtime.Nanosecond())
	}
}

// setSize updates the size and the 512 byte block count derived from it
func setSize(attr *fuse.Attr, size int64) {
	if size < 0 {
		size = 0
	}
	attr.Size = uint64(size)
	attr.Blocks = (attr.Size + 511) / 512
}

// applySetattr records mode, ownership and time changes from a setattr
// request. Sizes go through the open handle instead.
func (e *entry) applySetattr(in *fuse.SetAttrIn) {
	e.UpdateAttr(func(attr *fuse.Attr) {
		if mode, ok := in.GetMode(); ok {
			attr.Mode = attr.Mode&syscall.S_IFMT | mode
		}
		if uid, ok := in.GetUID(); ok {
			attr.Uid = uid
		}
		if gid, ok := in.GetGID(); ok {
			attr.Gid = gid
		}

		var atime, mtime *time.Time
		if t, ok := in.GetATime(); ok {
			atime = &t
		}
		if t, ok := in.GetMTime(); ok {
			mtime = &t
		}
		now := time.Now()
		attr.SetTimes(atime, mtime, &now)
	})
}
