package server

import "time"

// NodeRequest has common fields embedded in concrete request types
type NodeRequest struct {
	Path     string    // Mount relative path, slash separated
	Source   string    // Logical path handed to the resolver
	Perms    uint32    // i.e. 0644
	OwnerUID uint32
	OwnerGID uint32
	Mtime    time.Time // Last Modified at
}

// NodeRequestType valid types are FileNodeType "file", DirNodeType "dir"
type NodeRequestType string

const (
	FileNodeType NodeRequestType = "file"
	DirNodeType  NodeRequestType = "dir"
)

// FileRequest mounts a single resolvable file. Source is required.
type FileRequest struct {
	NodeRequest
}

// DirRequest creates a directory. When Source is set the directory mirrors
// the resolved [devfs.Directory] beneath any explicitly added children.
type DirRequest struct {
	NodeRequest
}
