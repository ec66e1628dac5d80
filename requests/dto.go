package requests

import (
	"time"

	"github.com/brettbedarf/devfs/server"
)

// NodeRequestDTO is the JSON representation of [server.NodeRequest]
type NodeRequestDTO struct {
	Path     string                 `json:"path"`
	Type     server.NodeRequestType `json:"type"`
	Source   string                 `json:"source,omitempty"` // Required for files; optional mirror for dirs
	Mtime    *time.Time             `json:"mtime,omitempty"`  // Last Modified at (Default current time)
	Perms    *uint32                `json:"perms,omitempty"`  // i.e. 0755
	OwnerUID *uint32                `json:"owner_uid,omitempty"`
	OwnerGID *uint32                `json:"owner_gid,omitempty"`
}

// Table is a parsed mount table
type Table struct {
	Files []*server.FileRequest
	Dirs  []*server.DirRequest
}
