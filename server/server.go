package server

import (
	"fmt"
	"os"
	"path"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/config"
	"github.com/brettbedarf/devfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Server exposes resolver backed files and directories as a FUSE mount.
// Nodes may be added before or after mounting.
type Server struct {
	cfg      *config.Config
	resolver *devfs.Resolver
	root     *entry
	lastIno  atomic.Uint64 // Last fuse Attr.Ino assigned; incremented when new nodes are created
	server   *fuse.Server
}

// New creates a Server with an empty root directory
func New(cfg *config.Config, resolver *devfs.Resolver) *Server {
	rootAttr := newDefaultAttr(fuse.FUSE_ROOT_ID)
	rootAttr.Mode = dirAttr | defaultDirPerms

	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		root:     newDirEntry("", rootAttr, nil),
	}
	s.lastIno.Store(fuse.FUSE_ROOT_ID)
	return s
}

// AddFile mounts the file resolved from req.Source at req.Path. Any missing
// ancestor directories are created. It fails if the source is not claimed by
// any device or a node already exists at the path.
func (s *Server) AddFile(req *FileRequest) error {
	logger := util.GetLogger("Server.AddFile")

	parts := splitPath(req.Path)
	if len(parts) == 0 {
		return fmt.Errorf("file path %q resolves to the mount root", req.Path)
	}
	file, ok := s.resolver.GetFile(req.Source)
	if !ok {
		return &devfs.PathError{Op: devfs.OpOpen, Path: req.Source, Err: devfs.ErrNotFound}
	}

	parent := s.root
	if len(parts) > 1 {
		// Implicit dirs share the file's ownership
		dirReq := DirRequest{NodeRequest: NodeRequest{
			Path:     path.Join(parts[:len(parts)-1]...),
			OwnerUID: req.OwnerUID,
			OwnerGID: req.OwnerGID,
		}}
		d, err := s.addDir(&dirReq)
		if err != nil {
			logger.Error().Err(err).Str("path", dirReq.Path).Msg("Failed to create file's ancestor directory(s)")
			return err
		}
		parent = d
	}

	name := parts[len(parts)-1]
	attr := newDefaultAttr(s.lastIno.Add(1))
	applyRequest(&attr, &req.NodeRequest, fileAttr, defaultFilePerms)
	if _, loaded := parent.children.LoadOrStore(name, newFileEntry(name, attr, file)); loaded {
		return &devfs.PathError{Op: devfs.OpOpen, Path: req.Path, Err: errExists}
	}
	logger.Debug().Str("path", req.Path).Str("source", req.Source).Msg("Added new file node")
	return nil
}

// AddDir recursively adds all missing directories in the request's path.
// It is equivalent to `mkdir -p`: existing directories are reused and only a
// newly created leaf takes the request's attributes. A source may be attached
// to an existing leaf that has none.
func (s *Server) AddDir(req *DirRequest) error {
	_, err := s.addDir(req)
	return err
}

// addDir is [Server.AddDir] returning the leaf
func (s *Server) addDir(req *DirRequest) (*entry, error) {
	logger := util.GetLogger("Server.AddDir")

	var backing devfs.Directory
	if req.Source != "" {
		d, ok, err := s.resolver.GetDirectory(req.Source)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &devfs.PathError{Op: devfs.OpList, Path: req.Source, Err: devfs.ErrNotFound}
		}
		backing = d
	}

	parts := splitPath(req.Path)
	cur := s.root
	newCnt := 0
	for i, name := range parts {
		leaf := i == len(parts)-1
		next, loaded := cur.children.LoadOrCompute(name, func() (*entry, bool) {
			attr := newDefaultAttr(s.lastIno.Add(1))
			nodeReq := NodeRequest{OwnerUID: req.OwnerUID, OwnerGID: req.OwnerGID}
			var dirBacking devfs.Directory
			if leaf {
				nodeReq = req.NodeRequest
				dirBacking = backing
			}
			applyRequest(&attr, &nodeReq, dirAttr, defaultDirPerms)
			return newDirEntry(name, attr, dirBacking), false
		})
		if !next.isDir() {
			return nil, &devfs.PathError{Op: devfs.OpList, Path: req.Path, Err: errNotDir}
		}
		if !loaded {
			newCnt++
		} else if leaf && backing != nil && !next.setBacking(backing) {
			return nil, &devfs.PathError{Op: devfs.OpList, Path: req.Path, Err: errExists}
		}
		cur = next
	}
	if newCnt > 0 {
		logger.Info().Str("path", req.Path).Msg(fmt.Sprintf("Created %d new dir(s)", newCnt))
	}
	return cur, nil
}

// find walks the tree, descending into backing directories where needed
func (s *Server) find(p string) (*entry, error) {
	cur := s.root
	for _, name := range splitPath(p) {
		next, err := cur.child(name)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Serve mounts the tree at mountPoint and starts serving in the background.
// It returns once the kernel has acknowledged the mount.
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("Server.Serve")

	attrTimeout := seconds(s.cfg.AttrTimeout)
	entryTimeout := seconds(s.cfg.EntryTimeout)
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:   s.cfg.Name,
			FsName: s.cfg.FsName,
			Debug:  s.cfg.Debug || s.cfg.LogLvl == util.TraceLevel,
			Logger: util.NewLogLogger("FuseServer", util.DebugLevel),
		},
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
		UID:          uint32(os.Getuid()),
		GID:          uint32(os.Getgid()),
	}

	srv, err := fs.Mount(mountPoint, &dirNode{srv: s, e: s.root}, opts)
	if err != nil {
		return err
	}
	s.server = srv
	logger.Info().Str("mountpoint", mountPoint).Bool("directIO", s.cfg.DirectIO).Msg("Filesystem mounted")
	return nil
}

// ServeAsync runs [Server.Serve] in a goroutine and reports its result
func (s *Server) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the filesystem is unmounted
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	if s.server == nil {
		return nil
	}
	return s.server.Unmount()
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

