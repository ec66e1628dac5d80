package adapters

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/internal/util"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	billyutil "github.com/go-git/go-billy/v5/util"
)

// rootPath is the device relative path of a local device's root directory
const rootPath = "."

// LocalDevice implements [devfs.Device] over a directory tree on a billy
// filesystem. Paths are resolved relative to the device root, or to its
// working directory when one is set; absolute paths are accepted when they
// fall beneath the root.
type LocalDevice struct {
	bfs  billy.Filesystem
	root string
	wd   string // Device relative base for relative inputs
	// lockable is set when root is a host directory so share locks can be taken
	lockable bool
}

// LocalOption configures a [LocalDevice]
type LocalOption func(*LocalDevice)

// WithWorkingDir resolves relative paths against the host directory dir. It is
// ignored unless dir lies beneath the device root.
func WithWorkingDir(dir string) LocalOption {
	return func(d *LocalDevice) {
		if dir == "" {
			return
		}
		rel, err := filepath.Rel(d.root, filepath.Clean(dir))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		d.wd = rel
	}
}

// NewLocalDevice creates a device rooted at the host directory root
func NewLocalDevice(root string, opts ...LocalOption) *LocalDevice {
	root = filepath.Clean(root)
	d := &LocalDevice{bfs: osfs.New(root), root: root, wd: rootPath, lockable: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewLocalDeviceFS creates a device over an existing billy filesystem such as
// memfs. Share locks are not available on such devices.
func NewLocalDeviceFS(bfs billy.Filesystem) *LocalDevice {
	return &LocalDevice{bfs: bfs, root: filepath.Clean(bfs.Root()), wd: rootPath}
}

// Root returns the host directory the device is rooted at
func (d *LocalDevice) Root() string {
	return d.root
}

// relPath converts p into a slash separated path relative to the device root.
// URIs other than file:// and paths escaping the root are not claimed.
func (d *LocalDevice) relPath(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", false
	}
	if u, err := url.Parse(p); err == nil && u.Scheme != "" {
		if u.Scheme != "file" || (u.Host != "" && u.Host != "localhost") {
			return "", false
		}
		p = u.Path
	}

	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(d.root, filepath.Clean(p))
		if err != nil {
			return "", false
		}
		p = rel
	} else {
		p = filepath.Join(d.wd, p)
	}
	if p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(p), true
}

// hostPath returns the host filesystem path for a device relative path
func (d *LocalDevice) hostPath(rel string) string {
	return filepath.Join(d.root, filepath.FromSlash(rel))
}

func (d *LocalDevice) Name() string {
	return d.root
}

func (d *LocalDevice) Parent() (devfs.Directory, bool) {
	return nil, false
}

func (d *LocalDevice) QueryPath(p string) (devfs.Device, bool) {
	if _, ok := d.relPath(p); ok {
		return d, true
	}
	return nil, false
}

// GetFile returns a handle for p without touching the filesystem
func (d *LocalDevice) GetFile(p string) (devfs.File, bool) {
	rel, ok := d.relPath(p)
	if !ok || rel == rootPath {
		return nil, false
	}
	return &LocalFile{device: d, path: rel}, true
}

// GetDirectory returns a handle for the directory at p. A missing path or one
// that is not a directory is reported as absent.
func (d *LocalDevice) GetDirectory(p string) (devfs.Directory, bool, error) {
	rel, ok := d.relPath(p)
	if !ok {
		return nil, false, nil
	}
	info, err := d.bfs.Stat(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &devfs.PathError{Op: devfs.OpList, Path: p, Err: err}
	}
	if !info.IsDir() {
		return nil, false, nil
	}
	return &LocalDirectory{device: d, path: rel}, true, nil
}

func (d *LocalDevice) Files() ([]devfs.File, error) {
	return d.rootDir().Files()
}

func (d *LocalDevice) Directories() ([]devfs.Directory, error) {
	return d.rootDir().Directories()
}

func (d *LocalDevice) rootDir() *LocalDirectory {
	return &LocalDirectory{device: d, path: rootPath}
}

// RemoveFile deletes a regular file from the host filesystem
func (d *LocalDevice) RemoveFile(p string) error {
	logger := util.GetLogger("LocalDevice.RemoveFile")

	rel, ok := d.relPath(p)
	if !ok {
		return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: devfs.ErrNotFound}
	}
	info, err := d.bfs.Stat(rel)
	if err != nil {
		return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: err}
	}
	if info.IsDir() {
		return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: errors.New("is a directory")}
	}
	if err := d.bfs.Remove(rel); err != nil {
		return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: err}
	}
	logger.Debug().Str("path", rel).Msg("Removed file")
	return nil
}

// RemoveDirectory deletes a directory and everything beneath it. The device
// root cannot be removed.
func (d *LocalDevice) RemoveDirectory(p string) error {
	logger := util.GetLogger("LocalDevice.RemoveDirectory")

	rel, ok := d.relPath(p)
	if !ok || rel == rootPath {
		return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: devfs.ErrUnsupported}
	}
	info, err := d.bfs.Stat(rel)
	if err != nil {
		return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: err}
	}
	if !info.IsDir() {
		return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: errors.New("not a directory")}
	}
	if err := billyutil.RemoveAll(d.bfs, rel); err != nil {
		return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: err}
	}
	logger.Debug().Str("path", rel).Msg("Removed directory")
	return nil
}

// LocalFile is a [devfs.File] on a [LocalDevice]
type LocalFile struct {
	device *LocalDevice
	path   string
}

func (f *LocalFile) Name() string {
	return filepath.Base(f.path)
}

// Path returns the device relative path
func (f *LocalFile) Path() string {
	return f.path
}

func (f *LocalFile) Device() devfs.Device {
	return f.device
}

func (f *LocalFile) Parent() (devfs.Directory, bool) {
	return &LocalDirectory{device: f.device, path: filepath.ToSlash(filepath.Dir(f.path))}, true
}

// Length stats the file on every call so external changes are always visible
func (f *LocalFile) Length() (int64, error) {
	info, err := f.device.bfs.Stat(f.path)
	if err != nil {
		return 0, &devfs.PathError{Op: devfs.OpProbe, Path: f.path, Err: err}
	}
	return info.Size(), nil
}

func (f *LocalFile) Location() devfs.Location {
	return devfs.LocationLocal
}

func (f *LocalFile) Compressed() bool {
	return false
}

func (f *LocalFile) Open(mode devfs.Mode, access devfs.Access, share devfs.Share) (devfs.Stream, error) {
	s, err := openLocalStream(f.device, f.path, mode, access, share)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LocalDirectory is a [devfs.Directory] on a [LocalDevice]. Listings are read
// from the filesystem on every call.
type LocalDirectory struct {
	device *LocalDevice
	path   string
}

func (d *LocalDirectory) Name() string {
	if d.path == rootPath {
		return filepath.Base(d.device.root)
	}
	return filepath.Base(d.path)
}

func (d *LocalDirectory) Device() devfs.Device {
	return d.device
}

func (d *LocalDirectory) Parent() (devfs.Directory, bool) {
	if d.path == rootPath {
		return nil, false
	}
	return &LocalDirectory{device: d.device, path: filepath.ToSlash(filepath.Dir(d.path))}, true
}

func (d *LocalDirectory) Files() ([]devfs.File, error) {
	infos, err := d.readDir()
	if err != nil {
		return nil, err
	}
	files := make([]devfs.File, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() {
			files = append(files, &LocalFile{device: d.device, path: d.child(info.Name())})
		}
	}
	return files, nil
}

func (d *LocalDirectory) Directories() ([]devfs.Directory, error) {
	infos, err := d.readDir()
	if err != nil {
		return nil, err
	}
	dirs := make([]devfs.Directory, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			dirs = append(dirs, &LocalDirectory{device: d.device, path: d.child(info.Name())})
		}
	}
	return dirs, nil
}

func (d *LocalDirectory) readDir() ([]os.FileInfo, error) {
	infos, err := d.device.bfs.ReadDir(d.path)
	if err != nil {
		return nil, &devfs.PathError{Op: devfs.OpList, Path: d.path, Err: err}
	}
	return infos, nil
}

func (d *LocalDirectory) child(name string) string {
	if d.path == rootPath {
		return name
	}
	return d.path + "/" + name
}

var (
	_ devfs.Device    = (*LocalDevice)(nil)
	_ devfs.File      = (*LocalFile)(nil)
	_ devfs.Directory = (*LocalDirectory)(nil)
)
