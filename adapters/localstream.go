package adapters

import (
	"fmt"
	"os"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/internal/util"
	"github.com/go-git/go-billy/v5"
	"github.com/gofrs/flock"
)

const defaultFilePerm = 0o644

// LocalStream is a [devfs.Stream] over a native file handle. It is always
// seekable; read and write support follow the access it was opened with.
type LocalStream struct {
	file   billy.File
	device *LocalDevice
	path   string
	access devfs.Access
	lock   *flock.Flock
	closed bool
}

// openFlags translates an open mode and access into os.OpenFile flags.
// Modes that modify the file require write access.
func openFlags(mode devfs.Mode, access devfs.Access) (int, error) {
	var flag int
	switch access {
	case devfs.AccessRead:
		flag = os.O_RDONLY
	case devfs.AccessWrite:
		flag = os.O_WRONLY
	case devfs.AccessReadWrite:
		flag = os.O_RDWR
	default:
		return 0, fmt.Errorf("invalid access %d", access)
	}

	switch mode {
	case devfs.ModeOpen:
		return flag, nil
	case devfs.ModeOpenOrCreate:
		return flag | os.O_CREATE, nil
	}

	if !access.CanWrite() {
		return 0, fmt.Errorf("mode %d requires write access", mode)
	}
	switch mode {
	case devfs.ModeCreateNew:
		return flag | os.O_CREATE | os.O_EXCL, nil
	case devfs.ModeCreate:
		return flag | os.O_CREATE | os.O_TRUNC, nil
	case devfs.ModeTruncate:
		return flag | os.O_TRUNC, nil
	case devfs.ModeAppend:
		return flag | os.O_CREATE | os.O_APPEND, nil
	default:
		return 0, fmt.Errorf("invalid mode %d", mode)
	}
}

// openLocalStream opens rel and takes its share lock. On lockable devices the
// file is truncated only once the lock is held, and a file created by a refused
// open is removed again.
func openLocalStream(d *LocalDevice, rel string, mode devfs.Mode, access devfs.Access, share devfs.Share) (*LocalStream, error) {
	logger := util.GetLogger("LocalStream.Open")

	flag, err := openFlags(mode, access)
	if err != nil {
		return nil, &devfs.PathError{Op: devfs.OpOpen, Path: rel, Err: err}
	}

	truncate, existed := false, true
	if d.lockable {
		truncate = flag&os.O_TRUNC != 0
		flag &^= os.O_TRUNC
		if flag&os.O_CREATE != 0 {
			_, statErr := d.bfs.Stat(rel)
			existed = statErr == nil
		}
	}

	f, err := d.bfs.OpenFile(rel, flag, defaultFilePerm)
	if err != nil {
		return nil, &devfs.PathError{Op: devfs.OpOpen, Path: rel, Err: err}
	}

	s := &LocalStream{file: f, device: d, path: rel, access: access}
	if d.lockable {
		lock, err := tryShareLock(d.hostPath(rel), share)
		if err != nil {
			_ = f.Close()
			if !existed {
				_ = d.bfs.Remove(rel)
			}
			logger.Debug().Err(err).Str("path", rel).Int("share", int(share)).Msg("Share lock not acquired")
			return nil, &devfs.PathError{Op: devfs.OpOpen, Path: rel, Err: err}
		}
		s.lock = lock
	}
	if truncate {
		if err := f.Truncate(0); err != nil {
			_ = s.Close()
			return nil, &devfs.PathError{Op: devfs.OpTruncate, Path: rel, Err: err}
		}
	}
	logger.Trace().Str("path", rel).Int("flag", flag).Bool("truncate", truncate).Msg("Opened local stream")
	return s, nil
}

// tryShareLock takes a non-blocking advisory lock on hostPath. ShareNone takes
// it exclusively and every other share mode takes it shared, so exclusive and
// shared openers refuse each other while shared openers coexist.
func tryShareLock(hostPath string, share devfs.Share) (*flock.Flock, error) {
	lock := flock.New(hostPath)

	var locked bool
	var err error
	if share == devfs.ShareNone {
		locked, err = lock.TryLock()
	} else {
		locked, err = lock.TryRLock()
	}
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, devfs.ErrShareViolation
	}
	return lock, nil
}

func (s *LocalStream) CanRead() bool  { return s.access.CanRead() }
func (s *LocalStream) CanSeek() bool  { return true }
func (s *LocalStream) CanWrite() bool { return s.access.CanWrite() }

func (s *LocalStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, devfs.ErrClosed
	}
	return s.file.Read(p)
}

func (s *LocalStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, devfs.ErrClosed
	}
	return s.file.Write(p)
}

func (s *LocalStream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, devfs.ErrClosed
	}
	return s.file.Seek(offset, whence)
}

// Length stats the file on every call
func (s *LocalStream) Length() (int64, error) {
	if s.closed {
		return 0, devfs.ErrClosed
	}
	info, err := s.device.bfs.Stat(s.path)
	if err != nil {
		return 0, &devfs.PathError{Op: devfs.OpSeek, Path: s.path, Err: err}
	}
	return info.Size(), nil
}

func (s *LocalStream) SetLength(n int64) error {
	if s.closed {
		return devfs.ErrClosed
	}
	if err := s.file.Truncate(n); err != nil {
		return &devfs.PathError{Op: devfs.OpTruncate, Path: s.path, Err: err}
	}
	return nil
}

// Flush syncs written data to stable storage. Writes are not buffered, so
// filesystems without Sync, such as memfs, have nothing to do.
func (s *LocalStream) Flush() error {
	if s.closed {
		return devfs.ErrClosed
	}
	if syncer, ok := s.file.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}

// Close closes the handle and releases any share lock
func (s *LocalStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.file.Close()
	if s.lock != nil {
		if uerr := s.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}
	return err
}

var (
	_ devfs.Readable  = (*LocalStream)(nil)
	_ devfs.Seekable  = (*LocalStream)(nil)
	_ devfs.Writable  = (*LocalStream)(nil)
	_ devfs.Truncater = (*LocalStream)(nil)
)
