package server

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"syscall"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/internal/util"
	"github.com/google/uuid"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/rs/zerolog"
)

// handle adapts a [devfs.Stream] to offset addressed FUSE reads and writes.
// Streams keep a single cursor, so requests are serialized and the cursor is
// only moved when the kernel asks for an offset other than where it sits.
type handle struct {
	mu     sync.Mutex
	stream devfs.Stream
	pos    int64 // Cursor position; -1 when unknown
	logger zerolog.Logger
}

func newHandle(stream devfs.Stream, name string) *handle {
	return &handle{
		stream: stream,
		logger: util.GetLogger("Handle").With().Str("name", name).Str("fh", uuid.NewString()).Logger(),
	}
}

// seekToLocked moves the cursor to off. Caller must hold h.mu.
func (h *handle) seekToLocked(off int64) syscall.Errno {
	if h.pos == off {
		return 0
	}
	s, ok := h.stream.(devfs.Seekable)
	if !ok {
		return syscall.ESPIPE
	}
	pos, err := s.Seek(off, io.SeekStart)
	if err != nil {
		h.logger.Debug().Err(err).Int64("off", off).Msg("Seek failed")
		return toErrno(err)
	}
	h.pos = pos
	return 0
}

// length returns the stream length if the stream knows it
func (h *handle) length() (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.stream.(devfs.Seekable)
	if !ok {
		return 0, false
	}
	n, err := s.Length()
	return n, err == nil
}

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.stream.(devfs.Readable)
	if !ok || !h.stream.CanRead() {
		return nil, syscall.EBADF
	}
	if errno := h.seekToLocked(off); errno != 0 {
		return nil, errno
	}
	if h.pos < off {
		// Seek clamped to the end
		return fuse.ReadResultData(nil), 0
	}

	n, err := io.ReadFull(r, dest)
	h.pos += int64(n)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		h.logger.Error().Err(err).Int64("off", off).Msg("Read failed")
		return nil, toErrno(err)
	}
	h.logger.Trace().Int64("off", off).Int("requested", len(dest)).Int("read", n).Msg("Read")
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *handle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.stream.(devfs.Writable)
	if !ok || !h.stream.CanWrite() {
		return 0, syscall.EBADF
	}
	if errno := h.seekToLocked(off); errno != 0 {
		return 0, errno
	}
	if h.pos != off {
		return 0, syscall.EINVAL
	}

	n, err := w.Write(data)
	// Whether the cursor advanced depends on the stream
	h.pos = -1
	if err != nil {
		h.logger.Error().Err(err).Int64("off", off).Msg("Write failed")
		return uint32(n), toErrno(err)
	}
	return uint32(n), 0
}

// truncate sets the stream length
func (h *handle) truncate(size int64) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.stream.(devfs.Truncater)
	if !ok {
		return syscall.ENOTSUP
	}
	if err := t.SetLength(size); err != nil {
		return toErrno(err)
	}
	return 0
}

func (h *handle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if w, ok := h.stream.(devfs.Writable); ok && h.stream.CanWrite() {
		return toErrno(w.Flush())
	}
	return 0
}

func (h *handle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return h.Flush(ctx)
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	return toErrno(h.stream.Close())
}

// toErrno maps device and transport errors onto the errno the kernel expects
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	var terr *devfs.TransportError
	if errors.As(err, &terr) {
		switch terr.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return syscall.ENOENT
		case http.StatusUnauthorized, http.StatusForbidden:
			return syscall.EACCES
		case http.StatusMethodNotAllowed:
			return syscall.ENOTSUP
		}
		return syscall.EIO
	}

	switch {
	case errors.Is(err, devfs.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, devfs.ErrUnsupported):
		return syscall.ENOTSUP
	case errors.Is(err, devfs.ErrUnresolvedCapability):
		return syscall.ESPIPE
	case errors.Is(err, devfs.ErrShareViolation):
		return syscall.EBUSY
	case errors.Is(err, devfs.ErrClosed):
		return syscall.EBADF
	case errors.Is(err, fs.ErrExist), errors.Is(err, errExists):
		return syscall.EEXIST
	case errors.Is(err, fs.ErrPermission):
		return syscall.EACCES
	case errors.Is(err, errNotDir):
		return syscall.ENOTDIR
	}
	return syscall.EIO
}

var (
	_ gofs.FileReader   = (*handle)(nil)
	_ gofs.FileWriter   = (*handle)(nil)
	_ gofs.FileFlusher  = (*handle)(nil)
	_ gofs.FileFsyncer  = (*handle)(nil)
	_ gofs.FileReleaser = (*handle)(nil)
)
