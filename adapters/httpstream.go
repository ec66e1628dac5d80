package adapters

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/internal/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPStream maps a random access stream onto HTTP requests against one URL.
//
// The capability probe runs once when the stream is created and fixes
// CanRead, CanWrite and CanSeek for the stream's lifetime. Range capable
// resources are read with one ranged GET per call; all others are fetched
// whole on the first read and served from memory afterwards.
//
// NOTE: HTTPStream is not safe for concurrent use. Open one stream per goroutine.
type HTTPStream struct {
	device   *HTTPDevice
	url      string
	id       string
	pos      int64
	reader   readStrategy
	canRead  bool
	canWrite bool
	canSeek  bool
	closed   bool
	logger   zerolog.Logger
}

// NewHTTPStream probes target and returns a stream configured for what the
// server supports. A probe failure aborts construction.
func NewHTTPStream(device *HTTPDevice, target string) (*HTTPStream, error) {
	res, err := device.probe(target)
	if err != nil {
		return nil, err
	}

	s := &HTTPStream{
		device:   device,
		url:      res.url,
		id:       uuid.NewString(),
		canRead:  res.canRead,
		canWrite: res.canWrite,
		canSeek:  res.canSeek,
	}
	if res.canSeek {
		s.reader = &rangedReader{size: res.length}
	} else {
		s.reader = &bufferedReader{size: res.length}
	}
	s.logger = util.GetLogger("HTTPStream").With().Str("handle", s.id).Str("url", s.url).Logger()
	s.logger.Debug().Str("strategy", s.reader.String()).Msg("Stream opened")
	return s, nil
}

func (s *HTTPStream) CanRead() bool  { return s.canRead }
func (s *HTTPStream) CanSeek() bool  { return s.canSeek }
func (s *HTTPStream) CanWrite() bool { return s.canWrite }

// URL returns the resource URL after any redirects followed by the probe
func (s *HTTPStream) URL() string {
	return s.url
}

// Position returns the cursor
func (s *HTTPStream) Position() int64 {
	return s.pos
}

// Length returns the resource length from the probe, or the size of the cached
// body once it has been fetched. Before either is available it reports
// [devfs.ErrUnresolvedCapability].
func (s *HTTPStream) Length() (int64, error) {
	if s.closed {
		return 0, devfs.ErrClosed
	}
	n, ok := s.reader.length()
	if !ok {
		return 0, &devfs.PathError{Op: devfs.OpSeek, Path: s.url, Err: devfs.ErrUnresolvedCapability}
	}
	return n, nil
}

// Read reads up to len(p) bytes from the cursor. Fewer bytes than requested is
// not an error; zero bytes for a non-empty p is reported as io.EOF.
// The cursor advances by the number of bytes returned.
func (s *HTTPStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, devfs.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := s.reader.read(s, p)
	s.pos += int64(n)
	s.logger.Trace().Int64("pos", s.pos).Int("requested", len(p)).Int("read", n).Msg("Read")
	if err != nil {
		s.logger.Error().Err(err).Msg("Read failed")
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Seek moves the cursor relative to whence, clamping the result into
// [0, length]. It needs a resolved length for every origin.
func (s *HTTPStream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, devfs.ErrClosed
	}
	size, ok := s.reader.length()
	if !ok {
		return s.pos, &devfs.PathError{Op: devfs.OpSeek, Path: s.url, Err: devfs.ErrUnresolvedCapability}
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += s.pos
	case io.SeekEnd:
		offset += size
	default:
		return s.pos, &devfs.PathError{Op: devfs.OpSeek, Path: s.url, Err: fmt.Errorf("invalid whence %d", whence)}
	}

	s.pos = max(0, min(offset, size))
	return s.pos, nil
}

// Write sends p to the resource in a single PUT placed at the cursor with a
// Content-Range header and blocks until the server answers.
//
// NOTE: the cursor is not advanced. Consecutive writes target the same offset
// unless the caller seeks in between.
func (s *HTTPStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, devfs.ErrClosed
	}
	if !s.canWrite {
		return 0, &devfs.PathError{Op: devfs.OpWrite, Path: s.url, Err: devfs.ErrUnsupported}
	}
	if len(p) == 0 {
		return 0, nil
	}

	req, err := s.device.newRequest(http.MethodPut, s.url, bytes.NewReader(p))
	if err != nil {
		return 0, devfs.NewTransportError(devfs.OpWrite, s.url, err)
	}
	end := s.pos + int64(len(p)) - 1
	req.ContentLength = int64(len(p))
	req.Header.Set(headerContentRange, fmt.Sprintf("%s %d-%d/*", rangeUnitBytes, s.pos, end))

	resp, err := s.device.client.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Write request failed")
		return 0, devfs.NewTransportError(devfs.OpWrite, s.url, err)
	}
	defer drainClose(resp.Body)

	if !isSuccess(resp.StatusCode) {
		s.logger.Error().Int("status", resp.StatusCode).Msg("Write rejected")
		return 0, devfs.NewStatusError(devfs.OpWrite, s.url, resp.StatusCode)
	}
	s.logger.Debug().Int64("start", s.pos).Int64("end", end).Msg("Write acknowledged")
	return len(p), nil
}

// SetLength is unsupported; the server decides a remote resource's length
func (s *HTTPStream) SetLength(n int64) error {
	return &devfs.PathError{Op: devfs.OpTruncate, Path: s.url, Err: devfs.ErrUnsupported}
}

// Flush is a no-op because every Write is already a complete transfer
func (s *HTTPStream) Flush() error {
	return nil
}

// Close releases the cached body. Calling Close more than once is a no-op.
func (s *HTTPStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.reader.release()
	s.logger.Debug().Msg("Stream closed")
	return nil
}

var (
	_ devfs.Readable  = (*HTTPStream)(nil)
	_ devfs.Seekable  = (*HTTPStream)(nil)
	_ devfs.Writable  = (*HTTPStream)(nil)
	_ devfs.Truncater = (*HTTPStream)(nil)
)
