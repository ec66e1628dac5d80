package adapters

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/brettbedarf/devfs"
)

// readStrategy is the read state of an [HTTPStream]. Exactly one variant is
// chosen at construction from the probe result and never changes.
type readStrategy interface {
	// read fills p from s.pos without moving the cursor
	read(s *HTTPStream, p []byte) (int, error)
	// length returns the resource length if it is known
	length() (int64, bool)
	release()
	String() string
}

// rangedReader serves each read with a ranged GET
type rangedReader struct {
	size int64 // -1 when the probe did not report one
}

func (r *rangedReader) String() string { return "ranged" }

func (r *rangedReader) length() (int64, bool) {
	return r.size, r.size >= 0
}

func (r *rangedReader) release() {}

func (r *rangedReader) read(s *HTTPStream, p []byte) (int, error) {
	if r.size >= 0 && s.pos >= r.size {
		return 0, nil
	}

	req, err := s.device.newRequest(http.MethodGet, s.url, nil)
	if err != nil {
		return 0, devfs.NewTransportError(devfs.OpRead, s.url, err)
	}
	end := s.pos + int64(len(p)) - 1
	req.Header.Set(headerRange, fmt.Sprintf("%s=%d-%d", rangeUnitBytes, s.pos, end))
	req.Header.Set(headerAcceptEncoding, acceptEncoding)

	resp, err := s.device.client.Do(req)
	if err != nil {
		return 0, devfs.NewTransportError(devfs.OpRead, s.url, err)
	}
	defer drainClose(resp.Body)

	var skip int64
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// Range was ignored and the whole body is coming; skip to the cursor
		skip = s.pos
	case http.StatusRequestedRangeNotSatisfiable:
		return 0, nil
	default:
		return 0, devfs.NewStatusError(devfs.OpRead, s.url, resp.StatusCode)
	}
	s.logger.Trace().Int64("start", s.pos).Int64("end", end).Int("status", resp.StatusCode).Msg("Ranged fetch")

	body, encoded, err := decodeBody(resp)
	if err != nil {
		return 0, devfs.NewTransportError(devfs.OpRead, s.url, err)
	}
	defer body.Close()

	if skip > 0 {
		if _, err := io.CopyN(io.Discard, body, skip); err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 0, devfs.NewTransportError(devfs.OpRead, s.url, err)
		}
	}

	// The declared length only bounds the transfer when it counts decoded bytes
	want := int64(len(p))
	if !encoded && resp.ContentLength >= 0 {
		want = max(0, min(want, resp.ContentLength-skip))
	}

	n, err := io.ReadFull(body, p[:want])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, devfs.NewTransportError(devfs.OpRead, s.url, err)
	}
	return n, nil
}

// bufferedReader fetches the whole body once and serves reads from memory
type bufferedReader struct {
	size    int64 // -1 when the probe did not report one
	body    []byte
	fetched bool
}

func (b *bufferedReader) String() string { return "buffered" }

func (b *bufferedReader) length() (int64, bool) {
	if b.size >= 0 {
		return b.size, true
	}
	if b.fetched {
		return int64(len(b.body)), true
	}
	return 0, false
}

func (b *bufferedReader) release() {
	b.body = nil
}

func (b *bufferedReader) read(s *HTTPStream, p []byte) (int, error) {
	if !b.fetched {
		if err := b.fetch(s); err != nil {
			return 0, err
		}
	}
	if s.pos >= int64(len(b.body)) {
		return 0, nil
	}
	return copy(p, b.body[s.pos:]), nil
}

func (b *bufferedReader) fetch(s *HTTPStream) error {
	req, err := s.device.newRequest(http.MethodGet, s.url, nil)
	if err != nil {
		return devfs.NewTransportError(devfs.OpRead, s.url, err)
	}
	req.Header.Set(headerAcceptEncoding, acceptEncoding)

	resp, err := s.device.client.Do(req)
	if err != nil {
		return devfs.NewTransportError(devfs.OpRead, s.url, err)
	}
	defer drainClose(resp.Body)

	if !isSuccess(resp.StatusCode) {
		return devfs.NewStatusError(devfs.OpRead, s.url, resp.StatusCode)
	}

	body, _, err := decodeBody(resp)
	if err != nil {
		return devfs.NewTransportError(devfs.OpRead, s.url, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return devfs.NewTransportError(devfs.OpRead, s.url, err)
	}
	b.body = data
	b.fetched = true
	s.logger.Debug().Int("bytes", len(data)).Msg("Body fetched and cached")
	return nil
}
