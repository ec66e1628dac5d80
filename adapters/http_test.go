package adapters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/internal/mocks"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubServer records every request it receives so tests can count round trips
type stubServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	heads    atomic.Int32
	gets     atomic.Int32
	puts     atomic.Int32
}

func newStubServer(t *testing.T, handler http.HandlerFunc) *stubServer {
	t.Helper()
	s := &stubServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(r.Context()))
		s.mu.Unlock()
		switch r.Method {
		case http.MethodHead:
			s.heads.Add(1)
		case http.MethodGet:
			s.gets.Add(1)
		case http.MethodPut:
			s.puts.Add(1)
		}
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *stubServer) device() *HTTPDevice {
	return NewHTTPDevice(WithHTTPClient(s.Client()), WithUserAgent("devfs-test"))
}

func (s *stubServer) lastRequest(method string) *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Method == method {
			return s.requests[i]
		}
	}
	return nil
}

// rangeServer serves data with full HEAD and Range support
func rangeServer(t *testing.T, data []byte) *stubServer {
	return newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "data.bin", time.Time{}, bytes.NewReader(data))
	})
}

// noHeadServer rejects HEAD with 405 and serves whole bodies without range support
func noHeadServer(t *testing.T, allow string, data []byte) *stubServer {
	return newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Allow", allow)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write(data)
	})
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func openHTTPStream(t *testing.T, srv *stubServer, path string) *HTTPStream {
	t.Helper()
	s, err := NewHTTPStream(srv.device(), srv.URL+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestParseHTTPURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
		desc string
	}{
		// Valid cases
		{"http://test.com", true, "basic HTTP URL"},
		{"https://test.com", true, "basic HTTPS URL"},
		{"HTTPS://test.com", true, "upper case scheme"},
		{"  http://test.com   ", true, "URL with whitespace"},
		{"http://test.com/path?arg=1&arg2=2", true, "URL with path and query"},
		{"http://test.com:8080", true, "URL with port"},
		{"http://localhost:8080/test", true, "localhost with port"},
		{"http://123.123.123.123/test", true, "IP address"},
		{"http://mylocalnet/test", true, "single label hostname"},

		// Invalid cases
		{"", false, "empty string"},
		{" ", false, "whitespace only"},
		{"_", false, "invalid character"},
		{"ftp://test.com", false, "different scheme rejected"},
		{"file:///etc/hosts", false, "file scheme rejected"},
		{"test.com", false, "missing scheme"},
		{"/var/data/file.bin", false, "local absolute path"},
		{"relative/file.bin", false, "relative path"},
		{"http:opaque", false, "opaque URI without host"},
		{"mailto:someone@test.com", false, "mailto URI"},
	}

	d := NewHTTPDevice()
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, ok := parseHTTPURL(tt.url)
			assert.Equal(t, tt.want, ok)

			dev, ok := d.QueryPath(tt.url)
			assert.Equal(t, tt.want, ok)
			f, fok := d.GetFile(tt.url)
			assert.Equal(t, tt.want, fok)
			if tt.want {
				assert.Same(t, d, dev, "device must resolve to itself")
				assert.Equal(t, devfs.LocationHTTP, f.Location())
				assert.False(t, f.Compressed())
			} else {
				assert.Nil(t, dev)
				assert.Nil(t, f)
			}
		})
	}
}

func TestHTTPDevice_IndependentInstances(t *testing.T) {
	t.Parallel()

	a, b := NewHTTPDevice(), NewHTTPDevice()
	for _, p := range []string{"http://test.com/a", "ftp://test.com/a", "a/b"} {
		_, okA := a.QueryPath(p)
		_, okB := b.QueryPath(p)
		assert.Equal(t, okA, okB, "path %q", p)
	}
}

func TestHTTPDevice_UnsupportedOperations(t *testing.T) {
	t.Parallel()

	d := NewHTTPDevice()
	url := "http://test.com/dir"

	dir, ok, err := d.GetDirectory(url)
	assert.Nil(t, dir)
	assert.False(t, ok)
	assert.ErrorIs(t, err, devfs.ErrUnsupported)

	_, err = d.Files()
	assert.ErrorIs(t, err, devfs.ErrUnsupported)
	_, err = d.Directories()
	assert.ErrorIs(t, err, devfs.ErrUnsupported)
	assert.ErrorIs(t, d.RemoveFile(url), devfs.ErrUnsupported)
	assert.ErrorIs(t, d.RemoveDirectory(url), devfs.ErrUnsupported)

	parent, ok := d.Parent()
	assert.Nil(t, parent)
	assert.False(t, ok)
}

func TestHTTPFile_Name(t *testing.T) {
	t.Parallel()

	d := NewHTTPDevice()
	f, ok := d.GetFile("https://test.com/archives/data.zip?sig=1")
	require.True(t, ok)
	assert.Equal(t, "data.zip", f.Name())

	f, ok = d.GetFile("https://test.com/")
	require.True(t, ok)
	assert.Equal(t, "test.com", f.Name())
}

// Server reports range support and a length of 1000
func TestHTTPStream_RangeCapable(t *testing.T) {
	t.Parallel()

	data := testData(1000)
	srv := rangeServer(t, data)
	s := openHTTPStream(t, srv, "/data.bin")

	assert.True(t, s.CanSeek())
	assert.True(t, s.CanRead())
	assert.True(t, s.CanWrite(), "missing Allow header must default to capable")
	n, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)
	assert.Equal(t, int32(1), srv.heads.Load())

	buf := make([]byte, 500)
	read, err := s.Read(buf)
	require.NoError(t, err)
	assert.LessOrEqual(t, read, 500)
	assert.Equal(t, int64(read), s.Position())
	assert.Equal(t, data[:read], buf[:read])
	assert.Equal(t, int32(1), srv.gets.Load(), "one ranged fetch per read")

	req := srv.lastRequest(http.MethodGet)
	require.NotNil(t, req)
	assert.Equal(t, "bytes=0-499", req.Header.Get("Range"))
	assert.Equal(t, "gzip, deflate", req.Header.Get("Accept-Encoding"))
	assert.Equal(t, "devfs-test", req.Header.Get("User-Agent"))
}

func TestHTTPStream_RangeShortReadAtEnd(t *testing.T) {
	t.Parallel()

	data := testData(1000)
	srv := rangeServer(t, data)
	s := openHTTPStream(t, srv, "/data.bin")

	pos, err := s.Seek(900, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(900), pos)

	buf := make([]byte, 500)
	n, err := s.Read(buf)
	require.NoError(t, err, "a short read is not an error")
	assert.Equal(t, 100, n)
	assert.Equal(t, data[900:], buf[:n])
	assert.Equal(t, int64(1000), s.Position())

	gets := srv.gets.Load()
	n, err = s.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, gets, srv.gets.Load(), "reads at the end must not hit the network")
}

func TestHTTPStream_RangeReadAll(t *testing.T) {
	t.Parallel()

	data := testData(10_000)
	srv := rangeServer(t, data)
	s := openHTTPStream(t, srv, "/data.bin")

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Greater(t, srv.gets.Load(), int32(1))
}

func TestHTTPStream_ReadZeroCount(t *testing.T) {
	t.Parallel()

	srv := rangeServer(t, testData(10))
	s := openHTTPStream(t, srv, "/data.bin")

	n, err := s.Read(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(0), s.Position())
	assert.Equal(t, int32(0), srv.gets.Load())
}

func TestHTTPStream_RangeIgnoredByServer(t *testing.T) {
	t.Parallel()

	data := testData(300)
	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data) // always 200 with the full body
	})
	s := openHTTPStream(t, srv, "/ignored")

	_, err := s.Seek(120, io.SeekStart)
	require.NoError(t, err)

	buf := make([]byte, 50)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, data[120:170], buf)
	assert.Equal(t, int64(170), s.Position())
}

func TestHTTPStream_RangeGzipEncoded(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat("compressible text ", 100))
	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			return
		}
		var start, end int
		_, err := fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &start, &end)
		assert.NoError(t, err)
		end = min(end, len(data)-1)

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write(data[start : end+1])
		_ = gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(buf.Bytes())
	})
	s := openHTTPStream(t, srv, "/text")

	_, err := s.Seek(18, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 400)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 400, n, "count must reflect decoded bytes")
	assert.Equal(t, data[18:418], buf)
}

func TestHTTPStream_RangeNotSatisfiable(t *testing.T) {
	t.Parallel()

	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if r.Method == http.MethodHead {
			return
		}
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	})
	s := openHTTPStream(t, srv, "/empty")

	n, err := s.Read(make([]byte, 10))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestHTTPStream_RangeReadStatusError(t *testing.T) {
	t.Parallel()

	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", "100")
		if r.Method == http.MethodHead {
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	s := openHTTPStream(t, srv, "/broken")

	n, err := s.Read(make([]byte, 10))
	assert.Equal(t, 0, n)
	var terr *devfs.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusInternalServerError, terr.StatusCode)
	assert.Equal(t, int64(0), s.Position(), "failed reads must not move the cursor")
}

// Probe method rejected, fallback allows only reads
func TestHTTPStream_RangeIncapable(t *testing.T) {
	t.Parallel()

	data := testData(250)
	srv := noHeadServer(t, "GET", data)
	s := openHTTPStream(t, srv, "/nohead")

	assert.True(t, s.CanRead())
	assert.False(t, s.CanWrite())
	assert.False(t, s.CanSeek())
	_, err := s.Length()
	assert.ErrorIs(t, err, devfs.ErrUnresolvedCapability)

	buf := make([]byte, 100)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, min(100, len(data)), n)
	assert.Equal(t, data[:100], buf)
	assert.Equal(t, int32(1), srv.gets.Load())

	req := srv.lastRequest(http.MethodGet)
	require.NotNil(t, req)
	assert.Empty(t, req.Header.Get("Range"), "full body fetch must not be ranged")

	rest, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data[100:], rest)
	assert.Equal(t, int32(1), srv.gets.Load(), "body must be fetched exactly once")

	length, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), length)

	// seeking back is served from the cache as well
	_, err = s.Seek(10, io.SeekStart)
	require.NoError(t, err)
	n, err = s.Read(buf[:5])
	require.NoError(t, err)
	assert.Equal(t, data[10:15], buf[:n])
	assert.Equal(t, int32(1), srv.gets.Load())
}

func TestHTTPStream_SeekEndBeforeFirstRead(t *testing.T) {
	t.Parallel()

	srv := noHeadServer(t, "GET", testData(50))
	s := openHTTPStream(t, srv, "/nohead")

	_, err := s.Seek(0, io.SeekEnd)
	assert.ErrorIs(t, err, devfs.ErrUnresolvedCapability)
	_, err = s.Seek(10, io.SeekStart)
	assert.ErrorIs(t, err, devfs.ErrUnresolvedCapability, "clamping needs a length too")
	assert.Equal(t, int32(0), srv.gets.Load())
}

func TestHTTPStream_BufferedDeflateEncoded(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat("deflated ", 64))
	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, _ = zw.Write(data)
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "deflate")
		_, _ = w.Write(buf.Bytes())
	})
	s := openHTTPStream(t, srv, "/deflate")

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	length, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), length, "length must be the decoded size")
}

func TestHTTPStream_EmptyEncodedBody(t *testing.T) {
	t.Parallel()

	for _, enc := range []string{"gzip", "deflate"} {
		t.Run(enc, func(t *testing.T) {
			t.Parallel()

			srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodHead {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				w.Header().Set("Content-Encoding", enc)
			})
			s := openHTTPStream(t, srv, "/empty")

			n, err := s.Read(make([]byte, 16))
			assert.Equal(t, 0, n)
			assert.ErrorIs(t, err, io.EOF)
			var terr *devfs.TransportError
			assert.False(t, errors.As(err, &terr), "an empty body is not a transport failure")

			length, err := s.Length()
			require.NoError(t, err)
			assert.Zero(t, length)
		})
	}
}

func TestHTTPStream_BufferedKnownLength(t *testing.T) {
	t.Parallel()

	data := testData(64)
	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data)
	})
	s := openHTTPStream(t, srv, "/norange")

	assert.False(t, s.CanSeek())
	n, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(64), n)

	pos, err := s.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(60), pos)

	buf := make([]byte, 10)
	read, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, data[60:], buf[:read])
	assert.Equal(t, int32(1), srv.gets.Load())
}

func TestHTTPStream_SeekClamps(t *testing.T) {
	t.Parallel()

	srv := rangeServer(t, testData(1000))
	s := openHTTPStream(t, srv, "/data.bin")

	tests := []struct {
		desc   string
		offset int64
		whence int
		want   int64
	}{
		{"negative from start clamps to zero", -5, io.SeekStart, 0},
		{"past end clamps to length", 1100, io.SeekStart, 1000},
		{"from start", 250, io.SeekStart, 250},
		{"from current", 50, io.SeekCurrent, 300},
		{"from current backwards past zero", -1000, io.SeekCurrent, 0},
		{"from end", -10, io.SeekEnd, 990},
		{"from end forward clamps", 10, io.SeekEnd, 1000},
	}
	for _, tt := range tests {
		pos, err := s.Seek(tt.offset, tt.whence)
		require.NoError(t, err, tt.desc)
		assert.Equal(t, tt.want, pos, tt.desc)
		assert.Equal(t, tt.want, s.Position(), tt.desc)
	}

	_, err := s.Seek(0, 42)
	assert.Error(t, err)
}

func TestHTTPStream_Write(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var bodies [][]byte
	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", "100")
			w.Header().Set("Allow", "GET, HEAD, PUT")
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, b)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		}
	})
	s := openHTTPStream(t, srv, "/upload")
	require.True(t, s.CanWrite())

	_, err := s.Seek(5, io.SeekStart)
	require.NoError(t, err)

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), s.Position(), "write must not advance the cursor")

	req := srv.lastRequest(http.MethodPut)
	require.NotNil(t, req)
	assert.Equal(t, "bytes 5-9/*", req.Header.Get("Content-Range"))
	assert.Equal(t, int64(5), req.ContentLength)

	_, err = s.Write([]byte("again"))
	require.NoError(t, err)
	req = srv.lastRequest(http.MethodPut)
	assert.Equal(t, "bytes 5-9/*", req.Header.Get("Content-Range"), "second write targets the same offset")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]byte{[]byte("hello"), []byte("again")}, bodies)
	assert.Equal(t, int32(2), srv.puts.Load())
}

func TestHTTPStream_WriteNotPermitted(t *testing.T) {
	t.Parallel()

	srv := noHeadServer(t, "GET, HEAD", testData(10))
	s := openHTTPStream(t, srv, "/readonly")

	n, err := s.Write([]byte("x"))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, devfs.ErrUnsupported)
	assert.Equal(t, int32(0), srv.puts.Load(), "refused writes must not reach the server")
}

func TestHTTPStream_WriteRejected(t *testing.T) {
	t.Parallel()

	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	s := openHTTPStream(t, srv, "/rejects")
	require.True(t, s.CanWrite())

	_, err := s.Write([]byte("data"))
	var terr *devfs.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusMethodNotAllowed, terr.StatusCode)
	assert.ErrorIs(t, err, devfs.ErrUnsupported)
}

func TestHTTPStream_SetLengthAndFlush(t *testing.T) {
	t.Parallel()

	srv := rangeServer(t, testData(10))
	s := openHTTPStream(t, srv, "/data.bin")

	assert.ErrorIs(t, s.SetLength(5), devfs.ErrUnsupported)
	assert.NoError(t, s.Flush())
}

func TestHTTPStream_Closed(t *testing.T) {
	t.Parallel()

	srv := rangeServer(t, testData(10))
	s := openHTTPStream(t, srv, "/data.bin")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	_, err := s.Read(make([]byte, 1))
	assert.ErrorIs(t, err, devfs.ErrClosed)
	_, err = s.Write([]byte("x"))
	assert.ErrorIs(t, err, devfs.ErrClosed)
	_, err = s.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, devfs.ErrClosed)
	_, err = s.Length()
	assert.ErrorIs(t, err, devfs.ErrClosed)
}

func TestHTTPStream_ProbeFollowsRedirects(t *testing.T) {
	t.Parallel()

	data := testData(20)
	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		http.ServeContent(w, r, "new", time.Time{}, bytes.NewReader(data))
	})
	s := openHTTPStream(t, srv, "/old")

	assert.Equal(t, srv.URL+"/new", s.URL())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestHTTPStream_ProbeFailures(t *testing.T) {
	t.Parallel()

	t.Run("status error is fatal", func(t *testing.T) {
		t.Parallel()
		srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		s, err := NewHTTPStream(srv.device(), srv.URL+"/missing")
		assert.Nil(t, s)
		var terr *devfs.TransportError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusNotFound, terr.StatusCode)
		assert.Equal(t, devfs.OpProbe, terr.Op)
	})

	t.Run("network error is fatal", func(t *testing.T) {
		t.Parallel()
		client := &mocks.MockHTTPClient{}
		netErr := errors.New("connection refused")
		client.On("Do", mock.Anything).Return(nil, netErr)

		d := NewHTTPDevice(WithHTTPClient(client))
		f, ok := d.GetFile("http://test.com/file")
		require.True(t, ok)

		stream, err := f.Open(devfs.ModeOpen, devfs.AccessRead, devfs.ShareRead)
		assert.Nil(t, stream)
		assert.ErrorIs(t, err, netErr)
		var terr *devfs.TransportError
		assert.ErrorAs(t, err, &terr)
		client.AssertNumberOfCalls(t, "Do", 1)
	})
}

func TestHTTPStream_ProbeRequest(t *testing.T) {
	t.Parallel()

	client := &mocks.MockHTTPClient{}
	client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == http.MethodHead && req.Body == nil
	})).Return(func(req *http.Request) *http.Response {
		return &http.Response{
			StatusCode:    http.StatusOK,
			Header:        http.Header{"Accept-Ranges": {"none"}, "Allow": {"PUT"}},
			ContentLength: 42,
			Body:          http.NoBody,
			Request:       req,
		}
	}, nil)

	s, err := NewHTTPStream(NewHTTPDevice(WithHTTPClient(client)), "http://test.com/file")
	require.NoError(t, err)
	assert.False(t, s.CanSeek())
	assert.False(t, s.CanRead())
	assert.True(t, s.CanWrite())
	n, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	client.AssertExpectations(t)
}

func TestHTTPFile_Length(t *testing.T) {
	t.Parallel()

	t.Run("probes on every call", func(t *testing.T) {
		t.Parallel()
		srv := rangeServer(t, testData(123))
		f, ok := srv.device().GetFile(srv.URL + "/data.bin")
		require.True(t, ok)

		for range 2 {
			n, err := f.Length()
			require.NoError(t, err)
			assert.Equal(t, int64(123), n)
		}
		assert.Equal(t, int32(2), srv.heads.Load())
	})

	t.Run("unresolved when HEAD is rejected", func(t *testing.T) {
		t.Parallel()
		srv := noHeadServer(t, "GET", testData(5))
		f, ok := srv.device().GetFile(srv.URL + "/nohead")
		require.True(t, ok)

		_, err := f.Length()
		assert.ErrorIs(t, err, devfs.ErrUnresolvedCapability)
	})
}

func TestHTTPFile_OpenAccessCheck(t *testing.T) {
	t.Parallel()

	srv := noHeadServer(t, "GET", testData(5))
	f, ok := srv.device().GetFile(srv.URL + "/readonly")
	require.True(t, ok)

	s, err := f.Open(devfs.ModeOpen, devfs.AccessReadWrite, devfs.ShareRead)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, devfs.ErrUnsupported)

	s, err = f.Open(devfs.ModeOpen, devfs.AccessRead, devfs.ShareRead)
	require.NoError(t, err)
	defer s.Close()
	_, ok = s.(devfs.Readable)
	assert.True(t, ok)
}

func TestAllowedMethods(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc      string
		header    http.Header
		wantRead  bool
		wantWrite bool
	}{
		{"absent defaults to capable", http.Header{}, true, true},
		{"empty list allows nothing", http.Header{"Allow": {""}}, false, false},
		{"read only", http.Header{"Allow": {"GET, HEAD"}}, true, false},
		{"write only", http.Header{"Allow": {"PUT"}}, false, true},
		{"multiple header lines", http.Header{"Allow": {"GET", "PUT, DELETE"}}, true, true},
		{"no substring matches", http.Header{"Allow": {"GETX, OUTPUT"}}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			r, w := allowedMethods(tt.header)
			assert.Equal(t, tt.wantRead, r)
			assert.Equal(t, tt.wantWrite, w)
		})
	}
}
