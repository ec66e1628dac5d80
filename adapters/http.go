package adapters

import (
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/internal/util"
)

const (
	headerAllow          = "Allow"
	headerAcceptRanges   = "Accept-Ranges"
	headerAcceptEncoding = "Accept-Encoding"
	headerRange          = "Range"
	headerContentRange   = "Content-Range"
	headerUserAgent      = "User-Agent"

	// acceptEncoding is negotiated on every read so servers may compress bodies
	acceptEncoding = "gzip, deflate"
	rangeUnitBytes = "bytes"
)

// HTTPClient is the subset of [http.Client] used by the HTTP device
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPOption configures an [HTTPDevice]
type HTTPOption func(*HTTPDevice)

// WithHTTPClient sets the client used for every request (Default http.DefaultClient)
func WithHTTPClient(c HTTPClient) HTTPOption {
	return func(d *HTTPDevice) {
		if c != nil {
			d.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) HTTPOption {
	return func(d *HTTPDevice) {
		d.userAgent = ua
	}
}

// HTTPDevice implements [devfs.Device] for absolute http and https URIs.
// It keeps no state beyond its options, so two devices built with the same
// options are interchangeable.
type HTTPDevice struct {
	client    HTTPClient
	userAgent string
}

// NewHTTPDevice creates an HTTP device
func NewHTTPDevice(opts ...HTTPOption) *HTTPDevice {
	d := &HTTPDevice{client: http.DefaultClient}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// parseHTTPURL accepts only absolute URIs with an http or https scheme and a host
func parseHTTPURL(p string) (*url.URL, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil, false
	}
	u, err := url.Parse(p)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, false
	}
	switch u.Scheme {
	case "http", "https":
		return u, true
	default:
		return nil, false
	}
}

func (d *HTTPDevice) Name() string {
	return "http"
}

func (d *HTTPDevice) Parent() (devfs.Directory, bool) {
	return nil, false
}

func (d *HTTPDevice) QueryPath(p string) (devfs.Device, bool) {
	if _, ok := parseHTTPURL(p); ok {
		return d, true
	}
	return nil, false
}

func (d *HTTPDevice) GetFile(p string) (devfs.File, bool) {
	u, ok := parseHTTPURL(p)
	if !ok {
		return nil, false
	}
	return &HTTPFile{device: d, url: u}, true
}

// GetDirectory is unsupported; plain HTTP has no directory concept
func (d *HTTPDevice) GetDirectory(p string) (devfs.Directory, bool, error) {
	return nil, false, &devfs.PathError{Op: devfs.OpList, Path: p, Err: devfs.ErrUnsupported}
}

func (d *HTTPDevice) Files() ([]devfs.File, error) {
	return nil, &devfs.PathError{Op: devfs.OpList, Err: devfs.ErrUnsupported}
}

func (d *HTTPDevice) Directories() ([]devfs.Directory, error) {
	return nil, &devfs.PathError{Op: devfs.OpList, Err: devfs.ErrUnsupported}
}

func (d *HTTPDevice) RemoveFile(p string) error {
	return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: devfs.ErrUnsupported}
}

func (d *HTTPDevice) RemoveDirectory(p string) error {
	return &devfs.PathError{Op: devfs.OpRemove, Path: p, Err: devfs.ErrUnsupported}
}

func (d *HTTPDevice) newRequest(method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, err
	}
	if d.userAgent != "" {
		req.Header.Set(headerUserAgent, d.userAgent)
	}
	return req, nil
}

// probeResult is the capability profile discovered by a zero-body request
type probeResult struct {
	url      string // final URL after redirects
	length   int64  // -1 when unresolved
	canRead  bool
	canWrite bool
	canSeek  bool
}

// probe issues a HEAD request against target. A 405 answer is not fatal: its
// headers become the capability source and the length stays unresolved.
func (d *HTTPDevice) probe(target string) (*probeResult, error) {
	logger := util.GetLogger("HTTPDevice.probe")

	req, err := d.newRequest(http.MethodHead, target, nil)
	if err != nil {
		return nil, devfs.NewTransportError(devfs.OpProbe, target, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		logger.Debug().Err(err).Str("url", target).Msg("Probe request failed")
		return nil, devfs.NewTransportError(devfs.OpProbe, target, err)
	}
	defer drainClose(resp.Body)

	res := &probeResult{url: target, length: -1}
	if resp.Request != nil && resp.Request.URL != nil {
		res.url = resp.Request.URL.String()
	}

	switch {
	case isSuccess(resp.StatusCode):
		res.length = resp.ContentLength
		res.canSeek = hasToken(resp.Header.Values(headerAcceptRanges), rangeUnitBytes)
	case resp.StatusCode == http.StatusMethodNotAllowed:
		logger.Debug().Str("url", target).Msg("HEAD not allowed; using rejection headers")
	default:
		return nil, devfs.NewStatusError(devfs.OpProbe, target, resp.StatusCode)
	}
	res.canRead, res.canWrite = allowedMethods(resp.Header)

	logger.Debug().
		Str("url", res.url).
		Int("status", resp.StatusCode).
		Int64("length", res.length).
		Bool("canRead", res.canRead).
		Bool("canWrite", res.canWrite).
		Bool("canSeek", res.canSeek).
		Msg("Probe complete")
	return res, nil
}

// allowedMethods derives read/write support from the Allow header. Servers that
// omit the header are assumed to allow both.
func allowedMethods(h http.Header) (canRead, canWrite bool) {
	allow := h.Values(headerAllow)
	if len(allow) == 0 {
		return true, true
	}
	return hasToken(allow, http.MethodGet), hasToken(allow, http.MethodPut)
}

// hasToken reports whether any comma separated element of values equals token
func hasToken(values []string, token string) bool {
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// drainClose discards a bounded amount of the body so the connection can be reused
func drainClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, body, 4096)
	_ = body.Close()
}

// HTTPFile is a [devfs.File] bound to a single URL. Creating one performs no I/O.
type HTTPFile struct {
	device *HTTPDevice
	url    *url.URL
}

// Name returns the last path segment of the URL, or the host for bare URLs
func (f *HTTPFile) Name() string {
	name := path.Base(f.url.Path)
	if name == "/" || name == "." || name == "" {
		return f.url.Host
	}
	return name
}

// URL returns the target URL
func (f *HTTPFile) URL() string {
	return f.url.String()
}

func (f *HTTPFile) Device() devfs.Device {
	return f.device
}

func (f *HTTPFile) Parent() (devfs.Directory, bool) {
	return nil, false
}

// Length probes the resource on every call. It reports
// [devfs.ErrUnresolvedCapability] when the server rejects the probe method.
func (f *HTTPFile) Length() (int64, error) {
	res, err := f.device.probe(f.URL())
	if err != nil {
		return 0, err
	}
	if res.length < 0 {
		return 0, &devfs.PathError{Op: devfs.OpProbe, Path: f.URL(), Err: devfs.ErrUnresolvedCapability}
	}
	return res.length, nil
}

func (f *HTTPFile) Location() devfs.Location {
	return devfs.LocationHTTP
}

func (f *HTTPFile) Compressed() bool {
	return false
}

// Open probes the resource and returns an [*HTTPStream]. Mode and share are
// meaningless for remote resources and are ignored. The open fails if the
// requested access is not permitted by the probed capabilities.
func (f *HTTPFile) Open(mode devfs.Mode, access devfs.Access, share devfs.Share) (devfs.Stream, error) {
	s, err := NewHTTPStream(f.device, f.URL())
	if err != nil {
		return nil, err
	}
	if (access.CanRead() && !s.CanRead()) || (access.CanWrite() && !s.CanWrite()) {
		_ = s.Close()
		return nil, &devfs.PathError{Op: devfs.OpOpen, Path: f.URL(), Err: devfs.ErrUnsupported}
	}
	return s, nil
}

var (
	_ devfs.Device = (*HTTPDevice)(nil)
	_ devfs.File   = (*HTTPFile)(nil)
)
