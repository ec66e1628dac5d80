package adapters

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// decodeBody wraps resp.Body with a decoder for its Content-Encoding. encoded
// reports whether a decoder was applied, in which case the declared content
// length no longer matches the bytes the caller sees.
//
// Closing the returned reader does not close resp.Body. An encoded body with
// no bytes at all decodes to an empty body.
func decodeBody(resp *http.Response) (body io.ReadCloser, encoded bool, err error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return io.NopCloser(resp.Body), false, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if errors.Is(err, io.EOF) {
			return http.NoBody, true, nil
		}
		if err != nil {
			return nil, true, fmt.Errorf("gzip body: %w", err)
		}
		return gz, true, nil
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if errors.Is(err, io.EOF) {
			return http.NoBody, true, nil
		}
		if err != nil {
			return nil, true, fmt.Errorf("deflate body: %w", err)
		}
		return zr, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported content encoding %q", enc)
	}
}
