package collyfetcher

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodingTransport undoes br, gzip and deflate Content-Encoding so bodies
// reach colly (and storage) as plain bytes. It is needed because an explicit
// Accept-Encoding header disables the standard transport's own gzip handling.
type decodingTransport struct {
	base http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err //nolint:wrapcheck // surfaced unchanged to the http client.
	}
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if encoding == "" || encoding == "identity" || resp.Body == nil {
		return resp, nil
	}

	var decoded io.Reader
	closers := []io.Closer{resp.Body}
	switch encoding {
	case "br":
		decoded = brotli.NewReader(resp.Body)
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		switch {
		case errors.Is(err, io.EOF):
			decoded = strings.NewReader("")
		case err != nil:
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		default:
			decoded = gz
			closers = append(closers, gz)
		}
	case "deflate":
		rc, err := newDeflateReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("deflate decode: %w", err)
		}
		decoded = rc
		closers = append(closers, rc)
	default:
		return resp, nil
	}

	resp.Body = &decodedBody{Reader: decoded, closers: closers}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// newDeflateReader accepts both zlib-wrapped and raw deflate streams; servers disagree.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("peek deflate header: %w", err)
	}
	if len(head) == 2 && head[0]&0x0f == 8 && (uint16(head[0])<<8|uint16(head[1]))%31 == 0 {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zlib reader: %w", err)
		}
		return zr, nil
	}
	return flate.NewReader(br), nil
}

type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (b *decodedBody) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
