package apiclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrResponseTooLarge is returned when a response body exceeds the limit
// set by ResponseLimit.
var ErrResponseTooLarge = errors.New("response body too large")

// ResponseLimit returns middleware that caps response bodies at maxBytes.
// A declared Content-Length over the cap fails immediately; otherwise the
// read that crosses the cap fails.
func ResponseLimit(maxBytes int64) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(r)
			if err != nil {
				return resp, err
			}
			if resp.ContentLength > maxBytes {
				_ = resp.Body.Close()
				return nil, fmt.Errorf("%w: %d bytes declared, limit %d", ErrResponseTooLarge, resp.ContentLength, maxBytes)
			}
			resp.Body = &limitedBody{ReadCloser: resp.Body, limit: maxBytes, remaining: maxBytes}
			return resp, nil
		})
	}
}

type limitedBody struct {
	io.ReadCloser
	limit     int64
	remaining int64
	err       error
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.ReadCloser.Read(p)
	if int64(n) <= l.remaining {
		l.remaining -= int64(n)
		return n, err
	}
	n = int(l.remaining)
	l.remaining = 0
	l.err = fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, l.limit)
	return n, l.err
}
