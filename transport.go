package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Transport sends wire requests. Implementations must be safe for
// concurrent use.
type Transport interface {
	// Dispatch sends req and returns the response with its body decoded.
	Dispatch(ctx context.Context, c *Client, req *Request) (*Response, error)
	// Stream fetches url with GET and yields the body in chunks.
	Stream(ctx context.Context, url string, headers http.Header, chunkSize int) iter.Seq2[[]byte, error]
	// Close releases pooled connections.
	Close(ctx context.Context) error
}

// Transport defaults.
const (
	DefaultMaxConnsPerHost = 100
	DefaultCloseGrace      = 250 * time.Millisecond
)

// HTTPTransport is the default Transport, built on net/http.
type HTTPTransport struct {
	base           *http.Transport
	client         *http.Client
	middleware     []Middleware
	closeGrace     time.Duration
	spoolThreshold int64
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithMaxConnsPerHost caps simultaneous connections per host.
func WithMaxConnsPerHost(n int) TransportOption {
	return func(t *HTTPTransport) {
		t.base.MaxConnsPerHost = n
		t.base.MaxIdleConnsPerHost = n
	}
}

// WithCloseGrace sets how long Close waits for connections to wind down.
func WithCloseGrace(d time.Duration) TransportOption {
	return func(t *HTTPTransport) { t.closeGrace = d }
}

// WithSpoolThreshold sets the largest download kept in memory.
func WithSpoolThreshold(n int64) TransportOption {
	return func(t *HTTPTransport) { t.spoolThreshold = n }
}

// WithTransportMiddleware wraps the round tripper. The first middleware is
// the outermost.
func WithTransportMiddleware(mw ...Middleware) TransportOption {
	return func(t *HTTPTransport) { t.middleware = append(t.middleware, mw...) }
}

// WithProxy routes requests through the given proxy URL.
func WithProxy(proxy *url.URL) TransportOption {
	return func(t *HTTPTransport) { t.base.Proxy = http.ProxyURL(proxy) }
}

// NewHTTPTransport returns a transport with a pooled connection ceiling of
// DefaultMaxConnsPerHost.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.MaxConnsPerHost = DefaultMaxConnsPerHost
	base.MaxIdleConnsPerHost = DefaultMaxConnsPerHost

	t := &HTTPTransport{
		base:           base,
		closeGrace:     DefaultCloseGrace,
		spoolThreshold: DefaultSpoolThreshold,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.client = &http.Client{Transport: chain(base, t.middleware)}
	return t
}

// Dispatch implements Transport.
func (t *HTTPTransport) Dispatch(ctx context.Context, c *Client, req *Request) (*Response, error) {
	ser := c.serializer

	body, contentType, err := encodeRequestBody(ctx, c, req)
	if err != nil {
		return nil, err
	}

	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", ErrTransport, err)
	}
	if len(req.Query) > 0 {
		q := target.Query()
		for _, name := range slices.Sorted(maps.Keys(req.Query)) {
			q.Set(name, formatValue(req.Query[name]))
		}
		target.RawQuery = q.Encode()
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	hreq.Header = req.HeaderValues()
	if contentType != "" && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	if hreq.Header.Get("Accept") == "" && !req.Stream {
		hreq.Header.Set("Accept", ser.ContentType())
	}

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode, Headers: resp.Header}
	if req.Stream && resp.StatusCode < 400 {
		fr, err := readFileResponse(ctx, resp.Body, resp.ContentLength, resp.Header.Get("Content-Type"), req.ChunkSize, t.spoolThreshold)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		out.Body = fr
		return out, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	out.Body = decodeResponseBody(ser, resp.Header.Get("Content-Type"), data)
	return out, nil
}

// Stream implements Transport.
func (t *HTTPTransport) Stream(ctx context.Context, target string, headers http.Header, chunkSize int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			yield(nil, fmt.Errorf("%w: %w", ErrTransport, err))
			return
		}
		if headers != nil {
			hreq.Header = headers.Clone()
		}
		resp, err := t.client.Do(hreq)
		if err != nil {
			yield(nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, target, err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			yield(nil, fmt.Errorf("%w: GET %s: status %d", ErrTransport, target, resp.StatusCode))
			return
		}
		for chunk, err := range readChunks(ctx, resp.Body, chunkSizeOr(chunkSize)) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// Close drops idle connections, then waits the close grace period so
// in-flight TLS shutdowns can finish.
func (t *HTTPTransport) Close(ctx context.Context) error {
	t.base.CloseIdleConnections()
	if t.closeGrace <= 0 {
		return nil
	}
	timer := time.NewTimer(t.closeGrace)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// encodeRequestBody picks the body encoding: raw text or bytes as-is,
// multipart when files are present, the serializer otherwise.
func encodeRequestBody(ctx context.Context, c *Client, req *Request) (io.Reader, string, error) {
	switch b := req.Body.(type) {
	case string:
		return strings.NewReader(b), "text/plain; charset=utf-8", nil
	case []byte:
		return bytes.NewReader(b), "application/octet-stream", nil
	}

	if len(req.Files) > 0 {
		fields, _ := req.Body.(map[string]any)
		r, ct := multipartBody(ctx, c, fields, req.Files)
		return r, ct, nil
	}

	if req.Body == nil {
		return nil, "", nil
	}
	if m, ok := req.Body.(map[string]any); ok && len(m) == 0 {
		return nil, "", nil
	}
	data, err := c.serializer.Encode(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("encode body: %w", err)
	}
	return bytes.NewReader(data), c.serializer.ContentType(), nil
}

// multipartBody streams a multipart form through a pipe. Fields are written
// first, then each file chunk by chunk.
func multipartBody(ctx context.Context, c *Client, fields map[string]any, files map[string]ContentSource) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeMultipart(ctx, c, mw, fields, files)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

func writeMultipart(ctx context.Context, c *Client, mw *multipart.Writer, fields map[string]any, files map[string]ContentSource) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		value := fields[name]
		text := formatValue(value)
		if value != nil && !isPrimitive(value) {
			enc, err := c.serializer.Encode(value)
			if err != nil {
				return fmt.Errorf("encode form field %q: %w", name, err)
			}
			text = string(enc)
		}
		if err := mw.WriteField(name, text); err != nil {
			return err
		}
	}

	for _, name := range slices.Sorted(maps.Keys(files)) {
		if err := writeFilePart(ctx, c, mw, name, files[name]); err != nil {
			return fmt.Errorf("upload %q: %w", name, err)
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// writeFilePart writes one file part. Its Content-Type is detected from
// the first chunk.
func writeFilePart(ctx context.Context, c *Client, mw *multipart.Writer, name string, src ContentSource) error {
	next, stop := iter.Pull2(src.Read(ctx, c))
	defer stop()

	first, err, ok := next()
	if ok && err != nil {
		return err
	}

	filename := src.Filename()
	if filename == "" {
		filename = name
	}
	contentType := "application/octet-stream"
	if len(first) > 0 {
		contentType = mimetype.Detect(first).String()
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := part.Write(first); err != nil {
		return err
	}
	for {
		chunk, err, ok := next()
		if !ok {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := part.Write(chunk); err != nil {
			return err
		}
	}
}

// decodeResponseBody decodes by Content-Type: the serializer's media type
// to a structured value, form-urlencoded to url.Values, anything else to
// text. Empty bodies decode to nil. JSON numbers decode to json.Number.
func decodeResponseBody(ser Serializer, contentType string, data []byte) any {
	if len(data) == 0 {
		return nil
	}
	if matchesMediaType(contentType, ser) {
		var v any
		if err := exactNumbers(ser).Decode(data, &v); err == nil {
			return v
		}
		return string(data)
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/x-www-form-urlencoded" {
		if values, err := url.ParseQuery(string(data)); err == nil {
			return values
		}
	}
	return string(data)
}

// isTimeout reports whether err came from a deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
