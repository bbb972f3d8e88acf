// Package apitest provides test helpers for clients built with apiclient.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bjaus/apiclient"
)

// Transport is an apiclient.Transport that records requests and replies
// with canned responses. Queued responses are used in order; after they run
// out, the handler set with RespondWith answers, or a 404.
type Transport struct {
	mu       sync.Mutex
	requests []*apiclient.Request
	queue    []*apiclient.Response
	handler  func(*apiclient.Request) (*apiclient.Response, error)
	streams  map[string][]byte
	closed   bool
}

// NewTransport returns an empty fake transport.
func NewTransport() *Transport {
	return &Transport{streams: make(map[string][]byte)}
}

// Respond queues a response. body is normalized through JSON, numbers as
// json.Number, so the client sees the same shapes a real transport
// produces; strings and url.Values are kept as-is.
func (t *Transport) Respond(status int, body any) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, &apiclient.Response{
		StatusCode: status,
		Headers:    http.Header{},
		Body:       normalize(body),
	})
	return t
}

// RespondWith sets the handler used when the queue is empty.
func (t *Transport) RespondWith(fn func(*apiclient.Request) (*apiclient.Response, error)) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
	return t
}

// ServeStream registers content returned by Stream for url.
func (t *Transport) ServeStream(url string, content []byte) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streams[url] = content
	return t
}

// Dispatch implements apiclient.Transport. A []byte body answering a
// streaming request becomes a FileResponse.
func (t *Transport) Dispatch(ctx context.Context, _ *apiclient.Client, req *apiclient.Request) (*apiclient.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.requests = append(t.requests, req)
	var resp *apiclient.Response
	if len(t.queue) > 0 {
		resp, t.queue = t.queue[0], t.queue[1:]
	}
	handler := t.handler
	t.mu.Unlock()

	if resp == nil && handler != nil {
		var err error
		if resp, err = handler(req); err != nil {
			return nil, err
		}
	}
	if resp == nil {
		resp = &apiclient.Response{StatusCode: http.StatusNotFound, Headers: http.Header{}}
	}

	if data, ok := resp.Body.([]byte); ok && req.Stream && resp.StatusCode < 400 {
		out := *resp
		out.Body = apiclient.NewMemoryFile(data, resp.Headers.Get("Content-Type"))
		return &out, nil
	}
	return resp, nil
}

// Stream implements apiclient.Transport using content from ServeStream.
func (t *Transport) Stream(_ context.Context, url string, _ http.Header, chunkSize int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		t.mu.Lock()
		content, ok := t.streams[url]
		t.mu.Unlock()
		if !ok {
			yield(nil, fmt.Errorf("%w: no stream for %s", apiclient.ErrTransport, url))
			return
		}
		if chunkSize <= 0 {
			chunkSize = apiclient.DefaultChunkSize
		}
		for len(content) > 0 {
			n := min(chunkSize, len(content))
			if !yield(content[:n], nil) {
				return
			}
			content = content[n:]
		}
	}
}

// Close implements apiclient.Transport.
func (t *Transport) Close(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Requests returns every dispatched request in order.
func (t *Transport) Requests() []*apiclient.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*apiclient.Request(nil), t.requests...)
}

// LastRequest returns the most recent request, or nil.
func (t *Transport) LastRequest() *apiclient.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return nil
	}
	return t.requests[len(t.requests)-1]
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// NewClient returns a client backed by a fresh fake transport.
func NewClient(t testing.TB, baseURL string, opts ...apiclient.Option) (*apiclient.Client, *Transport) {
	t.Helper()
	tr := NewTransport()
	c, err := apiclient.New(baseURL, append(opts, apiclient.WithTransport(tr))...)
	if err != nil {
		t.Fatalf("apitest: new client: %v", err)
	}
	return c, tr
}

// NewServer starts an httptest server for h and returns a client pointed
// at it using the default transport. Both are closed at cleanup.
func NewServer(t testing.TB, h http.Handler, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	c, err := apiclient.New(srv.URL, append(opts, apiclient.WithTransportOptions(apiclient.WithCloseGrace(0)))...)
	if err != nil {
		srv.Close()
		t.Fatalf("apitest: new client: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(context.Background()); err != nil {
			t.Errorf("apitest: close client: %v", err)
		}
		srv.Close()
	})
	return c
}

// JSON returns a handler that writes v as JSON with the given status.
func JSON(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		//nolint:errcheck,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(v)
	}
}

func normalize(body any) any {
	switch body.(type) {
	case nil, string, []byte:
		return body
	}
	if _, ok := body.(interface{ Encode() string }); ok {
		return body
	}
	data, err := json.Marshal(body)
	if err != nil {
		return body
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return body
	}
	return out
}
