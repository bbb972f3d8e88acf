package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ContentSource is a file to upload. Read yields its content in chunks.
// Parameters holding a ContentSource are always sent as multipart files.
type ContentSource interface {
	Filename() string
	Read(ctx context.Context, c *Client) iter.Seq2[[]byte, error]
}

// BufferedFile uploads bytes held in memory.
type BufferedFile struct {
	Data      []byte
	Name      string
	ChunkSize int
}

// NewBufferedFile returns a BufferedFile for data.
func NewBufferedFile(data []byte, filename string) *BufferedFile {
	return &BufferedFile{Data: data, Name: filename}
}

// BufferedFileFromPath reads the file at path into memory. The filename
// defaults to the base name of path.
func BufferedFileFromPath(path, filename string) (*BufferedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if filename == "" {
		filename = filepath.Base(path)
	}
	return &BufferedFile{Data: data, Name: filename}, nil
}

// Filename returns the upload filename.
func (f *BufferedFile) Filename() string { return f.Name }

// Read yields the data in chunks.
func (f *BufferedFile) Read(ctx context.Context, _ *Client) iter.Seq2[[]byte, error] {
	return readChunks(ctx, bytes.NewReader(f.Data), chunkSizeOr(f.ChunkSize))
}

// FSFile uploads a file from disk, reading it lazily.
type FSFile struct {
	Path      string
	Name      string
	ChunkSize int
}

// NewFSFile returns an FSFile for path named after its base name.
func NewFSFile(path string) *FSFile {
	return &FSFile{Path: path, Name: filepath.Base(path)}
}

// Filename returns the upload filename.
func (f *FSFile) Filename() string {
	if f.Name == "" {
		return filepath.Base(f.Path)
	}
	return f.Name
}

// Read opens the file and yields it in chunks.
func (f *FSFile) Read(ctx context.Context, _ *Client) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		file, err := os.Open(f.Path)
		if err != nil {
			yield(nil, fmt.Errorf("open %s: %w", f.Path, err))
			return
		}
		defer file.Close()
		for chunk, err := range readChunks(ctx, file, chunkSizeOr(f.ChunkSize)) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// URLFile uploads content fetched from a URL through a client transport.
type URLFile struct {
	URL       string
	Headers   http.Header
	Name      string
	ChunkSize int
	Timeout   time.Duration
	// Client fetches the content. The uploading client is used when nil.
	Client *Client
}

// NewURLFile returns a URLFile for url.
func NewURLFile(url, filename string) *URLFile {
	return &URLFile{URL: url, Name: filename}
}

// Filename returns the upload filename.
func (f *URLFile) Filename() string { return f.Name }

// Read streams the remote content.
func (f *URLFile) Read(ctx context.Context, c *Client) iter.Seq2[[]byte, error] {
	if f.Client != nil {
		c = f.Client
	}
	return func(yield func([]byte, error) bool) {
		if c == nil {
			yield(nil, fmt.Errorf("%w: url file %s has no client", ErrConfiguration, f.URL))
			return
		}
		timeout := f.Timeout
		if timeout <= 0 {
			timeout = c.timeout
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		for chunk, err := range c.transport.Stream(ctx, f.URL, f.Headers, chunkSizeOr(f.ChunkSize)) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

func chunkSizeOr(n int) int {
	if n <= 0 {
		return DefaultChunkSize
	}
	return n
}

// readChunks yields r in fresh slices of at most size bytes.
func readChunks(ctx context.Context, r io.Reader, size int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			n, err := r.Read(buf)
			if n > 0 && !yield(bytes.Clone(buf[:n]), nil) {
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
