package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
)

// DefaultSpoolThreshold is the largest download held in memory. Larger or
// unsized downloads are spooled to a temporary file.
const DefaultSpoolThreshold = 8 << 20

// BufferKind says where a FileResponse keeps its bytes.
type BufferKind int

// Buffer kinds.
const (
	BufferMemory BufferKind = iota
	BufferSpooled
)

func (k BufferKind) String() string {
	if k == BufferSpooled {
		return "spooled"
	}
	return "memory"
}

// FileResponse is the result type of methods that download content. Use it
// as R in Declare to stream the response body instead of decoding it. The
// content is fully buffered when the call returns; Close releases it.
type FileResponse struct {
	contentType string
	size        int64
	chunkSize   int
	kind        BufferKind

	mem  *bytes.Reader
	file *os.File
}

// NewMemoryFile wraps data in a memory-buffered FileResponse.
func NewMemoryFile(data []byte, contentType string) *FileResponse {
	return &FileResponse{
		contentType: contentType,
		size:        int64(len(data)),
		chunkSize:   DefaultChunkSize,
		kind:        BufferMemory,
		mem:         bytes.NewReader(data),
	}
}

// readFileResponse copies body into a new FileResponse chunk by chunk,
// checking ctx between chunks. The buffer kind is chosen up front from
// contentLength: a known length at or under threshold stays in memory.
func readFileResponse(ctx context.Context, body io.Reader, contentLength int64, contentType string, chunkSize int, threshold int64) (*FileResponse, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	fr := &FileResponse{contentType: contentType, chunkSize: chunkSize}

	var (
		w   io.Writer
		buf bytes.Buffer
	)
	if contentLength >= 0 && contentLength <= threshold {
		fr.kind = BufferMemory
		buf.Grow(int(contentLength))
		w = &buf
	} else {
		f, err := os.CreateTemp("", "apiclient-download-*")
		if err != nil {
			return nil, fmt.Errorf("spool download: %w", err)
		}
		fr.kind = BufferSpooled
		fr.file = f
		w = f
	}

	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			_ = fr.Close()
			return nil, err
		}
		n, err := body.Read(chunk)
		if n > 0 {
			if _, werr := w.Write(chunk[:n]); werr != nil {
				_ = fr.Close()
				return nil, fmt.Errorf("buffer download: %w", werr)
			}
			fr.size += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = fr.Close()
			return nil, fmt.Errorf("read download: %w", err)
		}
	}

	if fr.kind == BufferMemory {
		fr.mem = bytes.NewReader(buf.Bytes())
		return fr, nil
	}
	if _, err := fr.file.Seek(0, io.SeekStart); err != nil {
		_ = fr.Close()
		return nil, fmt.Errorf("rewind download: %w", err)
	}
	return fr, nil
}

// ContentType returns the response Content-Type.
func (f *FileResponse) ContentType() string { return f.contentType }

// Size returns the number of bytes downloaded.
func (f *FileResponse) Size() int64 { return f.size }

// Buffer reports whether the content is held in memory or spooled to disk.
func (f *FileResponse) Buffer() BufferKind { return f.kind }

// Read implements io.Reader.
func (f *FileResponse) Read(p []byte) (int, error) {
	if f.file != nil {
		return f.file.Read(p)
	}
	if f.mem != nil {
		return f.mem.Read(p)
	}
	return 0, os.ErrClosed
}

// Seek implements io.Seeker.
func (f *FileResponse) Seek(offset int64, whence int) (int64, error) {
	if f.file != nil {
		return f.file.Seek(offset, whence)
	}
	if f.mem != nil {
		return f.mem.Seek(offset, whence)
	}
	return 0, os.ErrClosed
}

// Chunks yields the remaining content in pieces of the method chunk size.
func (f *FileResponse) Chunks() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, f.chunkSize)
		for {
			n, err := f.Read(buf)
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

// Close releases the buffer and removes any spool file.
func (f *FileResponse) Close() error {
	f.mem = nil
	if f.file == nil {
		return nil
	}
	name := f.file.Name()
	err := f.file.Close()
	f.file = nil
	return errors.Join(err, os.Remove(name))
}
