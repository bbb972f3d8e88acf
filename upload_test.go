package apiclient_test

import (
	"bytes"
	"context"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apiclient"
	"github.com/bjaus/apiclient/apitest"
)

func collect(t *testing.T, seq iter.Seq2[[]byte, error]) ([][]byte, error) {
	t.Helper()
	var chunks [][]byte
	for chunk, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func TestContentSources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600))

	fromPath, err := apiclient.BufferedFileFromPath(path, "")
	require.NoError(t, err)

	tests := map[string]struct {
		src        apiclient.ContentSource
		wantName   string
		wantChunks []string
	}{
		"buffered": {
			src:        &apiclient.BufferedFile{Data: []byte("abcdefg"), Name: "x.bin", ChunkSize: 3},
			wantName:   "x.bin",
			wantChunks: []string{"abc", "def", "g"},
		},
		"buffered default chunk": {
			src:        apiclient.NewBufferedFile([]byte("abcdefg"), "y.bin"),
			wantName:   "y.bin",
			wantChunks: []string{"abcdefg"},
		},
		"buffered from path": {
			src:        fromPath,
			wantName:   "report.csv",
			wantChunks: []string{"a,b\n1,2\n"},
		},
		"fs file": {
			src:        &apiclient.FSFile{Path: path, ChunkSize: 4},
			wantName:   "report.csv",
			wantChunks: []string{"a,b\n", "1,2\n"},
		},
		"fs file renamed": {
			src:        &apiclient.FSFile{Path: path, Name: "upload.csv"},
			wantName:   "upload.csv",
			wantChunks: []string{"a,b\n1,2\n"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.wantName, tc.src.Filename())

			chunks, err := collect(t, tc.src.Read(context.Background(), nil))
			require.NoError(t, err)
			var got []string
			for _, c := range chunks {
				got = append(got, string(c))
			}
			assert.Equal(t, tc.wantChunks, got)
		})
	}
}

func TestFSFile_missing(t *testing.T) {
	t.Parallel()

	src := apiclient.NewFSFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Equal(t, "nope.txt", src.Filename())

	_, err := collect(t, src.Read(context.Background(), nil))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBufferedFileFromPath_missing(t *testing.T) {
	t.Parallel()

	_, err := apiclient.BufferedFileFromPath(filepath.Join(t.TempDir(), "nope"), "x")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBufferedFile_cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collect(t, apiclient.NewBufferedFile([]byte("x"), "x").Read(ctx, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestURLFile(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("z"), 10)

	t.Run("uses the uploading client", func(t *testing.T) {
		t.Parallel()

		c, tr := apitest.NewClient(t, "https://api.example.com")
		tr.ServeStream("https://cdn.example.com/z.bin", content)

		src := &apiclient.URLFile{URL: "https://cdn.example.com/z.bin", Name: "z.bin", ChunkSize: 4}
		chunks, err := collect(t, src.Read(context.Background(), c))
		require.NoError(t, err)
		assert.Len(t, chunks, 3)
		assert.Equal(t, content, bytes.Join(chunks, nil))
	})

	t.Run("own client wins", func(t *testing.T) {
		t.Parallel()

		own, tr := apitest.NewClient(t, "https://cdn.example.com")
		tr.ServeStream("https://cdn.example.com/z.bin", content)
		other, _ := apitest.NewClient(t, "https://api.example.com")

		src := apiclient.NewURLFile("https://cdn.example.com/z.bin", "z.bin")
		src.Client = own
		chunks, err := collect(t, src.Read(context.Background(), other))
		require.NoError(t, err)
		assert.Equal(t, content, bytes.Join(chunks, nil))
	})

	t.Run("no client", func(t *testing.T) {
		t.Parallel()

		_, err := collect(t, apiclient.NewURLFile("https://cdn.example.com/z.bin", "z.bin").Read(context.Background(), nil))
		assert.ErrorIs(t, err, apiclient.ErrConfiguration)
	})

	t.Run("over http", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("GET /files/z.bin", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Token") != "t" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_, _ = w.Write(content)
		})
		c := apitest.NewServer(t, mux)

		src := &apiclient.URLFile{
			URL:     c.BaseURL() + "/files/z.bin",
			Headers: http.Header{"X-Token": {"t"}},
			Name:    "z.bin",
		}
		chunks, err := collect(t, src.Read(context.Background(), c))
		require.NoError(t, err)
		assert.Equal(t, content, bytes.Join(chunks, nil))

		src.Headers = nil
		_, err = collect(t, src.Read(context.Background(), c))
		assert.ErrorIs(t, err, apiclient.ErrTransport)
	})
}
