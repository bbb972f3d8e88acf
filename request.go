package apiclient

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultChunkSize is the read size for streamed downloads and uploads.
const DefaultChunkSize = 64 * 1024

// Request is the wire request built from a method invocation. It is not
// modified after it is built.
type Request struct {
	Method    string
	URL       string
	Headers   map[string]any
	Query     map[string]any
	Body      any
	Files     map[string]ContentSource
	Stream    bool
	ChunkSize int
	DataKey   []string
}

// MarshalYAML renders the request for detailed errors. Files are listed by
// filename only.
func (r *Request) MarshalYAML() (any, error) {
	out := map[string]any{
		"method": r.Method,
		"url":    r.URL,
	}
	if len(r.Headers) > 0 {
		out["headers"] = r.Headers
	}
	if len(r.Query) > 0 {
		out["query"] = r.Query
	}
	if r.Body != nil {
		if b, ok := r.Body.([]byte); ok {
			out["body"] = string(b)
		} else {
			out["body"] = yamlNumbers(r.Body)
		}
	}
	if len(r.Files) > 0 {
		files := make(map[string]string, len(r.Files))
		for name, src := range r.Files {
			files[name] = src.Filename()
		}
		out["files"] = files
	}
	if len(r.DataKey) > 0 {
		out["data_key"] = r.DataKey
	}
	return out, nil
}

// HeaderValues returns the request headers as strings.
func (r *Request) HeaderValues() http.Header {
	h := make(http.Header, len(r.Headers))
	for _, name := range slices.Sorted(maps.Keys(r.Headers)) {
		h.Set(name, formatValue(r.Headers[name]))
	}
	return h
}

// Response is the raw result of a dispatch. Body holds the decoded payload:
// a structured value, url.Values for form responses, a string for text, or
// a *FileResponse for streamed downloads.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       any
}

// MarshalYAML renders the response for detailed errors.
func (r *Response) MarshalYAML() (any, error) {
	out := map[string]any{"status_code": r.StatusCode}
	if len(r.Headers) > 0 {
		h := make(map[string]string, len(r.Headers))
		for k := range r.Headers {
			h[k] = r.Headers.Get(k)
		}
		out["headers"] = h
	}
	switch b := r.Body.(type) {
	case nil:
	case *FileResponse:
		out["body"] = fmt.Sprintf("<file %s, %d bytes>", b.ContentType(), b.Size())
	default:
		out["body"] = yamlNumbers(b)
	}
	return out, nil
}

// yamlNumbers rewrites json.Number leaves as plain scalars so they render
// as numbers rather than quoted strings.
func yamlNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: t.String()}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = yamlNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = yamlNumbers(item)
		}
		return out
	}
	return v
}

// isPrimitive reports whether v is sent as text rather than serialized:
// strings, bools, numbers and times.
func isPrimitive(v any) bool {
	switch v.(type) {
	case nil:
		return false
	case time.Time:
		return true
	}
	rv := reflect.ValueOf(v)
	//exhaustive:ignore
	switch rv.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// formatValue renders a primitive value as text.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	//exhaustive:ignore
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
