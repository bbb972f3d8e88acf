package apiclient

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
)

// Serializer converts values to and from a wire format. It encodes request
// bodies and non-primitive query values, and decodes response payloads.
type Serializer interface {
	ContentType() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSONSerializer is the default Serializer.
type JSONSerializer struct {
	// UseNumber decodes numbers into json.Number instead of float64.
	UseNumber bool
}

// ContentType returns "application/json".
func (JSONSerializer) ContentType() string { return "application/json" }

// Encode marshals v without a trailing newline.
func (JSONSerializer) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals data into v. Empty input leaves v untouched.
func (s JSONSerializer) Decode(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if s.UseNumber {
		dec.UseNumber()
	}
	return dec.Decode(v)
}

// exactNumbers returns s configured to keep JSON numbers as json.Number,
// so integers beyond float64 precision survive until they are bound.
// Other serializers are returned unchanged.
func exactNumbers(s Serializer) Serializer {
	switch js := s.(type) {
	case JSONSerializer:
		js.UseNumber = true
		return js
	case *JSONSerializer:
		return JSONSerializer{UseNumber: true}
	}
	return s
}

// matchesMediaType reports whether a Content-Type header names the
// serializer's media type or a structured-syntax suffix of it, such as
// application/problem+json for JSON.
func matchesMediaType(contentType string, s Serializer) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	want := s.ContentType()
	if mediaType == want {
		return true
	}
	_, sub, ok := strings.Cut(want, "/")
	return ok && strings.HasSuffix(mediaType, "+"+sub)
}
