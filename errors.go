package apiclient

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration is the parent of every error caused by a bad declaration
// or client setup. These are raised before any network activity.
var ErrConfiguration = errors.New("configuration")

// Configuration errors.
var (
	ErrDeclaration           = fmt.Errorf("%w: invalid method declaration", ErrConfiguration)
	ErrUnknownVerb           = fmt.Errorf("%w: unknown http verb", ErrConfiguration)
	ErrMissingSubdomain      = fmt.Errorf("%w: no subdomain for base url", ErrConfiguration)
	ErrUnresolvedPlaceholder = fmt.Errorf("%w: unresolved url placeholder", ErrConfiguration)
	ErrContributorCycle      = fmt.Errorf("%w: contributor cycle", ErrConfiguration)
)

// Call failures.
var (
	ErrAPI           = errors.New("api error")
	ErrResponseParse = errors.New("cannot parse response")
	ErrValidation    = errors.New("response validation")
	ErrTimeout       = errors.New("request timed out")
	ErrTransport     = errors.New("transport")
	ErrClientClosed  = errors.New("client closed")
)

// Default messages for detailed errors.
const (
	msgDetailedDefault = "An error has occurred during the request."
	msgResponseParse   = "Something went wrong and the client can't parse the response."
	msgValidation      = "An error has occurred while validating the response."
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// APIError is the base of every error produced from an API response. Typed
// API errors embed *APIError.
type APIError struct {
	Status   int
	Message  string
	Request  *Request
	Response *Response
}

// Error returns "[status] message".
func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status code of the response.
func (e *APIError) StatusCode() int { return e.Status }

// Is matches ErrAPI.
func (e *APIError) Is(target error) bool { return target == ErrAPI }

// base is promoted through embedding so AsAPIError can find the base of a
// typed error.
func (e *APIError) base() *APIError { return e }

// ErrorFactory builds a typed error from the base APIError.
type ErrorFactory func(*APIError) error

// defaultErrorFactory returns the base error unchanged.
func defaultErrorFactory(e *APIError) error { return e }

// AsAPIError returns the APIError carried by err, if any. It sees through
// typed errors that embed *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var b interface{ base() *APIError }
	if errors.As(err, &b) {
		return b.base(), true
	}
	return nil, false
}

// DetailedError is an API error whose text includes the full request and
// response.
type DetailedError struct {
	Message   string
	Request   *Request
	Response  *Response
	Stringify bool

	cause error
}

func newDetailedError(message string, req *Request, resp *Response, stringify bool, cause error) *DetailedError {
	if message == "" {
		message = msgDetailedDefault
	}
	return &DetailedError{
		Message:   message,
		Request:   req,
		Response:  resp,
		Stringify: stringify,
		cause:     cause,
	}
}

// Error renders the message followed by the request and response. When
// Stringify is set they are rendered as YAML blocks, otherwise inline.
func (e *DetailedError) Error() string {
	if !e.Stringify {
		return fmt.Sprintf("%s\nRequest data: %+v\nResponse data: %+v", e.Message, e.Request, e.Response)
	}
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString("\nRequest data:\n")
	b.WriteString(renderYAML(e.Request))
	b.WriteString("Response data:\n")
	b.WriteString(renderYAML(e.Response))
	return strings.TrimRight(b.String(), "\n")
}

// StatusCode returns the response status, or 0 when there is no response.
func (e *DetailedError) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// Is matches ErrAPI.
func (e *DetailedError) Is(target error) bool { return target == ErrAPI }

// Unwrap returns the underlying failure, such as ErrValidation.
func (e *DetailedError) Unwrap() error { return e.cause }

func renderYAML(v any) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v\n", v)
	}
	return string(out)
}

// ErrorStatus extracts the HTTP status code from an error. Returns 0 if the
// error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
