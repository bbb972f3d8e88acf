package apiclient

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Middleware wraps an http.RoundTripper. It is the client-side counterpart
// of func(http.Handler) http.Handler and composes the same way.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls f.
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// chain wraps rt so that mw[0] is the outermost layer.
func chain(rt http.RoundTripper, mw []Middleware) http.RoundTripper {
	for i := len(mw) - 1; i >= 0; i-- {
		rt = mw[i](rt)
	}
	return rt
}

// Recovery returns middleware that turns a panic in an inner round tripper
// into an error.
func Recovery(logger zerolog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (resp *http.Response, err error) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Str("method", r.Method).
						Str("url", r.URL.String()).
						Str("stack", string(debug.Stack())).
						Interface("panic", rec).
						Msg("panic recovered")
					resp, err = nil, fmt.Errorf("round trip panicked: %v", rec)
				}
			}()
			return next.RoundTrip(r)
		})
	}
}
