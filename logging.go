package apiclient

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Logger returns middleware that logs each round trip with its status and
// latency. Failed round trips are logged at warn level.
func Logger(logger zerolog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)

			ev := logger.Info()
			if err != nil {
				ev = logger.Warn().Err(err)
			}
			ev = ev.
				Str("method", r.Method).
				Str("url", r.URL.Redacted()).
				Dur("latency", time.Since(start))
			if resp != nil {
				ev = ev.Int("status", resp.StatusCode).Int64("size", resp.ContentLength)
			}
			if inv, ok := InvocationFrom(r.Context()); ok && inv.Method != nil {
				ev = ev.Str("api_method", inv.Method.Name)
			}
			if id := r.Header.Get(DefaultRequestIDHeader); id != "" {
				ev = ev.Str("request_id", id)
			}
			ev.Msg("request")
			return resp, err
		})
	}
}
