package apiclient

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures the Retry middleware.
type RetryConfig struct {
	MaxTries        uint          `yaml:"max_tries"`        // total attempts including the first (default: 3)
	InitialInterval time.Duration `yaml:"initial_interval"` // first backoff delay (default: 200ms)
	MaxInterval     time.Duration `yaml:"max_interval"`     // backoff ceiling (default: 5s)
	MaxElapsed      time.Duration `yaml:"max_elapsed"`      // give up after this long (default: 30s)
	// Statuses are retried in addition to transport errors
	// (default: 429, 502, 503, 504).
	Statuses []int `yaml:"statuses"`
}

// Retry returns middleware that retries failed round trips with
// exponential backoff. Requests whose body cannot be replayed, such as
// streamed multipart uploads, are sent once. When every attempt gets a
// retryable status, the last response is returned as-is.
func Retry(cfg RetryConfig) Middleware {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	if cfg.Statuses == nil {
		cfg.Statuses = []int{
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Body != nil && r.Body != http.NoBody && r.GetBody == nil {
				return next.RoundTrip(r)
			}

			b := backoff.NewExponentialBackOff()
			b.InitialInterval = cfg.InitialInterval
			b.MaxInterval = cfg.MaxInterval

			var (
				attempt int
				last    *http.Response
			)
			op := func() (*http.Response, error) {
				req := r
				if attempt > 0 && r.GetBody != nil {
					body, err := r.GetBody()
					if err != nil {
						return nil, backoff.Permanent(err)
					}
					req = r.Clone(r.Context())
					req.Body = body
				}
				attempt++

				resp, err := next.RoundTrip(req)
				if err != nil {
					if r.Context().Err() != nil {
						return nil, backoff.Permanent(err)
					}
					return nil, err
				}
				if !slices.Contains(cfg.Statuses, resp.StatusCode) {
					return resp, nil
				}
				if last != nil {
					drainClose(last.Body)
				}
				last = resp
				return nil, fmt.Errorf("retryable status %d", resp.StatusCode)
			}

			resp, err := backoff.Retry(r.Context(), op,
				backoff.WithBackOff(b),
				backoff.WithMaxTries(cfg.MaxTries),
				backoff.WithMaxElapsedTime(cfg.MaxElapsed),
			)
			if err == nil {
				if last != nil && last != resp {
					drainClose(last.Body)
				}
				return resp, nil
			}
			if last != nil && r.Context().Err() == nil {
				return last, nil
			}
			if last != nil {
				drainClose(last.Body)
			}
			return nil, err
		})
	}
}

func drainClose(body io.ReadCloser) {
	//nolint:errcheck // best-effort drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
