package apiclient

import "github.com/google/uuid"

// DefaultRequestIDHeader is the header RequestID sets by default.
const DefaultRequestIDHeader = "X-Request-ID"

// RequestIDConfig configures the RequestID contributor.
type RequestIDConfig struct {
	Header    string        // default: "X-Request-ID"
	Generator func() string // default: random UUID
}

// RequestID returns a contributor that stamps every request with a fresh
// identifier header.
func RequestID(cfg ...RequestIDConfig) Contributor {
	c := RequestIDConfig{
		Header:    DefaultRequestIDHeader,
		Generator: uuid.NewString,
	}
	if len(cfg) > 0 {
		if cfg[0].Header != "" {
			c.Header = cfg[0].Header
		}
		if cfg[0].Generator != nil {
			c.Generator = cfg[0].Generator
		}
	}

	return ContributorFunc(func(*Client, *Invocation) ([]Contributor, error) {
		return []Contributor{Header(c.Header, c.Generator())}, nil
	})
}
