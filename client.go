package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a whole call unless overridden.
const DefaultTimeout = 60 * time.Second

// Client holds the per-API configuration shared by every method call:
// base URL, global fields, data and error keys, error mapping and the
// transport. It is immutable after New and safe for concurrent use.
type Client struct {
	baseURL          string
	defaultSubdomain string
	globals          []Contributor
	dataKey          []string
	errorKey         []string
	errorCodes       map[int]ErrorFactory
	generalError     ErrorFactory
	detailed         bool
	forceDetailed    bool
	stringify        bool
	excludeEmpty     bool
	timeout          time.Duration

	transport     Transport
	transportOpts []TransportOption
	serializer    Serializer
	validator     Validator
	logger        zerolog.Logger

	closed atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithDefaultSubdomain sets the subdomain used for {subdomain} in the base
// URL when a method declares none.
func WithDefaultSubdomain(subdomain string) Option {
	return func(c *Client) { c.defaultSubdomain = subdomain }
}

// WithGlobalFields adds contributors applied to every request before the
// method parameters.
func WithGlobalFields(contributors ...Contributor) Option {
	return func(c *Client) { c.globals = append(c.globals, contributors...) }
}

// WithResponseDataKey sets the path to the payload in successful
// responses. Method data keys are appended to it.
func WithResponseDataKey(keys ...string) Option {
	return func(c *Client) { c.dataKey = keys }
}

// WithErrorKey sets the path to the message in error responses.
func WithErrorKey(keys ...string) Option {
	return func(c *Client) { c.errorKey = keys }
}

// WithErrorCode maps a status to an error factory. A registered status is
// an error even when it is below 400.
func WithErrorCode(status int, f ErrorFactory) Option {
	return func(c *Client) {
		if c.errorCodes == nil {
			c.errorCodes = make(map[int]ErrorFactory)
		}
		c.errorCodes[status] = f
	}
}

// WithGeneralError sets the factory for error statuses with no registered
// factory.
func WithGeneralError(f ErrorFactory) Option {
	return func(c *Client) { c.generalError = f }
}

// WithDetailedErrors makes unregistered error statuses produce a
// DetailedError when no general factory is set.
func WithDetailedErrors() Option {
	return func(c *Client) { c.detailed = true }
}

// WithForceDetailedErrors makes every API error a DetailedError,
// overriding registered factories.
func WithForceDetailedErrors() Option {
	return func(c *Client) { c.forceDetailed = true }
}

// WithStringifyErrors selects the block rendering of DetailedError
// (default true) over the inline one.
func WithStringifyErrors(stringify bool) Option {
	return func(c *Client) { c.stringify = stringify }
}

// WithIncludeEmpty sends absent parameters as nulls instead of
// omitting them.
func WithIncludeEmpty() Option {
	return func(c *Client) { c.excludeEmpty = false }
}

// WithTimeout bounds each call. Zero disables the client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTransport replaces the default HTTPTransport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithTransportOptions configures the default HTTPTransport.
func WithTransportOptions(opts ...TransportOption) Option {
	return func(c *Client) { c.transportOpts = append(c.transportOpts, opts...) }
}

// WithMiddleware wraps the default HTTPTransport's round tripper.
func WithMiddleware(mw ...Middleware) Option {
	return WithTransportOptions(WithTransportMiddleware(mw...))
}

// WithSerializer replaces the JSON serializer.
func WithSerializer(s Serializer) Option {
	return func(c *Client) { c.serializer = s }
}

// WithValidator replaces the tag-based result validator.
func WithValidator(v Validator) Option {
	return func(c *Client) { c.validator = v }
}

// WithLogger sets the logger for call tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a client for the API at baseURL. The base URL may contain
// {subdomain} and other {placeholder} tokens.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: empty base url", ErrConfiguration)
	}
	// Braces are not valid in a host, so tokens are checked as plain names.
	if _, err := url.Parse(strings.NewReplacer("{", "", "}", "").Replace(baseURL)); err != nil {
		return nil, fmt.Errorf("%w: base url: %w", ErrConfiguration, err)
	}

	c := &Client{
		baseURL:      baseURL,
		stringify:    true,
		excludeEmpty: true,
		timeout:      DefaultTimeout,
		serializer:   JSONSerializer{},
		validator:    tagValidator{},
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(c.transportOpts...)
	} else if len(c.transportOpts) > 0 {
		return nil, fmt.Errorf("%w: transport options need the default transport", ErrConfiguration)
	}
	c.dataKey = slices.Clone(c.dataKey)
	c.errorKey = slices.Clone(c.errorKey)
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Serializer returns the client serializer.
func (c *Client) Serializer() Serializer { return c.serializer }

// Transport returns the client transport.
func (c *Client) Transport() Transport { return c.transport }

// Logger returns the client logger.
func (c *Client) Logger() zerolog.Logger { return c.logger }

// Close marks the client closed and closes its transport. Calls made after
// Close fail with ErrClientClosed.
func (c *Client) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.transport.Close(ctx)
}

// call runs one invocation through build, dispatch and resolution. It
// returns the resolved payload with the request and response it came from.
func (c *Client) call(ctx context.Context, inv *Invocation, opts []CallOption) (any, *Request, *Response, error) {
	if c.closed.Load() {
		return nil, nil, nil, ErrClientClosed
	}

	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	timeout := c.timeout
	if o.timeout > 0 {
		timeout = o.timeout
	}

	req, err := c.BuildRequest(inv)
	if err != nil {
		return nil, nil, nil, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = withValue(ctx, inv)

	c.logger.Debug().
		Str("api_method", inv.Method.Name).
		Str("method", req.Method).
		Str("url", req.URL).
		Msg("making request")

	resp, err := c.transport.Dispatch(ctx, c, req)
	if err != nil {
		if isTimeout(err) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, req, nil, err
	}

	c.logger.Debug().
		Str("api_method", inv.Method.Name).
		Str("method", req.Method).
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Msg("request made")

	payload, err := c.ResolveResponse(req, resp)
	return payload, req, resp, err
}
