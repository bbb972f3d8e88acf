package apiclient

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"
)

// ValueFactory computes a parameter value at request time when the caller
// left it absent.
type ValueFactory func(c *Client, inv *Invocation) (any, error)

// Declaration is the non-generic description of a method: verb, path
// template and parameter table. It is immutable once declared.
type Declaration struct {
	Name            string
	Verb            string
	Path            string
	Subdomain       string
	DataKey         []string
	DefaultLocation Location
	ChunkSize       int

	defaults   map[string]ValueFactory
	params     []Param
	paramsType reflect.Type
	resultType reflect.Type
	stream     bool
	rawParams  bool
}

// Params returns the parameter table.
func (d *Declaration) Params() []Param { return slices.Clone(d.params) }

// ParamsType returns the Go type of the parameters.
func (d *Declaration) ParamsType() reflect.Type { return d.paramsType }

// ResultType returns the Go type of the result.
func (d *Declaration) ResultType() reflect.Type { return d.resultType }

// Streaming reports whether the method downloads a FileResponse.
func (d *Declaration) Streaming() bool { return d.stream }

// defaultLocation resolves the method default against the verb rule.
func (d *Declaration) defaultLocation() Location {
	if d.DefaultLocation != LocationAuto {
		return d.DefaultLocation
	}
	loc, _ := verbLocation(d.Verb)
	return loc
}

// Declaration returns d, so a *Declaration can be described directly.
func (d *Declaration) Declaration() *Declaration { return d }

// MethodOption configures a Declaration.
type MethodOption func(*Declaration)

// WithVerb sets the HTTP verb.
func WithVerb(verb string) MethodOption {
	return func(d *Declaration) { d.Verb = strings.ToUpper(verb) }
}

// WithPath sets the path template, relative to the client base URL.
func WithPath(path string) MethodOption {
	return func(d *Declaration) { d.Path = path }
}

// WithName sets a name for logs and descriptions.
func WithName(name string) MethodOption {
	return func(d *Declaration) { d.Name = name }
}

// WithSubdomain sets the subdomain substituted into a base URL containing
// {subdomain}. It overrides the client default.
func WithSubdomain(subdomain string) MethodOption {
	return func(d *Declaration) { d.Subdomain = subdomain }
}

// WithDataKey sets the path under the client data key where the result
// payload lives.
func WithDataKey(keys ...string) MethodOption {
	return func(d *Declaration) { d.DataKey = keys }
}

// WithDefaultLocation overrides the verb rule for parameters without an
// explicit location.
func WithDefaultLocation(loc Location) MethodOption {
	return func(d *Declaration) { d.DefaultLocation = loc }
}

// WithChunkSize sets the read size for streamed downloads.
func WithChunkSize(n int) MethodOption {
	return func(d *Declaration) { d.ChunkSize = n }
}

// WithDefault registers a factory for the named parameter. It runs when the
// caller leaves the parameter absent.
func WithDefault(name string, f ValueFactory) MethodOption {
	return func(d *Declaration) {
		if d.defaults == nil {
			d.defaults = make(map[string]ValueFactory)
		}
		d.defaults[name] = f
	}
}

// Template is an unvalidated set of method options shared by several
// declarations. It cannot be called.
type Template []MethodOption

// With returns a new template with opts appended.
func (t Template) With(opts ...MethodOption) Template {
	out := make(Template, 0, len(t)+len(opts))
	out = append(out, t...)
	return append(out, opts...)
}

// Method is a declared, callable API method taking P and returning R.
type Method[P, R any] struct {
	decl *Declaration
}

// Declare validates the options and returns a callable method. The verb and
// path are required, R must be a concrete type, and every registered
// default must name a parameter.
func Declare[P, R any](opts ...MethodOption) (*Method[P, R], error) {
	d := &Declaration{
		paramsType: reflect.TypeFor[P](),
		resultType: reflect.TypeFor[R](),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.Verb == "" {
		return nil, fmt.Errorf("%w: missing verb", ErrDeclaration)
	}
	if _, err := verbLocation(d.Verb); err != nil {
		return nil, err
	}
	if d.Path == "" {
		return nil, fmt.Errorf("%w: missing path", ErrDeclaration)
	}
	if d.resultType.Kind() == reflect.Interface {
		return nil, fmt.Errorf("%w: result type %s is not concrete", ErrDeclaration, d.resultType)
	}
	if d.DefaultLocation == LocationFile {
		return nil, fmt.Errorf("%w: file is not a default location", ErrDeclaration)
	}
	if d.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: negative chunk size", ErrDeclaration)
	}
	if d.Name == "" {
		d.Name = generateOperationID(d.Verb, d.Path)
	}
	d.stream = d.resultType == reflect.TypeFor[FileResponse]()

	params, err := paramsOf(d.paramsType)
	if err != nil {
		return nil, err
	}
	d.params = params
	d.rawParams = !isStructType(d.paramsType)

	if d.rawParams {
		if err := checkRawParams(d); err != nil {
			return nil, err
		}
	}
	for name := range d.defaults {
		if !slices.ContainsFunc(d.params, func(p Param) bool { return p.Name == name }) {
			return nil, fmt.Errorf("%w: default for unknown parameter %q", ErrDeclaration, name)
		}
	}

	return &Method[P, R]{decl: d}, nil
}

// MustDeclare is like Declare but panics on error. For package-level
// method variables.
func MustDeclare[P, R any](opts ...MethodOption) *Method[P, R] {
	m, err := Declare[P, R](opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Declaration returns the method's declaration.
func (m *Method[P, R]) Declaration() *Declaration { return m.decl }

// Invocation pairs the declaration with parameter values.
func (m *Method[P, R]) Invocation(params *P) *Invocation {
	return &Invocation{Method: m.decl, Params: params}
}

// Call builds, dispatches and resolves one invocation of the method.
func (m *Method[P, R]) Call(ctx context.Context, c *Client, params *P, opts ...CallOption) (*R, error) {
	inv := m.Invocation(params)
	payload, req, resp, err := c.call(ctx, inv, opts)
	if err != nil {
		return nil, err
	}
	if m.decl.stream {
		if fr, ok := payload.(*FileResponse); ok {
			if out, ok := any(fr).(*R); ok {
				return out, nil
			}
		}
		return nil, newDetailedError(msgResponseParse, req, resp, c.stringify, ErrResponseParse)
	}
	out, err := bindResult[R](c, payload)
	if err != nil {
		return nil, newDetailedError(msgValidation, req, resp, c.stringify, fmt.Errorf("%w: %w", ErrValidation, err))
	}
	return out, nil
}

// Void is the parameter type of methods that take no parameters.
type Void struct{}

// Invocation is one call of a method with concrete parameters. Params holds
// a pointer to the parameter value, or nil.
type Invocation struct {
	Method *Declaration
	Params any
}

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithCallTimeout overrides the client timeout for one call.
func WithCallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

func isStructType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// checkRawParams rejects non-struct parameter types that cannot land in the
// default location: only maps with string keys can be spread outside the
// body.
func checkRawParams(d *Declaration) error {
	loc := d.defaultLocation()
	if loc == LocationBody {
		return nil
	}
	t := d.paramsType
	if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		return nil
	}
	return fmt.Errorf("%w: %s parameters must be a struct or map to be sent in %s", ErrDeclaration, t, loc)
}

// generateOperationID builds a name like "getUsersId" from verb and path.
func generateOperationID(verb, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(verb))
	for seg := range strings.SplitSeq(path, "/") {
		seg = strings.Trim(seg, "{}")
		for part := range strings.FieldsFuncSeq(seg, func(r rune) bool {
			return r == '-' || r == '_' || r == '.'
		}) {
			b.WriteString(strings.ToUpper(part[:1]) + part[1:])
		}
	}
	return b.String()
}

