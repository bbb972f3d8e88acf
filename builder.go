package apiclient

import (
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"slices"
	"strings"
)

const subdomainToken = "{subdomain}"

// BuildRequest turns an invocation into a wire request. It performs no
// network activity; every configuration error surfaces here.
func (c *Client) BuildRequest(inv *Invocation) (*Request, error) {
	decl := inv.Method
	if decl == nil {
		return nil, fmt.Errorf("%w: invocation has no method", ErrDeclaration)
	}

	defaultLoc := decl.DefaultLocation
	if defaultLoc == LocationAuto {
		loc, err := verbLocation(decl.Verb)
		if err != nil {
			return nil, err
		}
		defaultLoc = loc
	}

	b := newBuckets(defaultLoc)
	if err := resolveContributors(b, c.globals, c, inv); err != nil {
		return nil, err
	}

	var rawBody any
	if decl.rawParams {
		raw, err := c.collectRaw(b, inv)
		if err != nil {
			return nil, err
		}
		rawBody = raw
	} else if err := c.collectParams(b, inv); err != nil {
		return nil, err
	}

	for name, v := range b.query {
		if v == nil || isPrimitive(v) {
			continue
		}
		enc, err := c.serializer.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("encode query %q: %w", name, err)
		}
		b.query[name] = string(enc)
	}

	files := splitFiles(b)
	if rawBody != nil && len(b.body) > 0 {
		return nil, fmt.Errorf("%w: %s body fields %v cannot be merged into a raw %T body",
			ErrConfiguration, decl.Name, slices.Sorted(maps.Keys(b.body)), rawBody)
	}

	target, err := c.expandURL(decl, b)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:  decl.Verb,
		URL:     target,
		Headers: b.header,
		Query:   b.query,
		Files:   files,
		Stream:  decl.stream,
		DataKey: slices.Concat(c.dataKey, decl.DataKey),
	}
	switch {
	case rawBody != nil:
		req.Body = rawBody
	case len(b.body) > 0:
		req.Body = b.body
	}
	if req.Stream {
		req.ChunkSize = decl.ChunkSize
		if req.ChunkSize == 0 {
			req.ChunkSize = DefaultChunkSize
		}
	}
	return req, nil
}

// collectParams writes each struct parameter into its bucket. Absent values
// fall back to the method default factory, then the `default` tag, and are
// skipped when the client excludes empty values.
func (c *Client) collectParams(b *buckets, inv *Invocation) error {
	decl := inv.Method
	rv := paramsValue(inv.Params, decl.paramsType)

	for _, p := range decl.params {
		value, present := paramValue(rv.FieldByIndex(p.index), p)
		if !present {
			if f, ok := decl.defaults[p.Name]; ok {
				v, err := f(c, inv)
				if err != nil {
					return fmt.Errorf("default for %q: %w", p.Name, err)
				}
				value, present = v, v != nil
			} else if p.defaultValue != nil {
				value, present = p.defaultValue, true
			}
		}
		if !present {
			if c.excludeEmpty {
				continue
			}
			value = nil
		}

		loc, err := Classify(p, decl.Verb, decl.DefaultLocation)
		if err != nil {
			return err
		}
		if _, ok := value.(ContentSource); ok {
			loc = LocationFile
		}
		b.set(loc, p.Name, value)
	}
	return nil
}

// collectRaw handles non-struct parameters. Maps are spread into the
// default bucket; anything else is returned as the raw body, which cannot
// be combined with body fields from global contributors.
func (c *Client) collectRaw(b *buckets, inv *Invocation) (any, error) {
	rv := paramsValue(inv.Params, inv.Method.paramsType)
	if !rv.IsValid() || isNilValue(rv) {
		return nil, nil
	}
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		iter := rv.MapRange()
		for iter.Next() {
			v := iter.Value().Interface()
			if v == nil && c.excludeEmpty {
				continue
			}
			b.set(b.defaultLoc, iter.Key().String(), v)
		}
		return nil, nil
	}
	return rv.Interface(), nil
}

// paramsValue dereferences the invocation parameters. A nil pointer yields
// the zero value of the parameter type.
func paramsValue(params any, t reflect.Type) reflect.Value {
	rv := reflect.ValueOf(params)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv = reflect.Value{}
			break
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		return reflect.Zero(t)
	}
	return rv
}

// paramValue returns a field's value and whether it is present. Nil values
// are absent; zero values are absent when the parameter is omitempty.
func paramValue(fv reflect.Value, p Param) (any, bool) {
	if isNilValue(fv) {
		return nil, false
	}
	if p.OmitEmpty && fv.IsZero() {
		return nil, false
	}
	if fv.Kind() == reflect.Pointer {
		if _, ok := fv.Interface().(ContentSource); ok {
			return fv.Interface(), true
		}
		fv = fv.Elem()
	}
	return fv.Interface(), true
}

func isNilValue(v reflect.Value) bool {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// splitFiles moves content sources out of the body and query buckets into
// the file set. A file-located value that is not a content source is sent as
// a body field instead.
func splitFiles(b *buckets) map[string]ContentSource {
	files := make(map[string]ContentSource)
	for _, m := range []map[string]any{b.body, b.query} {
		for name, v := range m {
			if src, ok := v.(ContentSource); ok {
				files[name] = src
				delete(m, name)
			}
		}
	}
	for name, v := range b.file {
		if src, ok := v.(ContentSource); ok {
			files[name] = src
		} else {
			b.body[name] = v
		}
	}
	return files
}

// expandURL joins the base URL and path, resolves {subdomain}, and
// substitutes every other {token} from the placeholder, query and body
// buckets, consuming the values it uses.
func (c *Client) expandURL(decl *Declaration, b *buckets) (string, error) {
	base := c.baseURL
	if strings.Contains(base, subdomainToken) {
		sub := decl.Subdomain
		if sub == "" {
			sub = c.defaultSubdomain
		}
		if sub == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingSubdomain, base)
		}
		base = strings.ReplaceAll(base, subdomainToken, sub)
	}
	raw := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(decl.Path, "/")

	var out strings.Builder
	for {
		start := strings.IndexByte(raw, '{')
		if start < 0 {
			out.WriteString(raw)
			break
		}
		end := strings.IndexByte(raw[start:], '}')
		if end < 0 {
			out.WriteString(raw)
			break
		}
		end += start
		name := raw[start+1 : end]

		value, ok := b.pop(name)
		if !ok {
			return "", fmt.Errorf("%w: {%s} in %s", ErrUnresolvedPlaceholder, name, decl.Path)
		}
		out.WriteString(raw[:start])
		out.WriteString(url.PathEscape(formatValue(value)))
		raw = raw[end+1:]
	}
	return out.String(), nil
}
