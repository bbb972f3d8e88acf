package apiclient

import (
	"fmt"
	"slices"
)

// maxContributorDepth bounds contributor expansion. Deeper chains are
// reported as cycles.
const maxContributorDepth = 16

// Contributor supplies request fields. Contribute may return further
// contributors, which are expanded in order; a Field is terminal.
type Contributor interface {
	Contribute(c *Client, inv *Invocation) ([]Contributor, error)
}

// ContributorFunc adapts a function to the Contributor interface.
type ContributorFunc func(c *Client, inv *Invocation) ([]Contributor, error)

// Contribute calls f.
func (f ContributorFunc) Contribute(c *Client, inv *Invocation) ([]Contributor, error) {
	return f(c, inv)
}

// Static returns a contributor that always yields the given fields.
func Static(fields ...Field) Contributor {
	return ContributorFunc(func(*Client, *Invocation) ([]Contributor, error) {
		out := make([]Contributor, len(fields))
		for i, f := range fields {
			out[i] = f
		}
		return out, nil
	})
}

// BearerToken returns a contributor that sets a static Authorization header.
func BearerToken(token string) Contributor {
	return Header("Authorization", "Bearer "+token)
}

// buckets accumulates field values per location. Later writes win.
type buckets struct {
	header      map[string]any
	placeholder map[string]any
	body        map[string]any
	query       map[string]any
	file        map[string]any

	defaultLoc Location
}

func newBuckets(defaultLoc Location) *buckets {
	return &buckets{
		header:      make(map[string]any),
		placeholder: make(map[string]any),
		body:        make(map[string]any),
		query:       make(map[string]any),
		file:        make(map[string]any),
		defaultLoc:  defaultLoc,
	}
}

func (b *buckets) bucket(loc Location) map[string]any {
	switch loc {
	case LocationHeader:
		return b.header
	case LocationPlaceholder:
		return b.placeholder
	case LocationBody:
		return b.body
	case LocationQuery:
		return b.query
	case LocationFile:
		return b.file
	default:
		return b.bucket(b.defaultLoc)
	}
}

func (b *buckets) set(loc Location, name string, value any) {
	b.bucket(loc)[name] = value
}

// pop removes name from the placeholder, query and body buckets in that
// order and returns the first value found.
func (b *buckets) pop(name string) (any, bool) {
	var (
		value any
		found bool
	)
	for _, m := range []map[string]any{b.placeholder, b.query, b.body} {
		v, ok := m[name]
		if !ok {
			continue
		}
		if !found {
			value, found = v, true
		}
		delete(m, name)
	}
	return value, found
}

// resolveContributors expands contributors into b in declaration order.
func resolveContributors(b *buckets, contributors []Contributor, c *Client, inv *Invocation) error {
	type pending struct {
		cb    Contributor
		depth int
	}
	// Pushed in reverse so pops follow declaration order.
	stack := make([]pending, 0, len(contributors))
	for _, cb := range slices.Backward(contributors) {
		stack = append(stack, pending{cb: cb})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch f := top.cb.(type) {
		case nil:
			continue
		case Field:
			b.set(f.Location, f.Name, f.Value)
			continue
		case *Field:
			if f != nil {
				b.set(f.Location, f.Name, f.Value)
			}
			continue
		}
		if top.depth >= maxContributorDepth {
			return fmt.Errorf("%w: %T exceeded depth %d", ErrContributorCycle, top.cb, maxContributorDepth)
		}

		next, err := top.cb.Contribute(c, inv)
		if err != nil {
			return fmt.Errorf("contributor %T: %w", top.cb, err)
		}
		for _, n := range slices.Backward(next) {
			stack = append(stack, pending{cb: n, depth: top.depth + 1})
		}
	}
	return nil
}
