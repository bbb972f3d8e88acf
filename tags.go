package apiclient

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// locationTags are the struct tags that pin a parameter to a location,
// in lookup order.
var locationTags = []struct {
	tag string
	loc Location
}{
	{"placeholder", LocationPlaceholder},
	{"path", LocationPlaceholder},
	{"query", LocationQuery},
	{"header", LocationHeader},
	{"body", LocationBody},
	{"file", LocationFile},
}

// Param describes one declared parameter of a method.
type Param struct {
	Name      string
	Location  Location
	OmitEmpty bool
	// Default is the literal from a `default` tag, used when the value is absent.
	Default string

	index        []int
	typ          reflect.Type
	defaultValue any
}

// Type returns the Go type of the parameter.
func (p Param) Type() reflect.Type { return p.typ }

// DefaultValue returns the `default` tag parsed into the parameter's type,
// or nil when there is no tag.
func (p Param) DefaultValue() any { return p.defaultValue }

// paramsOf builds the parameter table for a params struct type. Non-struct
// types have no table.
func paramsOf(t reflect.Type) ([]Param, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil
	}
	var params []Param
	if err := collectFields(t, nil, &params); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(params))
	for _, p := range params {
		key := p.Location.String() + ":" + p.Name
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate parameter %q in %s", ErrDeclaration, p.Name, p.Location)
		}
		seen[key] = true
	}
	return params, nil
}

func collectFields(t reflect.Type, prefix []int, out *[]Param) error {
	for i := range t.NumField() {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct && !hasLocationTag(f) && f.Tag.Get("json") == "" {
			if err := collectFields(f.Type, index, out); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		p, ok, err := paramFromField(f)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		p.index = index
		p.typ = f.Type
		if p.Default != "" {
			v, err := parseDefault(f.Type, p.Default)
			if err != nil {
				return fmt.Errorf("%w: default for field %s: %w", ErrDeclaration, f.Name, err)
			}
			p.defaultValue = v
		}
		*out = append(*out, p)
	}
	return nil
}

func paramFromField(f reflect.StructField) (Param, bool, error) {
	jsonName, jsonOpts := tagOptions(f.Tag.Get("json"))
	if jsonName == "-" && jsonOpts == "" {
		return Param{}, false, nil
	}

	p := Param{
		Name:      jsonFieldName(f),
		OmitEmpty: tagContains(jsonOpts, "omitempty"),
		Default:   f.Tag.Get("default"),
	}

	found := false
	for _, lt := range locationTags {
		tag, ok := f.Tag.Lookup(lt.tag)
		if !ok {
			continue
		}
		if found {
			return Param{}, false, fmt.Errorf("%w: field %s has more than one location tag", ErrDeclaration, f.Name)
		}
		found = true
		name, opts := tagOptions(tag)
		if name != "" {
			p.Name = name
		}
		if tagContains(opts, "omitempty") {
			p.OmitEmpty = true
		}
		p.Location = lt.loc
	}
	return p, true, nil
}

// parseDefault converts a `default` tag literal to a value of type t.
// Pointer types yield their element type.
func parseDefault(t reflect.Type, lit string) (any, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v := reflect.New(t).Elem()
	if t == reflect.TypeFor[time.Duration]() {
		d, err := time.ParseDuration(lit)
		if err != nil {
			return nil, err
		}
		v.SetInt(int64(d))
		return v.Interface(), nil
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		v.SetString(lit)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(lit, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(lit, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(lit, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return nil, err
		}
		v.SetBool(b)
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
	return v.Interface(), nil
}

func hasLocationTag(f reflect.StructField) bool {
	for _, lt := range locationTags {
		if _, ok := f.Tag.Lookup(lt.tag); ok {
			return true
		}
	}
	return false
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	name, _ := tagOptions(f.Tag.Get("json"))
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// tagOptions splits a struct tag value on comma and returns
// the name and remaining options.
func tagOptions(tag string) (string, string) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts
}

// tagContains reports whether a comma-separated list of options
// contains a particular option.
func tagContains(opts string, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}
