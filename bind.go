package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"weak"

	"github.com/gorilla/schema"
)

// Object is embedded in result types that want a reference back to the
// client that produced them, or the payload keys their fields did not
// capture. The reference is weak: it does not keep the client alive.
//
// reflect.DeepEqual, and so testify's assert.Equal, sees the binding. Call
// Unbind on a result before comparing it with a value built by hand.
type Object struct {
	client weak.Pointer[Client]
	extra  map[string]any
}

// Client returns the bound client, or nil when unbound or collected.
func (o *Object) Client() *Client { return o.client.Value() }

// Extra returns payload keys that did not map to a field. Values are kept as
// received; JSON numbers appear as json.Number.
func (o *Object) Extra() map[string]any { return o.extra }

func (o *Object) bind(c *Client) {
	if c != nil {
		o.client = weak.Make(c)
	}
}

var (
	objectType = reflect.TypeFor[Object]()

	errNoPayload = errors.New("payload is empty")

	formDecoder = newFormDecoder()
)

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.SetAliasTag("json")
	d.IgnoreUnknownKeys(true)
	return d
}

// Bind attaches c to every Object embedded in v. v must be a pointer.
func Bind(v any, c *Client) {
	attach(reflect.ValueOf(v), c, nil)
}

// Unbind clears the client reference and extra keys of every Object
// embedded in v, leaving only decoded fields. v must be a pointer.
func Unbind(v any) {
	detach(reflect.ValueOf(v))
}

func detach(v reflect.Value) {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			detach(v.Elem())
		}
	case reflect.Struct:
		for i := range v.NumField() {
			fv := v.Field(i)
			if fv.Type() == objectType {
				if fv.CanSet() {
					fv.Set(reflect.Zero(objectType))
				}
				continue
			}
			if v.Type().Field(i).IsExported() {
				detach(fv)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			detach(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Elem().Kind() != reflect.Pointer {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			detach(iter.Value())
		}
	}
}

// bindResult decodes a payload into R, validates it and binds its objects.
func bindResult[R any](c *Client, payload any) (*R, error) {
	if payload == nil && wantsFields(reflect.TypeFor[R]()) {
		return nil, fmt.Errorf("decode payload into %s: %w", reflect.TypeFor[R](), errNoPayload)
	}
	out := new(R)
	if err := c.decodePayload(payload, out); err != nil {
		return nil, err
	}
	if err := c.validator.Validate(out); err != nil {
		return nil, err
	}
	attach(reflect.ValueOf(out), c, payload)
	return out, nil
}

// wantsFields reports whether t, after dereferencing pointers, is a struct
// with at least one field. A null or empty payload cannot satisfy it.
func wantsFields(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t.NumField() > 0
}

// decodePayload converts a resolved payload into the value out points to.
func (c *Client) decodePayload(payload any, out any) error {
	target := reflect.ValueOf(out).Elem()
	if payload != nil && !isJSONTree(payload) {
		pv := reflect.ValueOf(payload)
		if pv.Type().AssignableTo(target.Type()) {
			target.Set(pv)
			return nil
		}
	}

	if values, ok := payload.(url.Values); ok {
		if target.Kind() == reflect.Struct {
			if err := formDecoder.Decode(out, values); err != nil {
				return fmt.Errorf("decode form payload: %w", err)
			}
			return nil
		}
		payload = flattenValues(values)
	}

	data, err := c.serializer.Encode(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := c.serializer.Decode(data, out); err != nil {
		return fmt.Errorf("decode payload into %s: %w", target.Type(), err)
	}
	return nil
}

// isJSONTree reports whether v is a generic decoded tree. Such payloads go
// through the serializer even when assignable, so R sees numbers the way
// the client's serializer decodes them.
func isJSONTree(v any) bool {
	switch v.(type) {
	case map[string]any, []any, json.Number:
		return true
	}
	return false
}

func flattenValues(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
		} else {
			out[k] = vs
		}
	}
	return out
}

// attach walks v alongside its raw payload, binding c to every embedded
// Object and recording the payload keys no field captured.
func attach(v reflect.Value, c *Client, raw any) {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			attach(v.Elem(), c, raw)
		}
	case reflect.Struct:
		attachStruct(v, c, raw)
	case reflect.Slice, reflect.Array:
		items, _ := raw.([]any)
		for i := range v.Len() {
			var item any
			if i < len(items) {
				item = items[i]
			}
			attach(v.Index(i), c, item)
		}
	case reflect.Map:
		if v.Type().Elem().Kind() != reflect.Pointer {
			return
		}
		m, _ := raw.(map[string]any)
		iter := v.MapRange()
		for iter.Next() {
			var item any
			if iter.Key().Kind() == reflect.String {
				item = m[iter.Key().String()]
			}
			attach(iter.Value(), c, item)
		}
	}
}

func attachStruct(v reflect.Value, c *Client, raw any) {
	m, _ := raw.(map[string]any)
	t := v.Type()
	known := make(map[string]bool, t.NumField())

	var obj *Object
	for i := range t.NumField() {
		f := t.Field(i)
		fv := v.Field(i)
		if f.Type == objectType {
			if fv.CanAddr() {
				obj = fv.Addr().Interface().(*Object)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			for _, name := range fieldNames(f.Type) {
				known[name] = true
			}
			attach(fv, c, raw)
			continue
		}
		name := jsonFieldName(f)
		known[name] = true
		attach(fv, c, m[name])
	}

	if obj == nil {
		return
	}
	obj.bind(c)
	for k, val := range m {
		if known[k] {
			continue
		}
		if obj.extra == nil {
			obj.extra = make(map[string]any)
		}
		obj.extra[k] = val
	}
}

// fieldNames lists the JSON names of a struct's exported fields, including
// those promoted from embedded structs.
func fieldNames(t reflect.Type) []string {
	var names []string
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || f.Type == objectType {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			names = append(names, fieldNames(f.Type)...)
			continue
		}
		names = append(names, jsonFieldName(f))
	}
	return names
}
