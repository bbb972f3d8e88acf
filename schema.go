package apiclient

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

var (
	contentSourceType = reflect.TypeFor[ContentSource]()
	fileResponseType  = reflect.TypeFor[FileResponse]()
)

// typeToSchema converts a reflect.Type to an OpenAPI schema.
func typeToSchema(t reflect.Type) *openapi3.Schema {
	return schemaFor(t, make(map[reflect.Type]bool))
}

func schemaFor(t reflect.Type, visiting map[reflect.Type]bool) *openapi3.Schema {
	if isContentSource(t) || t == fileResponseType {
		return openapi3.NewStringSchema().WithFormat("binary")
	}
	if t.Kind() == reflect.Pointer {
		return schemaFor(t.Elem(), visiting)
	}

	switch t {
	case reflect.TypeFor[time.Time]():
		return openapi3.NewDateTimeSchema()
	case reflect.TypeFor[time.Duration]():
		return openapi3.NewStringSchema().WithFormat("duration")
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema()
	case reflect.Bool:
		return openapi3.NewBoolSchema()
	case reflect.Int64, reflect.Uint64:
		return openapi3.NewInt64Schema()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return openapi3.NewIntegerSchema()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema()
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return openapi3.NewBytesSchema()
		}
		return openapi3.NewArraySchema().WithItems(schemaFor(t.Elem(), visiting))
	case reflect.Array:
		return openapi3.NewArraySchema().WithItems(schemaFor(t.Elem(), visiting))
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return openapi3.NewObjectSchema()
		}
		return openapi3.NewObjectSchema().WithAdditionalProperties(schemaFor(t.Elem(), visiting))
	case reflect.Struct:
		if visiting[t] {
			return openapi3.NewObjectSchema()
		}
		visiting[t] = true
		defer delete(visiting, t)
		s := openapi3.NewObjectSchema()
		addStructProperties(s, t, visiting)
		return s
	default:
		return &openapi3.Schema{}
	}
}

// addStructProperties adds the JSON-visible fields of t to s, flattening
// embedded structs. Fields tagged validate:"required" are required.
func addStructProperties(s *openapi3.Schema, t reflect.Type, visiting map[reflect.Type]bool) {
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || f.Type == objectType {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			addStructProperties(s, f.Type, visiting)
			continue
		}
		if name, _ := tagOptions(f.Tag.Get("json")); name == "-" {
			continue
		}

		name := jsonFieldName(f)
		prop := schemaFor(f.Type, visiting)
		if doc := f.Tag.Get("doc"); doc != "" {
			prop.Description = doc
		}
		s.WithProperty(name, prop)
		if isRequired(f) {
			s.Required = append(s.Required, name)
		}
	}
}

func isRequired(f reflect.StructField) bool {
	for rule := range strings.SplitSeq(f.Tag.Get("validate"), ",") {
		if rule == "required" {
			return true
		}
	}
	return false
}

func isContentSource(t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return t == contentSourceType
	}
	return t.Implements(contentSourceType)
}
