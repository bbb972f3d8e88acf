package apiclient

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Declared is anything that carries a method declaration, such as a
// *Method or a *Declaration.
type Declared interface {
	Declaration() *Declaration
}

// DescribeInfo sets document-level fields for Describe.
type DescribeInfo struct {
	Title       string
	Version     string
	Description string
	Servers     []string
	// DataKey is the client response data key. Success schemas are nested
	// under it and the method data key.
	DataKey []string
}

// Describe renders method declarations as an OpenAPI 3 document. Each
// parameter is placed where the classifier would send it.
func Describe(info DescribeInfo, methods ...Declared) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       info.Title,
			Version:     info.Version,
			Description: info.Description,
		},
		Paths: openapi3.Paths{},
	}
	for _, s := range info.Servers {
		doc.Servers = append(doc.Servers, &openapi3.Server{URL: s})
	}

	for _, m := range methods {
		decl := m.Declaration()
		path := "/" + strings.TrimPrefix(decl.Path, "/")
		item, ok := doc.Paths[path]
		if !ok {
			item = &openapi3.PathItem{}
			doc.Paths[path] = item
		}
		item.SetOperation(decl.Verb, buildOperation(decl, info.DataKey))
	}
	return doc
}

func buildOperation(decl *Declaration, clientDataKey []string) *openapi3.Operation {
	op := &openapi3.Operation{
		OperationID: decl.Name,
		Responses:   openapi3.Responses{},
	}

	body := openapi3.NewObjectSchema()
	multipart := false
	pathParams := make(map[string]bool)

	for _, p := range decl.params {
		loc, err := Classify(p, decl.Verb, decl.DefaultLocation)
		if err != nil {
			continue
		}
		schema := typeToSchema(p.typ)
		if isContentSource(p.typ) {
			loc = LocationFile
		}

		switch loc {
		case LocationQuery:
			op.AddParameter(openapi3.NewQueryParameter(p.Name).WithSchema(schema))
		case LocationHeader:
			op.AddParameter(openapi3.NewHeaderParameter(p.Name).WithSchema(schema))
		case LocationPlaceholder:
			pathParams[p.Name] = true
			op.AddParameter(openapi3.NewPathParameter(p.Name).WithSchema(schema))
		case LocationFile:
			multipart = multipart || isContentSource(p.typ)
			body.WithProperty(p.Name, schema)
		default:
			body.WithProperty(p.Name, schema)
		}
	}

	// Tokens filled by global fields still need a path parameter.
	for _, name := range pathTokens(decl.Path) {
		if !pathParams[name] {
			op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
		}
	}

	switch {
	case decl.rawParams && decl.defaultLocation() == LocationBody:
		op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
			WithContent(openapi3.NewContentWithSchema(typeToSchema(decl.paramsType), []string{"application/json"}))}
	case len(body.Properties) > 0:
		ct := "application/json"
		if multipart {
			ct = "multipart/form-data"
		}
		op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
			WithContent(openapi3.NewContentWithSchema(body, []string{ct}))}
	}

	op.Responses["200"] = &openapi3.ResponseRef{Value: successResponse(decl, clientDataKey)}
	op.Responses["default"] = &openapi3.ResponseRef{Value: openapi3.NewResponse().
		WithDescription("API error")}
	return op
}

func successResponse(decl *Declaration, clientDataKey []string) *openapi3.Response {
	resp := openapi3.NewResponse().WithDescription(http.StatusText(http.StatusOK))
	if decl.stream {
		return resp.WithContent(openapi3.NewContentWithSchema(
			openapi3.NewStringSchema().WithFormat("binary"), []string{"application/octet-stream"}))
	}

	schema := typeToSchema(decl.resultType)
	keys := append(append([]string(nil), clientDataKey...), decl.DataKey...)
	for i := len(keys) - 1; i >= 0; i-- {
		schema = openapi3.NewObjectSchema().WithProperty(keys[i], schema)
	}
	return resp.WithContent(openapi3.NewContentWithSchema(schema, []string{"application/json"}))
}

// pathTokens lists the {token} names in a path template.
func pathTokens(path string) []string {
	var names []string
	for {
		start := strings.IndexByte(path, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(path[start:], '}')
		if end < 0 {
			return names
		}
		names = append(names, path[start+1:start+end])
		path = path[start+end+1:]
	}
}

// WriteDescription writes doc as indented JSON to w.
func WriteDescription(w io.Writer, doc *openapi3.T) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteDescriptionYAML writes doc as YAML to w.
func WriteDescriptionYAML(w io.Writer, doc *openapi3.T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return err
	}
	return yaml.NewEncoder(w).Encode(tree)
}
