package apiclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/apiclient"
)

type account struct {
	apiclient.Object

	ID        string    `json:"id" validate:"required"`
	Email     string    `json:"email" validate:"required,email" doc:"primary contact"`
	Parent    *account  `json:"parent,omitempty"`
	Tags      []string  `json:"tags"`
	Secret    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type listAccountsParams struct {
	Page   int    `query:"page"`
	Search string `json:"q,omitempty"`
	Trace  string `header:"X-Trace"`
}

type orgAccountParams struct {
	ID string `path:"id"`
}

type fileParams struct {
	ID string `path:"id"`
}

var (
	listAccounts = apiclient.MustDeclare[listAccountsParams, []account](
		apiclient.WithVerb(http.MethodGet),
		apiclient.WithPath("/accounts"),
		apiclient.WithDataKey("items"),
	)
	getOrgAccount = apiclient.MustDeclare[orgAccountParams, account](
		apiclient.WithVerb(http.MethodGet),
		apiclient.WithPath("/orgs/{org}/accounts/{id}"),
	)
	uploadFiles = apiclient.MustDeclare[uploadParams, uploadResult](
		apiclient.WithVerb(http.MethodPost),
		apiclient.WithPath("/accounts/{id}/files"),
		apiclient.WithName("uploadFiles"),
	)
	downloadFile = apiclient.MustDeclare[fileParams, apiclient.FileResponse](
		apiclient.WithVerb(http.MethodGet),
		apiclient.WithPath("files/{id}"),
	)
	rawCreate = apiclient.MustDeclare[map[string]any, account](
		apiclient.WithVerb(http.MethodPost),
		apiclient.WithPath("/accounts"),
	)
)

func describeAll() *openapi3.T {
	return apiclient.Describe(apiclient.DescribeInfo{
		Title:   "Accounts",
		Version: "1.0.0",
		Servers: []string{"https://api.example.com"},
		DataKey: []string{"data"},
	}, listAccounts, getOrgAccount, uploadFiles, downloadFile, rawCreate)
}

func paramsByName(op *openapi3.Operation) map[string]*openapi3.Parameter {
	out := make(map[string]*openapi3.Parameter, len(op.Parameters))
	for _, ref := range op.Parameters {
		out[ref.Value.Name] = ref.Value
	}
	return out
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	doc := describeAll()
	require.NoError(t, doc.Validate(context.Background()))

	assert.Equal(t, "Accounts", doc.Info.Title)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "https://api.example.com", doc.Servers[0].URL)
	assert.ElementsMatch(t,
		[]string{"/accounts", "/orgs/{org}/accounts/{id}", "/accounts/{id}/files", "/files/{id}"},
		keys(doc.Paths))
}

func TestDescribe_parameters(t *testing.T) {
	t.Parallel()

	doc := describeAll()

	tests := map[string]struct {
		op   *openapi3.Operation
		want map[string]string
	}{
		"query and header": {
			op:   doc.Paths["/accounts"].Get,
			want: map[string]string{"page": "query", "q": "query", "X-Trace": "header"},
		},
		"path tokens without params": {
			op:   doc.Paths["/orgs/{org}/accounts/{id}"].Get,
			want: map[string]string{"id": "path", "org": "path"},
		},
		"multipart upload": {
			op:   doc.Paths["/accounts/{id}/files"].Post,
			want: map[string]string{"id": "path"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.NotNil(t, tc.op)
			got := map[string]string{}
			for name, p := range paramsByName(tc.op) {
				got[name] = p.In
				if p.In == openapi3.ParameterInPath {
					assert.True(t, p.Required, name)
				}
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDescribe_request_bodies(t *testing.T) {
	t.Parallel()

	doc := describeAll()

	assert.Nil(t, doc.Paths["/accounts"].Get.RequestBody)

	upload := doc.Paths["/accounts/{id}/files"].Post
	assert.Equal(t, "uploadFiles", upload.OperationID)
	require.NotNil(t, upload.RequestBody)
	media := upload.RequestBody.Value.Content.Get("multipart/form-data")
	require.NotNil(t, media)
	props := media.Schema.Value.Properties
	assert.ElementsMatch(t, []string{"title", "meta", "doc", "picture"}, keys(props))
	assert.Equal(t, "binary", props["doc"].Value.Format)
	assert.Equal(t, "binary", props["picture"].Value.Format)

	raw := doc.Paths["/accounts"].Post
	require.NotNil(t, raw.RequestBody)
	rawMedia := raw.RequestBody.Value.Content.Get("application/json")
	require.NotNil(t, rawMedia)
	assert.Equal(t, openapi3.TypeObject, rawMedia.Schema.Value.Type)
}

func TestDescribe_responses(t *testing.T) {
	t.Parallel()

	doc := describeAll()

	list := doc.Paths["/accounts"].Get.Responses["200"].Value.Content.Get("application/json").Schema.Value
	data := list.Properties["data"].Value
	items := data.Properties["items"].Value
	assert.Equal(t, openapi3.TypeArray, items.Type)
	assert.Equal(t, openapi3.TypeObject, items.Items.Value.Type)

	download := doc.Paths["/files/{id}"].Get.Responses["200"].Value.Content.Get("application/octet-stream")
	require.NotNil(t, download)
	assert.Equal(t, "binary", download.Schema.Value.Format)

	assert.NotNil(t, doc.Paths["/files/{id}"].Get.Responses["default"])
	assert.Equal(t, "getFilesId", doc.Paths["/files/{id}"].Get.OperationID)
}

func TestTypeToSchema(t *testing.T) {
	t.Parallel()

	s := apiclient.TypeToSchema(reflect.TypeFor[account]())
	assert.Equal(t, openapi3.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"id", "email", "parent", "tags", "created_at"}, keys(s.Properties))
	assert.ElementsMatch(t, []string{"id", "email"}, s.Required)
	assert.Equal(t, "primary contact", s.Properties["email"].Value.Description)
	assert.Equal(t, "date-time", s.Properties["created_at"].Value.Format)
	assert.Equal(t, openapi3.TypeArray, s.Properties["tags"].Value.Type)

	parent := s.Properties["parent"].Value
	assert.Equal(t, openapi3.TypeObject, parent.Type)
	assert.Empty(t, parent.Properties)

	tests := map[string]struct {
		typ        reflect.Type
		wantType   string
		wantFormat string
	}{
		"string":        {typ: reflect.TypeFor[string](), wantType: openapi3.TypeString},
		"bool":          {typ: reflect.TypeFor[bool](), wantType: openapi3.TypeBoolean},
		"int":           {typ: reflect.TypeFor[int](), wantType: openapi3.TypeInteger},
		"int64":         {typ: reflect.TypeFor[int64](), wantType: openapi3.TypeInteger, wantFormat: "int64"},
		"float":         {typ: reflect.TypeFor[float32](), wantType: openapi3.TypeNumber, wantFormat: "double"},
		"bytes":         {typ: reflect.TypeFor[[]byte](), wantType: openapi3.TypeString, wantFormat: "byte"},
		"pointer":       {typ: reflect.TypeFor[*string](), wantType: openapi3.TypeString},
		"duration":      {typ: reflect.TypeFor[time.Duration](), wantType: openapi3.TypeString, wantFormat: "duration"},
		"content":       {typ: reflect.TypeFor[apiclient.ContentSource](), wantType: openapi3.TypeString, wantFormat: "binary"},
		"buffered file": {typ: reflect.TypeFor[*apiclient.BufferedFile](), wantType: openapi3.TypeString, wantFormat: "binary"},
		"string map":    {typ: reflect.TypeFor[map[string]int](), wantType: openapi3.TypeObject},
		"array":         {typ: reflect.TypeFor[[2]int](), wantType: openapi3.TypeArray},
		"any":           {typ: reflect.TypeFor[any]()},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := apiclient.TypeToSchema(tc.typ)
			assert.Equal(t, tc.wantType, s.Type)
			assert.Equal(t, tc.wantFormat, s.Format)
		})
	}
}

func TestPathTokens(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path string
		want []string
	}{
		"none":     {path: "/users", want: nil},
		"one":      {path: "/users/{id}", want: []string{"id"}},
		"several":  {path: "/{org}/users/{id}/x", want: []string{"org", "id"}},
		"unclosed": {path: "/users/{id", want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, apiclient.PathTokens(tc.path))
		})
	}
}

func TestWriteDescription(t *testing.T) {
	t.Parallel()

	doc := apiclient.Describe(apiclient.DescribeInfo{Title: "T", Version: "1"}, getOrgAccount)

	var js bytes.Buffer
	require.NoError(t, apiclient.WriteDescription(&js, doc))
	var fromJSON map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &fromJSON))

	var ym bytes.Buffer
	require.NoError(t, apiclient.WriteDescriptionYAML(&ym, doc))
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))

	assert.Equal(t, "3.0.3", fromJSON["openapi"])
	assert.Equal(t, "3.0.3", fromYAML["openapi"])
	assert.Contains(t, fromJSON["paths"], "/orgs/{org}/accounts/{id}")
	assert.Contains(t, fromYAML["paths"], "/orgs/{org}/accounts/{id}")
}

func keys[M ~map[string]V, V any](m M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
