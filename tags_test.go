package apiclient_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apiclient"
)

type pagination struct {
	Page  int `query:"page"`
	Limit int `json:"limit,omitempty"`
}

type listUsersParams struct {
	pagination
	OrgID   string `path:"org_id"`
	Token   string `header:"Authorization"`
	Search  string `json:"q"`
	Sort    string `default:"name"`
	Ignored string `json:"-"`
	hidden  string //nolint:unused // unexported fields are skipped
}

type duplicateParams struct {
	A string `query:"id"`
	B string `query:"id"`
}

type twoLocationParams struct {
	A string `query:"id" header:"id"`
}

type sameNameDifferentLocation struct {
	A string `query:"id"`
	B string `header:"id"`
}

func TestParamsOf(t *testing.T) {
	t.Parallel()

	params, err := apiclient.ParamsOf(reflect.TypeFor[listUsersParams]())
	require.NoError(t, err)

	type row struct {
		Name      string
		Location  apiclient.Location
		OmitEmpty bool
		Default   string
	}
	var got []row
	for _, p := range params {
		got = append(got, row{p.Name, p.Location, p.OmitEmpty, p.Default})
	}

	assert.Equal(t, []row{
		{Name: "page", Location: apiclient.LocationQuery},
		{Name: "limit", OmitEmpty: true},
		{Name: "org_id", Location: apiclient.LocationPlaceholder},
		{Name: "Authorization", Location: apiclient.LocationHeader},
		{Name: "q"},
		{Name: "Sort", Default: "name"},
	}, got)
	assert.Equal(t, reflect.TypeFor[int](), params[0].Type())
}

func TestParamsOf_errors(t *testing.T) {
	t.Parallel()

	tests := map[string]reflect.Type{
		"duplicate name in one location": reflect.TypeFor[duplicateParams](),
		"two location tags":              reflect.TypeFor[twoLocationParams](),
	}

	for name, typ := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := apiclient.ParamsOf(typ)
			assert.ErrorIs(t, err, apiclient.ErrDeclaration)
		})
	}
}

func TestParamsOf_same_name_in_two_locations(t *testing.T) {
	t.Parallel()

	params, err := apiclient.ParamsOf(reflect.TypeFor[sameNameDifferentLocation]())
	require.NoError(t, err)
	assert.Len(t, params, 2)
}

func TestParamsOf_non_struct(t *testing.T) {
	t.Parallel()

	params, err := apiclient.ParamsOf(reflect.TypeFor[map[string]any]())
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestTagHelpers(t *testing.T) {
	t.Parallel()

	name, opts := apiclient.TagOptions("id,omitempty,string")
	assert.Equal(t, "id", name)
	assert.Equal(t, "omitempty,string", opts)
	assert.True(t, apiclient.TagContains(opts, "string"))
	assert.False(t, apiclient.TagContains(opts, "omit"))

	f, ok := reflect.TypeFor[listUsersParams]().FieldByName("Search")
	require.True(t, ok)
	assert.Equal(t, "q", apiclient.JSONFieldName(f))

	f, ok = reflect.TypeFor[listUsersParams]().FieldByName("Ignored")
	require.True(t, ok)
	assert.Equal(t, "Ignored", apiclient.JSONFieldName(f))
}
