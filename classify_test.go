package apiclient_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apiclient"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		param         apiclient.Param
		verb          string
		methodDefault apiclient.Location
		want          apiclient.Location
		wantErr       error
	}{
		"explicit location wins over method default": {
			param:         apiclient.Param{Name: "id", Location: apiclient.LocationHeader},
			verb:          http.MethodGet,
			methodDefault: apiclient.LocationBody,
			want:          apiclient.LocationHeader,
		},
		"method default wins over verb": {
			param:         apiclient.Param{Name: "id"},
			verb:          http.MethodGet,
			methodDefault: apiclient.LocationBody,
			want:          apiclient.LocationBody,
		},
		"get defaults to query": {
			param: apiclient.Param{Name: "id"},
			verb:  http.MethodGet,
			want:  apiclient.LocationQuery,
		},
		"post defaults to body": {
			param: apiclient.Param{Name: "id"},
			verb:  http.MethodPost,
			want:  apiclient.LocationBody,
		},
		"delete defaults to body": {
			param: apiclient.Param{Name: "id"},
			verb:  http.MethodDelete,
			want:  apiclient.LocationBody,
		},
		"lowercase verb": {
			param: apiclient.Param{Name: "id"},
			verb:  "head",
			want:  apiclient.LocationQuery,
		},
		"unknown verb": {
			param:   apiclient.Param{Name: "id"},
			verb:    "BREW",
			wantErr: apiclient.ErrUnknownVerb,
		},
		"explicit location ignores unknown verb": {
			param: apiclient.Param{Name: "id", Location: apiclient.LocationQuery},
			verb:  "BREW",
			want:  apiclient.LocationQuery,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := apiclient.Classify(tc.param, tc.verb, tc.methodDefault)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.ErrorIs(t, err, apiclient.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestVerbLocation(t *testing.T) {
	t.Parallel()

	for _, verb := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace} {
		loc, err := apiclient.VerbLocation(verb)
		require.NoError(t, err)
		assert.Equal(t, apiclient.LocationQuery, loc, verb)
	}
	for _, verb := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		loc, err := apiclient.VerbLocation(verb)
		require.NoError(t, err)
		assert.Equal(t, apiclient.LocationBody, loc, verb)
	}
}

func TestParseLocation(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in      string
		want    apiclient.Location
		wantErr bool
	}{
		"body":        {in: "body", want: apiclient.LocationBody},
		"query":       {in: "query", want: apiclient.LocationQuery},
		"header":      {in: "header", want: apiclient.LocationHeader},
		"placeholder": {in: "placeholder", want: apiclient.LocationPlaceholder},
		"path alias":  {in: "path", want: apiclient.LocationPlaceholder},
		"file":        {in: "file", want: apiclient.LocationFile},
		"auto":        {in: "auto", want: apiclient.LocationAuto},
		"unknown":     {in: "cookie", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := apiclient.ParseLocation(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, apiclient.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLocationString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "placeholder", apiclient.LocationPlaceholder.String())
	assert.Equal(t, "Location(42)", apiclient.Location(42).String())
}

func TestFieldConstructors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, apiclient.Field{Name: "a", Value: 1, Location: apiclient.LocationHeader}, apiclient.Header("a", 1))
	assert.Equal(t, apiclient.Field{Name: "a", Value: 1, Location: apiclient.LocationQuery}, apiclient.Query("a", 1))
	assert.Equal(t, apiclient.Field{Name: "a", Value: 1, Location: apiclient.LocationBody}, apiclient.Body("a", 1))
	assert.Equal(t, apiclient.Field{Name: "a", Value: 1, Location: apiclient.LocationPlaceholder}, apiclient.Placeholder("a", 1))
}
