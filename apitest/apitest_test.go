package apitest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apiclient"
	"github.com/bjaus/apiclient/apitest"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type itemParams struct {
	ID int `path:"id"`
}

var (
	getItem = apiclient.MustDeclare[itemParams, item](
		apiclient.WithVerb(http.MethodGet),
		apiclient.WithPath("/items/{id}"),
	)
	downloadItem = apiclient.MustDeclare[itemParams, apiclient.FileResponse](
		apiclient.WithVerb(http.MethodGet),
		apiclient.WithPath("/items/{id}/raw"),
	)
)

func TestTransport_queue_then_handler(t *testing.T) {
	t.Parallel()

	c, tr := apitest.NewClient(t, "https://api.example.com")
	tr.Respond(http.StatusOK, item{ID: 1, Name: "first"})
	tr.RespondWith(func(req *apiclient.Request) (*apiclient.Response, error) {
		return &apiclient.Response{
			StatusCode: http.StatusOK,
			Headers:    http.Header{},
			Body:       map[string]any{"id": 2.0, "name": req.URL},
		}, nil
	})

	got, err := getItem.Call(context.Background(), c, &itemParams{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)

	got, err = getItem.Call(context.Background(), c, &itemParams{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/items/2", got.Name)

	reqs := tr.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "https://api.example.com/items/1", reqs[0].URL)
	assert.Same(t, reqs[1], tr.LastRequest())
}

func TestTransport_default_not_found(t *testing.T) {
	t.Parallel()

	c, tr := apitest.NewClient(t, "https://api.example.com")
	assert.Nil(t, tr.LastRequest())

	_, err := getItem.Call(context.Background(), c, &itemParams{ID: 1})
	assert.Equal(t, http.StatusNotFound, apiclient.ErrorStatus(err))
}

func TestTransport_handler_error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c, tr := apitest.NewClient(t, "https://api.example.com")
	tr.RespondWith(func(*apiclient.Request) (*apiclient.Response, error) { return nil, boom })

	_, err := getItem.Call(context.Background(), c, &itemParams{ID: 1})
	assert.ErrorIs(t, err, boom)
}

func TestTransport_stream_response(t *testing.T) {
	t.Parallel()

	c, tr := apitest.NewClient(t, "https://api.example.com")
	tr.Respond(http.StatusOK, []byte("raw bytes"))

	fr, err := downloadItem.Call(context.Background(), c, &itemParams{ID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fr.Close() })
	assert.Equal(t, apiclient.BufferMemory, fr.Buffer())
	assert.Equal(t, int64(len("raw bytes")), fr.Size())
}

func TestTransport_Stream(t *testing.T) {
	t.Parallel()

	tr := apitest.NewTransport().ServeStream("https://cdn.example.com/a", []byte("abcde"))

	var chunks []string
	for chunk, err := range tr.Stream(context.Background(), "https://cdn.example.com/a", nil, 2) {
		require.NoError(t, err)
		chunks = append(chunks, string(chunk))
	}
	assert.Equal(t, []string{"ab", "cd", "e"}, chunks)

	for _, err := range tr.Stream(context.Background(), "https://cdn.example.com/missing", nil, 2) {
		assert.ErrorIs(t, err, apiclient.ErrTransport)
	}
}

func TestRespond_normalizes_body(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body any
		want any
	}{
		"struct": {body: item{ID: 3, Name: "x"}, want: map[string]any{"id": json.Number("3"), "name": "x"}},
		"string": {body: "plain", want: "plain"},
		"bytes":  {body: []byte("b"), want: []byte("b")},
		"values": {body: url.Values{"a": {"1"}}, want: url.Values{"a": {"1"}}},
		"nil":    {body: nil, want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tr := apitest.NewTransport().Respond(http.StatusOK, tc.body)
			resp, err := tr.Dispatch(context.Background(), nil, &apiclient.Request{Method: http.MethodGet})
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Body)
		})
	}
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	c := apitest.NewServer(t, apitest.JSON(http.StatusOK, item{ID: 9, Name: "served"}))

	got, err := getItem.Call(context.Background(), c, &itemParams{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, item{ID: 9, Name: "served"}, *got)
}
