package serviceImp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragapi/pkg/apperr"
	"ragapi/pkg/search/service"
	"ragapi/pkg/validation"
)

func TestRemoteForwards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/collections/abc/search", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "fox", q.Get("q"))
		assert.Equal(t, "3", q.Get("n"))
		assert.Equal(t, "0.5", q.Get("similarity_threshold"))
		assert.Equal(t, "diversity", q.Get("rerank_strategy"))
		assert.Equal(t, "true", q.Get("fuzzy"))

		_ = json.NewEncoder(w).Encode(service.Response{
			Results:        []service.Result{{DocumentID: "d1", Text: "fox", Score: 0.9}},
			Total:          1,
			ProcessingTime: "0.010s",
		})
	}))
	defer srv.Close()

	s := NewRemote(srv.URL+"/", srv.Client(), validation.New(), nil)
	res, err := s.Search(context.Background(), "abc", service.Query{
		Q: " fox ", N: 3, Threshold: 0.5, Rerank: "diversity", Fuzzy: true, Token: "tok",
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "d1", res.Results[0].DocumentID)
	assert.Equal(t, 1, res.Total)
}

func TestRemoteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Collection not found"}`))
	}))
	defer srv.Close()

	s := NewRemote(srv.URL, srv.Client(), validation.New(), nil)
	_, err := s.Search(context.Background(), "abc", service.Query{Q: "fox", N: 3, Threshold: 0.5, Token: "tok"})

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindUpstream, ae.Kind)
	assert.Equal(t, http.StatusNotFound, ae.HTTPStatus())
	assert.Equal(t, "Collection not found", ae.Message)
}

func TestRemoteValidatesLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	s := NewRemote(srv.URL, srv.Client(), validation.New(), nil)
	_, err := s.Search(context.Background(), "abc", service.Query{Q: "fox", N: 0, Threshold: 0.5})
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	assert.False(t, called)
}
