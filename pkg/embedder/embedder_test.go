package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragapi/config"
	"ragapi/pkg/apperr"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashingDeterministicAndNormalised(t *testing.T) {
	h := NewHashing("m", 128)
	vecs, err := h.Embed(context.Background(), []string{"The quick brown fox", "the QUICK brown fox!", "tax forms"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 128)

	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[1]), 1e-6)
	assert.Less(t, cosine(vecs[0], vecs[2]), 0.5)

	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestHashingEmptyText(t *testing.T) {
	vecs, err := NewHashing("m", 8).Embed(context.Background(), []string{"  "})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vecs[0])
}

func TestCodecRoundTripAndErrors(t *testing.T) {
	v := []float32{1.5, -2, 0, float32(math.Pi)}
	got, err := Decode(Encode(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)
	assert.Equal(t, []byte{0, 0, 0xc0, 0x3f}, Encode([]float32{1.5}))

	_, err = Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestOpenAIOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body.Model)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL+"/", "k", "text-embedding-3-small", srv.Client(), nil)
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "", "m", nil, nil).Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindUpstream, ae.Kind)
	assert.Equal(t, http.StatusBadGateway, ae.HTTPStatus())
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAICountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "", "m", nil, nil).Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

type countingEmbedder struct {
	Embedder
	calls  atomic.Int32
	inputs atomic.Int32
	err    error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.inputs.Add(int32(len(texts)))
	if c.err != nil {
		return nil, c.err
	}
	return c.Embedder.Embed(ctx, texts)
}

func TestCachedServesRepeatsFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &countingEmbedder{Embedder: NewHashing("m", 16)}
	c := NewCached(inner, rdb, time.Hour, nil)

	first, err := c.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.inputs.Load())

	second, err := c.Embed(context.Background(), []string{"beta", "gamma", "alpha"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, inner.inputs.Load(), "only gamma is embedded again")
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])

	keys := mr.Keys()
	require.Len(t, keys, 3)
	assert.True(t, strings.HasPrefix(keys[0], "emb:m:"))

	mr.FastForward(2 * time.Hour)
	assert.Empty(t, mr.Keys())
}

func TestCachedDegradesWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	inner := &countingEmbedder{Embedder: NewHashing("m", 16)}
	vecs, err := NewCached(inner, rdb, time.Hour, nil).Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestResolver(t *testing.T) {
	r := NewResolver(config.EmbeddingConfig{Endpoint: "http://emb.internal", LocalDim: 32, Timeout: time.Second}, nil, nil)

	local := r.Resolve("local-mini")
	assert.IsType(t, &Hashing{}, local)
	assert.Same(t, local, r.Resolve("local-mini"))

	remote := r.Resolve("text-embedding-3-small")
	assert.IsType(t, &OpenAI{}, remote)
	assert.Equal(t, "text-embedding-3-small", remote.Model())

	assert.True(t, r.IsLocal("local-mini"))
	assert.False(t, r.IsLocal("text-embedding-3-small"))

	noEndpoint := NewResolver(config.EmbeddingConfig{LocalDim: 32}, nil, nil)
	assert.IsType(t, &Hashing{}, noEndpoint.Resolve("m"))
	assert.True(t, noEndpoint.IsLocal("m"))
}

func TestBatcherPreservesOrder(t *testing.T) {
	pool, err := ants.NewPool(3)
	require.NoError(t, err)
	defer pool.Release()

	texts := make([]string, 23)
	for i := range texts {
		texts[i] = strings.Repeat("w", i+1)
	}
	inner := &countingEmbedder{Embedder: NewHashing("m", 16)}
	got, err := NewBatcher(pool, 5).Embed(context.Background(), inner, texts)
	require.NoError(t, err)
	assert.EqualValues(t, 5, inner.calls.Load())

	want, err := NewHashing("m", 16).Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBatcherReturnsFirstError(t *testing.T) {
	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	boom := errors.New("boom")
	inner := &countingEmbedder{Embedder: NewHashing("m", 16), err: boom}
	_, err = NewBatcher(pool, 2).Embed(context.Background(), inner, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, boom)
}
