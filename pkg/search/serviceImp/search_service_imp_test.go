package serviceImp

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragapi/config"
	"ragapi/entities"
	"ragapi/pkg/apperr"
	"ragapi/pkg/embedder"
	"ragapi/pkg/search/service"
	"ragapi/pkg/validation"
	"ragapi/pkg/vectorstore"
)

type cols map[string]*entities.Collection

func (c cols) Get(_ context.Context, id string) (*entities.Collection, error) {
	if col, ok := c[id]; ok {
		return col, nil
	}
	return nil, apperr.NotFound("collection %s not found", id)
}

// fixed embeds every text as the same vector.
type fixed []float32

func (f fixed) Model() string { return "fixed" }

func (f fixed) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f
	}
	return out, nil
}

type resolver struct{ e embedder.Embedder }

func (r resolver) Resolve(string) embedder.Embedder { return r.e }

func newSearch(t *testing.T) (service.SearchService, string) {
	t.Helper()
	ctx := context.Background()
	store, err := vectorstore.New(filepath.Join(t.TempDir(), "vectors"), nil)
	require.NoError(t, err)

	id := uuid.NewString()
	chunk := func(cid, text string, vec ...float32) vectorstore.Chunk {
		return vectorstore.Chunk{
			ID: cid, FileID: "f1", Text: text, FileName: "notes.txt", Page: 1,
			Metadata:  map[string]string{"h1": "notes.txt p1", "key": "notes.txt"},
			Embedding: embedder.Encode(vec), Dim: len(vec), Model: "fixed",
		}
	}
	require.NoError(t, store.Upsert(ctx, id, []vectorstore.Chunk{
		chunk("c1", "the quick brown fox", 1, 0, 0),
		chunk("c2", "a lazy dog sleeps", 0.8, 0.6, 0),
		chunk("c3", "foxes and hounds", 0.6, 0.8, 0),
		chunk("c4", "unrelated weather report", 0, 1, 0),
		chunk("c5", "the elephant wanders", 0, 0, 1),
	}))

	getter := cols{id: {ID: id, EmbeddingModel: "fixed"}}
	return New(getter, store, resolver{fixed{1, 0, 0}}, validation.New(), nil), id
}

func ids(res *service.Response) []string {
	out := make([]string, 0, len(res.Results))
	for _, r := range res.Results {
		out = append(out, r.Metadata["chunk_id"].(string))
	}
	return out
}

func TestSearchRanksAboveThreshold(t *testing.T) {
	s, id := newSearch(t)
	res, err := s.Search(context.Background(), id, service.Query{Q: "fox", N: 10, Threshold: 0.5})
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2", "c3"}, ids(res))
	assert.Equal(t, 3, res.Total)
	for i, r := range res.Results {
		assert.GreaterOrEqual(t, r.Score, 0.5)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, res.Results[i-1].Score)
		}
	}
	assert.InDelta(t, 1.0, res.Results[0].Score, 1e-5)
	assert.InDelta(t, 0.8, res.Results[1].Score, 1e-5)
	assert.Regexp(t, `^\d+\.\d{3}s$`, res.ProcessingTime)

	top := res.Results[0]
	assert.Equal(t, "f1", top.DocumentID)
	assert.Equal(t, "the quick brown fox", top.Text)
	assert.Equal(t, "notes.txt", top.Metadata["file_name"])
	assert.Equal(t, 1, top.Metadata["page"])
	assert.Equal(t, "notes.txt p1", top.Metadata["h1"])
}

func TestSearchTruncatesButCountsAll(t *testing.T) {
	s, id := newSearch(t)
	res, err := s.Search(context.Background(), id, service.Query{Q: "fox", N: 1, Threshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids(res))
	assert.Equal(t, 3, res.Total)

	res, err = s.Search(context.Background(), id, service.Query{Q: "fox", N: 10, Threshold: 0.9})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids(res))
}

func TestSearchFuzzyAddsTypoMatches(t *testing.T) {
	s, id := newSearch(t)
	q := service.Query{Q: "elephnt", N: 10, Threshold: 0.9}

	res, err := s.Search(context.Background(), id, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids(res))

	q.Fuzzy = true
	res, err = s.Search(context.Background(), id, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c5"}, ids(res))
}

func TestSearchKeywordRerankReappliesThreshold(t *testing.T) {
	s, id := newSearch(t)
	res, err := s.Search(context.Background(), id, service.Query{Q: "fox", N: 10, Threshold: 0.5, Rerank: "keyword"})
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2"}, ids(res))
	assert.Equal(t, 2, res.Total)
	assert.InDelta(t, 1.0, res.Results[0].Score, 1e-5)
	assert.InDelta(t, 0.64, res.Results[1].Score, 1e-5)
}

func TestSearchEmptyIndex(t *testing.T) {
	store, err := vectorstore.New(filepath.Join(t.TempDir(), "vectors"), nil)
	require.NoError(t, err)
	id := uuid.NewString()
	s := New(cols{id: {ID: id}}, store, resolver{fixed{1, 0}}, validation.New(), nil)

	res, err := s.Search(context.Background(), id, service.Query{Q: "anything", N: 5, Threshold: 0})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.NotNil(t, res.Results)
	assert.Zero(t, res.Total)
}

func TestSearchRejects(t *testing.T) {
	s, id := newSearch(t)
	ok := service.Query{Q: "fox", N: 10, Threshold: 0.7}

	tests := []struct {
		name  string
		edit  func(*service.Query)
		field string
	}{
		{"blank q", func(q *service.Query) { q.Q = "   " }, "q"},
		{"n zero", func(q *service.Query) { q.N = 0 }, "n"},
		{"n too large", func(q *service.Query) { q.N = 101 }, "n"},
		{"threshold above one", func(q *service.Query) { q.Threshold = 2 }, "similarity_threshold"},
		{"threshold negative", func(q *service.Query) { q.Threshold = -0.1 }, "similarity_threshold"},
		{"unknown rerank", func(q *service.Query) { q.Rerank = "magic" }, "rerank_strategy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ok
			tt.edit(&q)
			_, err := s.Search(context.Background(), id, q)
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, apperr.KindInvalidArgument, ae.Kind)
			require.NotEmpty(t, ae.Fields)
			assert.Equal(t, tt.field, ae.Fields[0].Field)
		})
	}
}

func TestSearchMissingCollection(t *testing.T) {
	s, _ := newSearch(t)
	_, err := s.Search(context.Background(), uuid.NewString(), service.Query{Q: "fox", N: 10, Threshold: 0.7})
	assert.True(t, apperr.IsNotFound(err))
}

func TestTermScore(t *testing.T) {
	terms := queryTerms("Quick quick FOXX cat")
	assert.Equal(t, []string{"quick", "foxx", "cat"}, terms)

	assert.InDelta(t, 2.0/3, termScore(terms, "the quick brown fox", maxEdits), 1e-9)
	assert.InDelta(t, 0.0, termScore(terms, "cats", maxEdits), 1e-9, "short terms match exactly")
	assert.InDelta(t, 1.0, termScore(terms, "quick fox cat", maxEdits), 1e-9)

	assert.InDelta(t, 1.0/3, termScore(terms, "the quick brown fox", 0), 1e-9)
}

func TestSearchLocalModelMatchesTermsAtDefaults(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.New(filepath.Join(t.TempDir(), "vectors"), nil)
	require.NoError(t, err)
	emb := embedder.NewResolver(config.EmbeddingConfig{LocalDim: 64}, nil, nil)

	id := uuid.NewString()
	texts := []string{"The quick brown fox jumps over the lazy dog", "the elephant wanders"}
	vecs, err := emb.Resolve("m").Embed(ctx, texts)
	require.NoError(t, err)
	chunks := make([]vectorstore.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = vectorstore.Chunk{
			ID: fmt.Sprintf("c%d", i), FileID: "f1", Ord: i, Text: text, FileName: "fox.pdf", Page: 1,
			Embedding: embedder.Encode(vecs[i]), Dim: len(vecs[i]), Model: "m",
		}
	}
	require.NoError(t, store.Upsert(ctx, id, chunks))

	s := New(cols{id: {ID: id, EmbeddingModel: "m"}}, store, emb, validation.New(), nil)
	res, err := s.Search(ctx, id, service.Query{Q: "fox", N: 10, Threshold: service.DefaultThreshold})
	require.NoError(t, err)

	require.NotEmpty(t, res.Results)
	assert.GreaterOrEqual(t, res.Total, 1)
	assert.Equal(t, "c0", res.Results[0].Metadata["chunk_id"])
	assert.InDelta(t, 1.0, res.Results[0].Score, 1e-9)
	for _, r := range res.Results {
		assert.GreaterOrEqual(t, r.Score, service.DefaultThreshold)
	}
}
