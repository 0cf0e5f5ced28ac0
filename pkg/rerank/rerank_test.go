package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragapi/pkg/apperr"
)

func TestGet(t *testing.T) {
	for _, name := range []string{"", "none", "Keyword", "diversity"} {
		s, err := Get(name)
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}
	_, err := Get("bm25")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
}

func TestKeywordRewardsTermCoverage(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Text: "a red fox", Score: 0.6},
		{ID: "b", Text: "unrelated text", Score: 0.65},
	}
	got := Keyword{SimilarityWeight: 0.8}.Rerank("red fox", cands)
	assert.InDelta(t, 0.8*0.6+0.2, got[0].Score, 1e-9)
	assert.InDelta(t, 0.8*0.65, got[1].Score, 1e-9)
	assert.Greater(t, got[0].Score, got[1].Score)
	assert.Equal(t, 0.6, cands[0].Score, "input is not mutated")
}

func TestDiversityPenalisesNearDuplicates(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Score: 0.9, Vector: []float32{1, 0}},
		{ID: "a-copy", Score: 0.89, Vector: []float32{1, 0}},
		{ID: "other", Score: 0.8, Vector: []float32{0, 1}},
	}
	got := Diversity{Penalty: 0.3}.Rerank("", cands)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.InDelta(t, 0.9, got[0].Score, 1e-6)
	assert.Equal(t, "other", got[1].ID)
	assert.InDelta(t, 0.8, got[1].Score, 1e-6)
	assert.Equal(t, "a-copy", got[2].ID)
	assert.InDelta(t, 0.59, got[2].Score, 1e-5)
}

func TestNoneIsIdentity(t *testing.T) {
	cands := []Candidate{{ID: "x", Score: 0.3}}
	assert.Equal(t, cands, None{}.Rerank("q", cands))
}

func TestDiversityIgnoresMissingVectors(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Score: 0.9, Vector: []float32{1, 0}},
		{ID: "zero", Score: 0.85, Vector: []float32{0, 0}},
		{ID: "lexical", Score: 0.8},
	}
	got := Diversity{Penalty: 0.3}.Rerank("", cands)
	require.Len(t, got, 3)
	for i, want := range []struct {
		id    string
		score float64
	}{{"a", 0.9}, {"zero", 0.85}, {"lexical", 0.8}} {
		assert.Equal(t, want.id, got[i].ID)
		assert.InDelta(t, want.score, got[i].Score, 1e-6)
	}
}
