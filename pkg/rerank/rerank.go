// Package rerank rescores retrieved chunks. Strategies only change scores;
// callers re-sort afterwards.
package rerank

import (
	"sort"
	"strings"

	"github.com/viant/vec/search"

	"ragapi/pkg/apperr"
	"ragapi/pkg/embedder"
)

type Candidate struct {
	ID     string
	Text   string
	Score  float64
	Vector []float32
}

type Strategy interface {
	Name() string
	Rerank(query string, cands []Candidate) []Candidate
}

var strategies = map[string]Strategy{
	"none":      None{},
	"keyword":   Keyword{SimilarityWeight: 0.8},
	"diversity": Diversity{Penalty: 0.3},
}

// Get returns the named strategy. An empty name means none.
func Get(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "none"
	}
	s, ok := strategies[key]
	if !ok {
		return nil, apperr.InvalidField("rerank_strategy", "unknown strategy "+name+"; expected one of "+strings.Join(Names(), ", "))
	}
	return s, nil
}

func Names() []string {
	out := make([]string, 0, len(strategies))
	for k := range strategies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type None struct{}

func (None) Name() string                                   { return "none" }
func (None) Rerank(_ string, cands []Candidate) []Candidate { return cands }

// Keyword blends similarity with the share of query terms present in the
// chunk text.
type Keyword struct {
	SimilarityWeight float64
}

func (Keyword) Name() string { return "keyword" }

func (k Keyword) Rerank(query string, cands []Candidate) []Candidate {
	terms := unique(embedder.Tokenize(query))
	if len(terms) == 0 {
		return cands
	}
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		words := map[string]struct{}{}
		for _, w := range embedder.Tokenize(c.Text) {
			words[w] = struct{}{}
		}
		hit := 0
		for _, t := range terms {
			if _, ok := words[t]; ok {
				hit++
			}
		}
		coverage := float64(hit) / float64(len(terms))
		c.Score = k.SimilarityWeight*c.Score + (1-k.SimilarityWeight)*coverage
		out[i] = c
	}
	return out
}

// Diversity is maximal marginal relevance: candidates are picked greedily
// and each pick is penalised by its closeness to what was already picked.
type Diversity struct {
	Penalty float64
}

func (Diversity) Name() string { return "diversity" }

func (d Diversity) Rerank(_ string, cands []Candidate) []Candidate {
	remaining := make([]Candidate, len(cands))
	copy(remaining, cands)
	mags := make(map[string]float32, len(cands))
	for _, c := range cands {
		mags[c.ID] = search.Float32s(c.Vector).Magnitude()
	}

	out := make([]Candidate, 0, len(cands))
	for len(remaining) > 0 {
		best, bestScore := -1, 0.0
		for i, c := range remaining {
			maxSim := 0.0
			for _, s := range out {
				if sim := cosine(c, s, mags); sim > maxSim {
					maxSim = sim
				}
			}
			adj := c.Score - d.Penalty*maxSim
			if best < 0 || adj > bestScore || (adj == bestScore && c.ID < remaining[best].ID) {
				best, bestScore = i, adj
			}
		}
		picked := remaining[best]
		if bestScore < 0 {
			bestScore = 0
		}
		picked.Score = bestScore
		out = append(out, picked)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}

func cosine(a, b Candidate, mags map[string]float32) float64 {
	ma, mb := mags[a.ID], mags[b.ID]
	if ma == 0 || mb == 0 || len(a.Vector) != len(b.Vector) {
		return 0
	}
	return float64(1 - search.Float32s(a.Vector).CosineDistance(b.Vector))
}

func unique(in []string) []string {
	seen := map[string]struct{}{}
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
