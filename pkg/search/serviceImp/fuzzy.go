package serviceImp

import (
	"github.com/agnivade/levenshtein"

	"ragapi/pkg/embedder"
)

// maxEdits is the Levenshtein distance within which a word still counts
// as a fuzzy match. Terms shorter than minFuzzyLen must match exactly.
const (
	maxEdits    = 1
	minFuzzyLen = 4
)

func queryTerms(q string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range embedder.Tokenize(q) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// termScore is the fraction of terms that occur in text, allowing up to
// edits typos per term.
func termScore(terms []string, text string, edits int) float64 {
	words := map[string]struct{}{}
	for _, w := range embedder.Tokenize(text) {
		words[w] = struct{}{}
	}
	hit := 0
	for _, t := range terms {
		if _, ok := words[t]; ok {
			hit++
			continue
		}
		if edits == 0 || len([]rune(t)) < minFuzzyLen {
			continue
		}
		for w := range words {
			if levenshtein.ComputeDistance(t, w) <= edits {
				hit++
				break
			}
		}
	}
	return float64(hit) / float64(len(terms))
}
