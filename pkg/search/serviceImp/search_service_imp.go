package serviceImp

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragapi/entities"
	"ragapi/pkg/apperr"
	"ragapi/pkg/embedder"
	"ragapi/pkg/rerank"
	"ragapi/pkg/search/service"
	"ragapi/pkg/validation"
	"ragapi/pkg/vectorstore"
)

const maxCandidates = 300

type CollectionGetter interface {
	Get(ctx context.Context, id string) (*entities.Collection, error)
}

type Index interface {
	Query(ctx context.Context, collectionID string, vec []float32, k int) ([]vectorstore.Match, error)
	Chunks(ctx context.Context, collectionID string) ([]vectorstore.Chunk, error)
}

type EmbedderResolver interface {
	Resolve(model string) embedder.Embedder
}

// localResolver is implemented by resolvers that know when a model is
// served by the hashing embedder. Those collections always get the
// lexical pass.
type localResolver interface {
	IsLocal(model string) bool
}

type svc struct {
	cols  CollectionGetter
	index Index
	emb   EmbedderResolver
	v     *validation.Validator
	log   *zap.Logger
}

func New(cols CollectionGetter, index Index, emb EmbedderResolver, v *validation.Validator, log *zap.Logger) service.SearchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &svc{cols: cols, index: index, emb: emb, v: v, log: log}
}

// validate checks the query and resolves its rerank strategy. Shared with
// the remote searcher so both modes reject the same requests.
func validate(v *validation.Validator, q *service.Query) (rerank.Strategy, error) {
	q.Q = strings.TrimSpace(q.Q)
	if err := v.Validate(q); err != nil {
		return nil, err
	}
	return rerank.Get(q.Rerank)
}

type candidate struct {
	chunk  vectorstore.Chunk
	vector []float32
	score  float64
}

func (s *svc) Search(ctx context.Context, collectionID string, q service.Query) (*service.Response, error) {
	start := time.Now()
	strategy, err := validate(s.v, &q)
	if err != nil {
		return nil, err
	}
	col, err := s.cols.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	vecs, err := s.emb.Resolve(col.EmbeddingModel).Embed(ctx, []string{q.Q})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, apperr.Internal("embed query", fmt.Errorf("got %d vectors for 1 query", len(vecs)))
	}

	matches, err := s.index.Query(ctx, col.ID, vecs[0], min(3*q.N, maxCandidates))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*candidate, len(matches))
	for _, m := range matches {
		byID[m.Chunk.ID] = &candidate{chunk: m.Chunk, vector: m.Vector, score: clamp(float64(m.Score))}
	}

	lexical := q.Fuzzy
	if lr, ok := s.emb.(localResolver); ok && lr.IsLocal(col.EmbeddingModel) {
		lexical = true
	}
	if lexical {
		edits := 0
		if q.Fuzzy {
			edits = maxEdits
		}
		if err := s.addLexical(ctx, col.ID, q.Q, edits, byID); err != nil {
			return nil, err
		}
	}

	cands := make([]rerank.Candidate, 0, len(byID))
	for id, c := range byID {
		if c.score >= q.Threshold {
			cands = append(cands, rerank.Candidate{ID: id, Text: c.chunk.Text, Score: c.score, Vector: c.vector})
		}
	}
	cands = strategy.Rerank(q.Q, cands)

	kept := cands[:0]
	for _, c := range cands {
		c.Score = clamp(c.Score)
		if c.Score >= q.Threshold {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].ID < kept[j].ID
	})

	total := len(kept)
	if len(kept) > q.N {
		kept = kept[:q.N]
	}
	results := make([]service.Result, 0, len(kept))
	for _, c := range kept {
		results = append(results, toResult(byID[c.ID].chunk, c.Score))
	}

	elapsed := time.Since(start)
	s.log.Info("search",
		zap.String("collection_id", col.ID),
		zap.Int("n", q.N),
		zap.Float64("threshold", q.Threshold),
		zap.String("rerank", strategy.Name()),
		zap.Bool("fuzzy", q.Fuzzy),
		zap.Bool("lexical", lexical),
		zap.Int("candidates", len(byID)),
		zap.Int("total", total),
		zap.Duration("took", elapsed),
	)
	return &service.Response{Results: results, Total: total, ProcessingTime: formatElapsed(elapsed)}, nil
}

// addLexical scores every chunk by query term coverage and keeps the better
// of the lexical and vector score per chunk.
func (s *svc) addLexical(ctx context.Context, collectionID, query string, edits int, byID map[string]*candidate) error {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}
	chunks, err := s.index.Chunks(ctx, collectionID)
	if err != nil {
		return err
	}
	for _, ch := range chunks {
		fs := termScore(terms, ch.Text, edits)
		if fs == 0 {
			continue
		}
		if c, ok := byID[ch.ID]; ok {
			c.score = math.Max(c.score, fs)
			continue
		}
		vec, err := ch.Vector()
		if err != nil {
			vec = nil
		}
		byID[ch.ID] = &candidate{chunk: ch, vector: vec, score: fs}
	}
	return nil
}

func toResult(ch vectorstore.Chunk, score float64) service.Result {
	meta := map[string]any{
		"chunk_id":  ch.ID,
		"file_name": ch.FileName,
		"page":      ch.Page,
	}
	for k, v := range ch.Metadata {
		meta[k] = v
	}
	return service.Result{DocumentID: ch.FileID, Text: ch.Text, Score: score, Metadata: meta}
}

func clamp(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
