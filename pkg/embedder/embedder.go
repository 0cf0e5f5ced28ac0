// Package embedder turns text into vectors. A collection's embedding_model
// picks the implementation: an OpenAI-compatible endpoint when one is
// configured, the local hashing embedder otherwise.
package embedder

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ragapi/config"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Resolver hands out one embedder per model name, shared across requests.
type Resolver struct {
	cfg     config.EmbeddingConfig
	httpc   *http.Client
	limiter *rate.Limiter
	cache   redis.Cmdable
	log     *zap.Logger

	mu      sync.Mutex
	byModel map[string]Embedder
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(cfg config.EmbeddingConfig, cache redis.Cmdable, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Resolver{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		cache:   cache,
		log:     log,
		byModel: map[string]Embedder{},
	}
}

func (r *Resolver) Resolve(model string) Embedder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byModel[model]; ok {
		return e
	}

	var e Embedder
	if r.IsLocal(model) {
		e = NewHashing(model, r.cfg.LocalDim)
	} else {
		e = NewOpenAI(r.cfg.Endpoint, r.cfg.APIKey, model, r.httpc, r.limiter)
	}
	if r.cache != nil {
		e = NewCached(e, r.cache, r.cfg.CacheTTL, r.log)
	}
	r.byModel[model] = e
	return e
}

// IsLocal reports whether model resolves to the hashing embedder, either by
// name or because no endpoint is configured.
func (r *Resolver) IsLocal(model string) bool {
	return IsLocalModel(model) || r.cfg.Endpoint == ""
}

// IsLocalModel reports whether model names the in-process hashing embedder.
func IsLocalModel(model string) bool {
	m := strings.ToLower(model)
	return m == "local" || strings.HasPrefix(m, "local-") || strings.HasPrefix(m, "hash")
}
