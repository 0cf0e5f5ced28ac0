package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cached keeps vectors in Redis under emb:<model>:<sha256(text)>. Any
// Redis failure falls through to the wrapped embedder.
type Cached struct {
	next Embedder
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *zap.Logger
}

func NewCached(next Embedder, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *Cached {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl, log: log}
}

func (c *Cached) Model() string { return c.next.Model() }

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.next.Model() + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("embedding cache read failed", zap.Error(err))
		vals = make([]any, len(texts))
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missIdx = append(missIdx, i)
			continue
		}
		vec, err := Decode([]byte(s))
		if err != nil || len(vec) == 0 {
			missIdx = append(missIdx, i)
			continue
		}
		out[i] = vec
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	miss := make([]string, len(missIdx))
	for j, i := range missIdx {
		miss[j] = texts[i]
	}
	fresh, err := c.next.Embed(ctx, miss)
	if err != nil {
		return nil, err
	}

	pipe := c.rdb.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		pipe.Set(ctx, keys[i], Encode(fresh[j]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("embedding cache write failed", zap.Error(err), zap.Int("vectors", len(missIdx)))
	}
	c.log.Debug("embedding cache",
		zap.String("model", c.Model()),
		zap.Int("hits", len(texts)-len(missIdx)),
		zap.Int("misses", len(missIdx)),
	)
	return out, nil
}
