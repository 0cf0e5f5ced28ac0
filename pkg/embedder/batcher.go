package embedder

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Batcher fans batches of texts out over a shared worker pool and
// reassembles the vectors in input order.
type Batcher struct {
	pool *ants.Pool
	size int
}

func NewBatcher(pool *ants.Pool, batchSize int) *Batcher {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Batcher{pool: pool, size: batchSize}
}

func (b *Batcher) Embed(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(texts); start += b.size {
		start := start
		end := min(start+b.size, len(texts))
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("embed batch %d: panic: %v", start/b.size, r))
				}
			}()
			if ctx.Err() != nil {
				return
			}
			vecs, err := e.Embed(ctx, texts[start:end])
			if err != nil {
				fail(err)
				return
			}
			if len(vecs) != end-start {
				fail(fmt.Errorf("embed batch %d: got %d vectors for %d texts", start/b.size, len(vecs), end-start))
				return
			}
			copy(out[start:end], vecs)
		}
		if err := b.pool.Submit(task); err != nil {
			wg.Done()
			fail(fmt.Errorf("submit embed batch: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
