package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"ragapi/pkg/apperr"
)

// OpenAI talks to any endpoint serving POST /v1/embeddings.
type OpenAI struct {
	endpoint, key, model string
	httpc                *http.Client
	limiter              *rate.Limiter
}

// NewOpenAI builds a client; limiter may be nil.
func NewOpenAI(endpoint, key, model string, httpc *http.Client, limiter *rate.Limiter) *OpenAI {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &OpenAI{endpoint: endpoint, key: key, model: model, httpc: httpc, limiter: limiter}
}

func (c *OpenAI) Model() string { return c.model }

func (c *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	b, err := json.Marshal(map[string]any{"model": c.model, "input": texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.endpoint, "/")+"/v1/embeddings", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, apperr.Upstream(http.StatusBadGateway, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Upstream(http.StatusBadGateway,
			fmt.Sprintf("embedding provider returned %d", resp.StatusCode),
			fmt.Errorf("%s", bytes.TrimSpace(msg)))
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Upstream(http.StatusBadGateway, "decode embedding response", err)
	}
	if len(out.Data) != len(texts) {
		return nil, apperr.Upstream(http.StatusBadGateway,
			fmt.Sprintf("embedding provider returned %d vectors for %d inputs", len(out.Data), len(texts)), nil)
	}
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	res := make([][]float32, len(out.Data))
	for i := range out.Data {
		res[i] = out.Data[i].Embedding
	}
	return res, nil
}
