package serviceImp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ragapi/pkg/apperr"
	"ragapi/pkg/search/service"
	"ragapi/pkg/validation"
)

// remote forwards searches to an upstream service with the same HTTP
// contract, passing the caller's bearer token along.
type remote struct {
	base  string
	httpc *http.Client
	v     *validation.Validator
	log   *zap.Logger
}

func NewRemote(baseURL string, httpc *http.Client, v *validation.Validator, log *zap.Logger) service.SearchService {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &remote{base: strings.TrimRight(baseURL, "/"), httpc: httpc, v: v, log: log}
}

func (r *remote) Search(ctx context.Context, collectionID string, q service.Query) (*service.Response, error) {
	if _, err := validate(r.v, &q); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", q.Q)
	params.Set("n", strconv.Itoa(q.N))
	params.Set("similarity_threshold", strconv.FormatFloat(q.Threshold, 'f', -1, 64))
	params.Set("fuzzy", strconv.FormatBool(q.Fuzzy))
	if q.Rerank != "" {
		params.Set("rerank_strategy", q.Rerank)
	}
	target := fmt.Sprintf("%s/v1/collections/%s/search?%s", r.base, url.PathEscape(collectionID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperr.Internal("build upstream request", err)
	}
	req.Header.Set("Authorization", "Bearer "+q.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, apperr.Upstream(http.StatusBadGateway, "search upstream unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		r.log.Warn("search upstream error", zap.Int("status", resp.StatusCode), zap.String("collection_id", collectionID))
		return nil, apperr.Upstream(resp.StatusCode, upstreamMessage(body, resp.StatusCode), nil)
	}

	var out service.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Upstream(http.StatusBadGateway, "decode upstream search response", err)
	}
	if out.Results == nil {
		out.Results = []service.Result{}
	}
	return &out, nil
}

// upstreamMessage pulls a human readable message out of an error body in
// either envelope form or the {"detail": ...} form.
func upstreamMessage(body []byte, status int) string {
	var env struct {
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Message != "" {
			return env.Message
		}
		if s, ok := env.Detail.(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("search upstream returned %d", status)
}
