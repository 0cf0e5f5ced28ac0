package service

import "context"

const DefaultThreshold = 0.7

type Query struct {
	Q         string  `json:"q" validate:"required"`
	N         int     `json:"n" validate:"gte=1,lte=100"`
	Threshold float64 `json:"similarity_threshold" validate:"gte=0,lte=1"`
	Rerank    string  `json:"rerank_strategy"`
	Fuzzy     bool    `json:"fuzzy"`
	// Token is the caller's bearer token, forwarded in remote mode.
	Token string `json:"-"`
}

type Result struct {
	DocumentID string         `json:"document_id"`
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata"`
}

type Response struct {
	Results        []Result `json:"results"`
	Total          int      `json:"total"`
	ProcessingTime string   `json:"processing_time"`
}

type SearchService interface {
	Search(ctx context.Context, collectionID string, q Query) (*Response, error)
}
