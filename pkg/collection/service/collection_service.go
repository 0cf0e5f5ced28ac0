package service

import (
	"context"

	"ragapi/entities"
)

type CreateInput struct {
	Name               string            `json:"name" validate:"required"`
	Authors            []string          `json:"authors" validate:"required,min=1,dive,required"`
	ExtractionStrategy map[string]string `json:"extraction_strategy" validate:"required"`
	EmbeddingModel     string            `json:"embedding_model" validate:"required"`
}

// ListParams holds the raw listing parameters. Filters is a JSON object of
// exact matches and Sort a comma list such as "name,-created_at".
type ListParams struct {
	Page    int
	PerPage int
	Filters string
	Sort    string
}

type CollectionService interface {
	Create(ctx context.Context, in CreateInput) (*entities.Collection, error)
	Get(ctx context.Context, id string) (*entities.Collection, error)
	List(ctx context.Context, p ListParams) ([]entities.Collection, int64, error)
	Update(ctx context.Context, id string, patch entities.CollectionPatch) (*entities.Collection, error)
	Delete(ctx context.Context, id string) error
}
