package repository

import (
	"context"

	"ragapi/entities"
)

// Filter is an exact-equality match on an allow-listed column.
type Filter struct {
	Column string
	Value  any
}

type SortField struct {
	Column string
	Desc   bool
}

type ListQuery struct {
	Offset  int
	Limit   int
	Filters []Filter
	Sort    []SortField
}

type CollectionRepository interface {
	Create(ctx context.Context, c *entities.Collection) error
	FindByID(ctx context.Context, id string) (*entities.Collection, error)
	List(ctx context.Context, q ListQuery) ([]entities.Collection, int64, error)
	Save(ctx context.Context, c *entities.Collection) error
	// Delete removes the collection and its document rows. cascade runs
	// inside the same transaction and aborts it when it fails.
	Delete(ctx context.Context, id string, cascade func(ctx context.Context) error) error
	CountDocuments(ctx context.Context, id string) (int64, error)
}
