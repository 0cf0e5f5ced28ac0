package repository

import (
	"context"

	"ragapi/entities"
)

type DocumentRepository interface {
	Create(ctx context.Context, d *entities.Document) error
	ListByCollection(ctx context.Context, collectionID string) ([]entities.Document, error)
	FindByID(ctx context.Context, collectionID, fileID string) (*entities.Document, error)
	Delete(ctx context.Context, collectionID, fileID string) error
}
