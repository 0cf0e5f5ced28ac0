package service

import (
	"context"

	"ragapi/entities"
)

type IngestResult struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks"`
}

type URLInput struct {
	URL      string `json:"url" validate:"required,http_url"`
	FileName string `json:"file_name"`
}

type DocumentService interface {
	Ingest(ctx context.Context, collectionID, fileName string, data []byte) (*IngestResult, error)
	IngestURL(ctx context.Context, collectionID string, in URLInput) (*IngestResult, error)
	List(ctx context.Context, collectionID string) ([]entities.Document, error)
	Delete(ctx context.Context, collectionID, fileID string) error
}
