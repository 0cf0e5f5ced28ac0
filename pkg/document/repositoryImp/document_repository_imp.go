package repositoryImp

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ragapi/entities"
	"ragapi/pkg/apperr"
	"ragapi/pkg/document/repository"
)

type repo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.DocumentRepository { return &repo{db} }

func (r *repo) Create(ctx context.Context, d *entities.Document) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return apperr.Internal("record document", err)
	}
	return nil
}

func (r *repo) ListByCollection(ctx context.Context, collectionID string) ([]entities.Document, error) {
	ds := []entities.Document{}
	if err := r.db.WithContext(ctx).Where("collection_id = ?", collectionID).Order("created_at ASC, file_id ASC").Find(&ds).Error; err != nil {
		return nil, apperr.Internal("list documents", err)
	}
	return ds, nil
}

func (r *repo) FindByID(ctx context.Context, collectionID, fileID string) (*entities.Document, error) {
	var d entities.Document
	err := r.db.WithContext(ctx).Where("collection_id = ? AND file_id = ?", collectionID, fileID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("document %s not found in collection %s", fileID, collectionID)
	}
	if err != nil {
		return nil, apperr.Internal("load document", err)
	}
	return &d, nil
}

func (r *repo) Delete(ctx context.Context, collectionID, fileID string) error {
	res := r.db.WithContext(ctx).Where("collection_id = ? AND file_id = ?", collectionID, fileID).Delete(&entities.Document{})
	if res.Error != nil {
		return apperr.Internal("delete document", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("document %s not found in collection %s", fileID, collectionID)
	}
	return nil
}
