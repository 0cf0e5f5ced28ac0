package repositoryImp

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ragapi/entities"
	"ragapi/pkg/apperr"
	"ragapi/pkg/collection/repository"
)

type repo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.CollectionRepository { return &repo{db} }

func (r *repo) Create(ctx context.Context, c *entities.Collection) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return apperr.Internal("create collection", err)
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, id string) (*entities.Collection, error) {
	var c entities.Collection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("collection %s not found", id)
		}
		return nil, apperr.Internal("load collection", err)
	}
	return &c, nil
}

func (r *repo) List(ctx context.Context, q repository.ListQuery) ([]entities.Collection, int64, error) {
	filtered := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Model(&entities.Collection{})
		for _, f := range q.Filters {
			tx = tx.Where(clause.Eq{Column: clause.Column{Name: f.Column}, Value: f.Value})
		}
		return tx
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal("count collections", err)
	}

	tx := filtered()
	for _, s := range q.Sort {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Column}, Desc: s.Desc})
	}
	out := make([]entities.Collection, 0, q.Limit)
	if err := tx.Offset(q.Offset).Limit(q.Limit).Find(&out).Error; err != nil {
		return nil, 0, apperr.Internal("list collections", err)
	}
	return out, total, nil
}

func (r *repo) Save(ctx context.Context, c *entities.Collection) error {
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		return apperr.Internal("save collection", err)
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id string, cascade func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", id).Delete(&entities.Document{}).Error; err != nil {
			return apperr.Internal("delete documents", err)
		}
		res := tx.Where("id = ?", id).Delete(&entities.Collection{})
		if res.Error != nil {
			return apperr.Internal("delete collection", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("collection %s not found", id)
		}
		if cascade != nil {
			return cascade(ctx)
		}
		return nil
	})
}

func (r *repo) CountDocuments(ctx context.Context, id string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&entities.Document{}).Where("collection_id = ?", id).Count(&n).Error; err != nil {
		return 0, apperr.Internal("count documents", err)
	}
	return n, nil
}
