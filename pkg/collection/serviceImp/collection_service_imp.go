package serviceImp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragapi/entities"
	"ragapi/pkg/apperr"
	"ragapi/pkg/collection/repository"
	"ragapi/pkg/collection/service"
	"ragapi/pkg/validation"
)

// IndexDropper removes a collection's vector index.
type IndexDropper interface {
	Drop(ctx context.Context, collectionID string) error
}

type svc struct {
	r       repository.CollectionRepository
	index   IndexDropper
	v       *validation.Validator
	log     *zap.Logger
	nowFunc func() time.Time
}

func New(r repository.CollectionRepository, index IndexDropper, v *validation.Validator, log *zap.Logger) service.CollectionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &svc{r: r, index: index, v: v, log: log, nowFunc: time.Now}
}

func (s *svc) Create(ctx context.Context, in service.CreateInput) (*entities.Collection, error) {
	if err := s.v.Validate(&in); err != nil {
		return nil, err
	}
	c := &entities.Collection{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		Authors:            in.Authors,
		CreatedAt:          s.nowFunc().UTC(),
		ExtractionStrategy: in.ExtractionStrategy,
		EmbeddingModel:     in.EmbeddingModel,
	}
	if err := s.r.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("collection created", zap.String("collection_id", c.ID), zap.String("embedding_model", c.EmbeddingModel))
	return c, nil
}

func (s *svc) Get(ctx context.Context, id string) (*entities.Collection, error) {
	return s.r.FindByID(ctx, id)
}

func (s *svc) List(ctx context.Context, p service.ListParams) ([]entities.Collection, int64, error) {
	offset, limit, err := pagination(p.Page, p.PerPage)
	if err != nil {
		return nil, 0, err
	}
	filters, err := parseFilters(p.Filters)
	if err != nil {
		return nil, 0, err
	}
	order, err := parseSort(p.Sort)
	if err != nil {
		return nil, 0, err
	}
	return s.r.List(ctx, repository.ListQuery{Offset: offset, Limit: limit, Filters: filters, Sort: order})
}

func (s *svc) Update(ctx context.Context, id string, patch entities.CollectionPatch) (*entities.Collection, error) {
	if err := s.v.Validate(&patch); err != nil {
		return nil, err
	}
	c, err := s.r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return c, nil
	}

	if patch.EmbeddingModel != nil && *patch.EmbeddingModel != c.EmbeddingModel {
		n, err := s.r.CountDocuments(ctx, id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, apperr.InvalidField("embedding_model", "cannot change the embedding model of a collection that already has documents")
		}
	}

	// apply only the fields that were sent
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Authors != nil {
		c.Authors = *patch.Authors
	}
	if patch.ExtractionStrategy != nil {
		c.ExtractionStrategy = *patch.ExtractionStrategy
	}
	if patch.EmbeddingModel != nil {
		c.EmbeddingModel = *patch.EmbeddingModel
	}
	if err := s.r.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *svc) Delete(ctx context.Context, id string) error {
	if _, err := s.r.FindByID(ctx, id); err != nil {
		return err
	}
	err := s.r.Delete(ctx, id, func(ctx context.Context) error {
		return s.index.Drop(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("collection deleted", zap.String("collection_id", id))
	return nil
}
