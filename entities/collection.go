package entities

import "time"

type Collection struct {
	ID                 string            `gorm:"primaryKey;type:text" json:"id"`
	Name               string            `gorm:"index" json:"name"`
	Authors            []string          `gorm:"serializer:json" json:"authors"`
	CreatedAt          time.Time         `gorm:"index" json:"created_at"`
	ExtractionStrategy map[string]string `gorm:"serializer:json" json:"extraction_strategy"`
	EmbeddingModel     string            `json:"embedding_model"`
}

// CollectionPatch carries a partial update; nil fields are left alone.
// id and created_at are not patchable.
type CollectionPatch struct {
	Name               *string            `json:"name" validate:"omitnil,min=1"`
	Authors            *[]string          `json:"authors" validate:"omitnil,min=1,dive,required"`
	ExtractionStrategy *map[string]string `json:"extraction_strategy" validate:"omitnil,min=1"`
	EmbeddingModel     *string            `json:"embedding_model" validate:"omitnil,min=1"`
}

func (p CollectionPatch) Empty() bool {
	return p.Name == nil && p.Authors == nil && p.ExtractionStrategy == nil && p.EmbeddingModel == nil
}
