package entities

import "time"

const DocumentProcessed = "processed"

// Document records one ingested file. Its chunks live in the collection's
// vector index and carry FileID as provenance.
type Document struct {
	FileID       string    `gorm:"primaryKey;type:text" json:"file_id"`
	CollectionID string    `gorm:"index" json:"collection_id"`
	FileName     string    `json:"file_name"`
	ContentType  string    `json:"content_type"`
	Extractor    string    `json:"extractor"`
	SourceURL    string    `json:"source_url,omitempty"`
	Pages        int       `json:"pages"`
	Chunks       int       `json:"chunks"`
	SizeBytes    int64     `json:"size_bytes"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}
