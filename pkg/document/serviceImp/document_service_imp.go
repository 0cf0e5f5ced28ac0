package serviceImp

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"ragapi/entities"
	"ragapi/pkg/apperr"
	"ragapi/pkg/document/repository"
	"ragapi/pkg/document/service"
	"ragapi/pkg/embedder"
	"ragapi/pkg/extractor"
	"ragapi/pkg/splitter"
	"ragapi/pkg/validation"
	"ragapi/pkg/vectorstore"
)

type CollectionGetter interface {
	Get(ctx context.Context, id string) (*entities.Collection, error)
}

type Index interface {
	Upsert(ctx context.Context, collectionID string, chunks []vectorstore.Chunk) error
	DeleteFile(ctx context.Context, collectionID, fileID string) (int64, error)
}

type EmbedderResolver interface {
	Resolve(model string) embedder.Embedder
}

type BatchEmbedder interface {
	Embed(ctx context.Context, e embedder.Embedder, texts []string) ([][]float32, error)
}

// Deps gathers the collaborators of the ingest pipeline.
type Deps struct {
	Collections CollectionGetter
	Documents   repository.DocumentRepository
	Index       Index
	Extractors  *extractor.Registry
	Splitter    *splitter.Splitter
	Embedders   EmbedderResolver
	Batcher     BatchEmbedder
	Fetcher     *Fetcher
	Validator   *validation.Validator
	Log         *zap.Logger
}

type svc struct {
	Deps
	now func() time.Time
}

func New(d Deps) service.DocumentService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &svc{Deps: d, now: time.Now}
}

func (s *svc) Ingest(ctx context.Context, collectionID, fileName string, data []byte) (*service.IngestResult, error) {
	col, err := s.Collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	return s.ingest(ctx, col, filepath.Base(fileName), data, "")
}

func (s *svc) ingest(ctx context.Context, col *entities.Collection, fileName string, data []byte, sourceURL string) (*service.IngestResult, error) {
	start := s.now()
	if len(data) == 0 {
		return nil, apperr.InvalidField("file", "file is empty")
	}

	ext, err := s.Extractors.Resolve(fileName, col.ExtractionStrategy)
	if err != nil {
		return nil, err
	}
	pages, err := ext.Extract(ctx, data)
	if err != nil {
		return nil, err
	}

	fileID := ulid.Make().String()
	var (
		rows  []vectorstore.Chunk
		texts []string
	)
	for _, p := range pages {
		for _, piece := range s.Splitter.Split(p.Text) {
			rows = append(rows, vectorstore.Chunk{
				ID:       fmt.Sprintf("%s-%05d", fileID, len(rows)),
				FileID:   fileID,
				Ord:      len(rows),
				Text:     piece,
				FileName: fileName,
				Page:     p.Number,
				Metadata: map[string]string{
					"h1":  fmt.Sprintf("%s p%d", fileName, p.Number),
					"key": fileName,
				},
				Model: col.EmbeddingModel,
			})
			texts = append(texts, piece)
		}
	}
	if len(rows) == 0 {
		return nil, apperr.InvalidField("file", "no extractable text found")
	}

	vecs, err := s.Batcher.Embed(ctx, s.Embedders.Resolve(col.EmbeddingModel), texts)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Embedding = embedder.Encode(vecs[i])
		rows[i].Dim = len(vecs[i])
	}

	if err := s.Index.Upsert(ctx, col.ID, rows); err != nil {
		return nil, err
	}

	doc := &entities.Document{
		FileID:       fileID,
		CollectionID: col.ID,
		FileName:     fileName,
		ContentType:  contentType(fileName, data),
		Extractor:    ext.Name(),
		SourceURL:    sourceURL,
		Pages:        len(pages),
		Chunks:       len(rows),
		SizeBytes:    int64(len(data)),
		Status:       entities.DocumentProcessed,
	}
	if err := s.Documents.Create(ctx, doc); err != nil {
		// keep the index consistent with the registry
		if _, derr := s.Index.DeleteFile(context.WithoutCancel(ctx), col.ID, fileID); derr != nil {
			s.Log.Error("remove chunks of unrecorded document", zap.String("file_id", fileID), zap.Error(derr))
		}
		return nil, err
	}

	s.Log.Info("document ingested",
		zap.String("collection_id", col.ID),
		zap.String("file_id", fileID),
		zap.String("file_name", fileName),
		zap.String("extractor", ext.Name()),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(rows)),
		zap.Duration("took", s.now().Sub(start)),
	)
	return &service.IngestResult{FileID: fileID, FileName: fileName, Status: doc.Status, Chunks: len(rows)}, nil
}

func (s *svc) IngestURL(ctx context.Context, collectionID string, in service.URLInput) (*service.IngestResult, error) {
	col, err := s.Collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if err := s.Validator.Validate(&in); err != nil {
		return nil, err
	}
	page, err := s.Fetcher.Fetch(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.FileName)
	if name == "" {
		name = page.Name
	}
	// the extension decides the extractor, so it must match what was fetched
	if ft := extractor.FileType(name); ft != page.Type && !(ft == "htm" && page.Type == "html") {
		name += "." + page.Type
	}
	return s.ingest(ctx, col, filepath.Base(name), page.Body, in.URL)
}

func (s *svc) List(ctx context.Context, collectionID string) ([]entities.Document, error) {
	if _, err := s.Collections.Get(ctx, collectionID); err != nil {
		return nil, err
	}
	return s.Documents.ListByCollection(ctx, collectionID)
}

func (s *svc) Delete(ctx context.Context, collectionID, fileID string) error {
	if _, err := s.Collections.Get(ctx, collectionID); err != nil {
		return err
	}
	doc, err := s.Documents.FindByID(ctx, collectionID, fileID)
	if err != nil {
		return err
	}
	if err := s.Documents.Delete(ctx, collectionID, fileID); err != nil {
		return err
	}
	removed, err := s.Index.DeleteFile(ctx, collectionID, fileID)
	if err != nil {
		// put the registry row back so the document stays listed with its chunks
		if rerr := s.Documents.Create(context.WithoutCancel(ctx), doc); rerr != nil {
			s.Log.Error("restore document after index failure",
				zap.String("collection_id", collectionID),
				zap.String("file_id", fileID),
				zap.Error(rerr),
			)
		}
		return err
	}
	s.Log.Info("document deleted",
		zap.String("collection_id", collectionID),
		zap.String("file_id", fileID),
		zap.Int64("chunks", removed),
	)
	return nil
}

func contentType(fileName string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
