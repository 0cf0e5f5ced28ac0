// Package vectorstore keeps each collection's chunks and their embeddings
// in a SQLite file of its own under a base directory. Files are opened for
// the duration of one operation and closed before it returns.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/viant/vec/search"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ragapi/database"
	"ragapi/pkg/apperr"
	"ragapi/pkg/embedder"
)

// Chunk is one embedded span of a source file.
type Chunk struct {
	ID        string `gorm:"primaryKey;type:text"`
	FileID    string `gorm:"index"`
	Ord       int    `gorm:"index"`
	Text      string
	FileName  string
	Page      int
	Metadata  map[string]string `gorm:"serializer:json"`
	Embedding []byte
	Dim       int
	Model     string
	CreatedAt time.Time
}

// Vector decodes the stored embedding.
func (c Chunk) Vector() ([]float32, error) { return embedder.Decode(c.Embedding) }

type Match struct {
	Chunk  Chunk
	Vector []float32
	// Score is cosine similarity in [-1, 1].
	Score float32
}

type Store struct {
	dir string
	log *zap.Logger
}

func New(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) Dir() string { return s.dir }

// path maps a collection id to its index file. Only UUIDs are accepted.
func (s *Store) path(collectionID string) (string, error) {
	id, err := uuid.Parse(collectionID)
	if err != nil {
		return "", apperr.InvalidField("collection_id", "must be a UUID")
	}
	return filepath.Join(s.dir, id.String()+".db"), nil
}

// with opens the collection's index, runs fn and closes it. When create is
// false and no index exists yet fn is not called and ok is false.
func (s *Store) with(ctx context.Context, collectionID string, create bool, fn func(db *gorm.DB) error) (ok bool, err error) {
	path, err := s.path(collectionID)
	if err != nil {
		return false, err
	}
	if !create {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
	}

	db, err := gorm.Open(sqlite.Open(database.DSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return false, apperr.Internal("open vector index", err)
	}
	defer func() {
		if cerr := database.Close(db); cerr != nil {
			s.log.Warn("close vector index", zap.String("collection_id", collectionID), zap.Error(cerr))
		}
	}()

	if create {
		if err := db.AutoMigrate(&Chunk{}); err != nil {
			return false, apperr.Internal("migrate vector index", err)
		}
	}
	if err := fn(db.WithContext(ctx)); err != nil {
		return true, err
	}
	return true, nil
}

// Upsert writes chunks, replacing rows with the same id.
func (s *Store) Upsert(ctx context.Context, collectionID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	_, err := s.with(ctx, collectionID, true, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(chunks, 200).Error
		})
	})
	return err
}

// Query returns up to k chunks closest to vec by cosine similarity, best
// first. Chunks embedded with a different dimension are skipped.
func (s *Store) Query(ctx context.Context, collectionID string, vec []float32, k int) ([]Match, error) {
	if k <= 0 || len(vec) == 0 {
		return nil, nil
	}
	q := search.Float32s(vec)
	qm := q.Magnitude()
	if qm == 0 {
		return nil, nil
	}

	var (
		matches []Match
		skipped int
	)
	_, err := s.with(ctx, collectionID, false, func(db *gorm.DB) error {
		var batch []Chunk
		return db.Where("dim = ?", len(vec)).FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
			for _, c := range batch {
				v, err := c.Vector()
				if err != nil || len(v) != len(vec) {
					skipped++
					continue
				}
				m := search.Float32s(v).Magnitude()
				if m == 0 {
					continue
				}
				score := 1 - q.CosineDistance(v)
				matches = append(matches, Match{Chunk: c, Vector: v, Score: score})
			}
			return nil
		}).Error
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.log.Warn("skipped chunks with mismatched vectors", zap.String("collection_id", collectionID), zap.Int("skipped", skipped))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Chunks lists every chunk of the collection in file and ordinal order.
func (s *Store) Chunks(ctx context.Context, collectionID string) ([]Chunk, error) {
	var out []Chunk
	_, err := s.with(ctx, collectionID, false, func(db *gorm.DB) error {
		return db.Order("file_id").Order("ord").Find(&out).Error
	})
	return out, err
}

// DeleteFile removes the chunks ingested from one file.
func (s *Store) DeleteFile(ctx context.Context, collectionID, fileID string) (int64, error) {
	var n int64
	_, err := s.with(ctx, collectionID, false, func(db *gorm.DB) error {
		res := db.Where("file_id = ?", fileID).Delete(&Chunk{})
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}

// Drop deletes the collection's index file and its journal files.
func (s *Store) Drop(_ context.Context, collectionID string) error {
	path, err := s.path(collectionID)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return apperr.Internal("drop vector index", err)
	}
	return nil
}
