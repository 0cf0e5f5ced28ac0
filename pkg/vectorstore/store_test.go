package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ragapi/pkg/apperr"
	"ragapi/pkg/embedder"
)

func chunk(id, file string, ord int, v ...float32) Chunk {
	return Chunk{ID: id, FileID: file, Ord: ord, Text: id, Embedding: embedder.Encode(v), Dim: len(v), Model: "m"}
}

func countChunks(ctx context.Context, s *Store, col, fileID string) (int64, error) {
	var n int64
	_, err := s.with(ctx, col, false, func(db *gorm.DB) error {
		q := db.Model(&Chunk{})
		if fileID != "" {
			q = q.Where("file_id = ?", fileID)
		}
		return q.Count(&n).Error
	})
	return n, err
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "vectors"), nil)
	require.NoError(t, err)
	return s
}

func TestQueryRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	col := uuid.NewString()

	require.NoError(t, s.Upsert(ctx, col, []Chunk{
		chunk("a", "f1", 0, 1, 0),
		chunk("b", "f1", 1, 0.7, 0.7),
		chunk("c", "f2", 0, 0, 1),
		chunk("d", "f2", 1, 1, 0, 0), // other dimension
	}))

	got, err := s.Query(ctx, col, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Chunk.ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-5)
	assert.Equal(t, "b", got[1].Chunk.ID)
	assert.InDelta(t, 0.7071, got[1].Score, 1e-3)
	assert.Equal(t, []float32{1, 0}, got[0].Vector)

	all, err := s.Query(ctx, col, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestQuerySkipsZeroVectors(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	col := uuid.NewString()

	require.NoError(t, s.Upsert(ctx, col, []Chunk{
		chunk("zero", "f1", 0, 0, 0),
		chunk("half", "f1", 1, 0.5, 0.5),
	}))

	got, err := s.Query(ctx, col, []float32{2, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "half", got[0].Chunk.ID)
	assert.InDelta(t, 0.7071, got[0].Score, 1e-3)

	none, err := s.Query(ctx, col, []float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	col := uuid.NewString()

	require.NoError(t, s.Upsert(ctx, col, []Chunk{chunk("a", "f1", 0, 1, 0)}))
	updated := chunk("a", "f1", 0, 0, 1)
	updated.Text = "new"
	require.NoError(t, s.Upsert(ctx, col, []Chunk{updated}))

	chunks, err := s.Chunks(ctx, col)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "new", chunks[0].Text)
}

func TestMissingIndexIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	col := uuid.NewString()

	got, err := s.Query(ctx, col, []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := s.DeleteFile(ctx, col, "f")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Drop(ctx, col))
	_, err = os.Stat(filepath.Join(s.Dir(), col+".db"))
	assert.True(t, os.IsNotExist(err), "read-only calls must not create the index")
}

func TestDeleteFileOnlyTouchesThatFile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	col := uuid.NewString()

	require.NoError(t, s.Upsert(ctx, col, []Chunk{
		chunk("a", "f1", 0, 1, 0),
		chunk("b", "f1", 1, 1, 0),
		chunk("c", "f2", 0, 1, 0),
	}))
	n, err := s.DeleteFile(ctx, col, "f1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	left, err := countChunks(ctx, s, col, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, left)
	inF2, err := countChunks(ctx, s, col, "f2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, inF2)
}

func TestDropRemovesFile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	col := uuid.NewString()
	require.NoError(t, s.Upsert(ctx, col, []Chunk{chunk("a", "f1", 0, 1, 0)}))
	require.FileExists(t, filepath.Join(s.Dir(), col+".db"))

	require.NoError(t, s.Drop(ctx, col))
	assert.NoFileExists(t, filepath.Join(s.Dir(), col+".db"))

	got, err := s.Chunks(ctx, col)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRejectsNonUUIDCollection(t *testing.T) {
	s := newStore(t)
	err := s.Upsert(context.Background(), "../../etc/passwd", []Chunk{chunk("a", "f", 0, 1)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
}
