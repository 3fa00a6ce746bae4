package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codescope/pkg/types"
)

func setupTestStore(t *testing.T, opts Options) *SQLiteStore {
	t.Helper()
	// Use in-memory database for testing
	store, err := NewSQLiteStore(":memory:", opts)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(path string, start, end int, symbol, content string) Record {
	c := types.Chunk{
		FilePath:  path,
		StartLine: start,
		EndLine:   end,
		Content:   content,
		Language:  "go",
		Symbol:    symbol,
	}
	return Record{ID: c.ID(), Chunk: c}
}

// keywordEmbed maps text onto three axes by keyword so nearest-neighbour
// order is predictable.
func keywordEmbed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := []float32{0.01, 0.01, 0.01}
		for _, r := range text {
			switch r {
			case 'a':
				v[0]++
			case 'b':
				v[1]++
			case 'c':
				v[2]++
			}
		}
		out[i] = v
	}
	return out, nil
}

func TestNewSQLiteStore_AppliesMigrations(t *testing.T) {
	store := setupTestStore(t, Options{})
	ctx := context.Background()

	version, err := SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	// Re-applying is a no-op
	require.NoError(t, ApplyMigrations(ctx, store.db))
}

func TestRollbackMigration(t *testing.T) {
	store := setupTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, store.db))
	version, err := SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)

	require.NoError(t, ApplyMigrations(ctx, store.db))
	version, err = SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestUpsertDocuments_WithoutEmbedFunc(t *testing.T) {
	store := setupTestStore(t, Options{})
	ctx := context.Background()

	recs := []Record{
		record("a.go", 1, 3, "A", "func A() {}\n"),
		record("a.go", 4, 6, "", "var x = 1\n"),
	}
	require.NoError(t, store.UpsertDocuments(ctx, recs))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Get(ctx, "a.go:1-3")
	require.NoError(t, err)
	assert.Equal(t, recs[0].Chunk, got.Chunk)

	_, err = store.QueryText(ctx, "anything", 5)
	assert.ErrorIs(t, err, ErrNoEmbedFunc)
}

func TestUpsertDocuments_ReplacesById(t *testing.T) {
	store := setupTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, store.UpsertDocuments(ctx, []Record{record("a.go", 1, 2, "Old", "old\n")}))
	require.NoError(t, store.UpsertDocuments(ctx, []Record{record("a.go", 1, 2, "New", "new\n")}))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, "a.go:1-2")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Chunk.Symbol)
	assert.Equal(t, "new\n", got.Chunk.Content)
}

func TestUpsertEmbeddings_LengthMismatch(t *testing.T) {
	store := setupTestStore(t, Options{})
	err := store.UpsertEmbeddings(context.Background(),
		[]Record{record("a.go", 1, 1, "", "x\n")}, nil)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestQueryEmbedding_OrdersByDistance(t *testing.T) {
	store := setupTestStore(t, Options{Provider: "test", Model: "axes"})
	ctx := context.Background()

	recs := []Record{
		record("a.go", 1, 1, "A", "aaaa"),
		record("b.go", 1, 1, "B", "bbbb"),
		record("c.go", 1, 1, "C", "cccc"),
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.7, 0.7, 0}}
	require.NoError(t, store.UpsertEmbeddings(ctx, recs, vectors))

	matches, err := store.QueryEmbedding(ctx, []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a.go:1-1", matches[0].ID)
	assert.Equal(t, "c.go:1-1", matches[1].ID)
	assert.Less(t, matches[0].Distance, matches[1].Distance)
	assert.Equal(t, "A", matches[0].Chunk.Symbol)

	empty, err := store.QueryEmbedding(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Vectors of another dimension are never compared
	other, err := store.QueryEmbedding(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestQueryText_UsesEmbedFunc(t *testing.T) {
	store := setupTestStore(t, Options{Embed: keywordEmbed, Provider: "local", Model: "keywords"})
	ctx := context.Background()

	require.NoError(t, store.UpsertDocuments(ctx, []Record{
		record("a.go", 1, 1, "A", "aaaa"),
		record("b.go", 1, 1, "B", "bbbb"),
		record("c.go", 1, 1, "C", "cccc"),
	}))

	matches, err := store.QueryText(ctx, "bb", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "b.go:1-1", matches[0].ID)
	assert.InDelta(t, 0, matches[0].Distance, 0.01)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 3, stats.Embeddings)
	assert.Equal(t, 3, stats.Dimension)
}

func TestUpsertDocuments_EmbedFailure(t *testing.T) {
	boom := errors.New("boom")
	store := setupTestStore(t, Options{Embed: func(context.Context, []string) ([][]float32, error) {
		return nil, boom
	}})
	ctx := context.Background()

	err := store.UpsertDocuments(ctx, []Record{record("a.go", 1, 1, "", "x")})
	assert.ErrorIs(t, err, boom)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpsertDocuments_RejectsInvalidChunk(t *testing.T) {
	store := setupTestStore(t, Options{})
	ctx := context.Background()

	err := store.UpsertDocuments(ctx, []Record{
		record("a.go", 1, 1, "", "ok\n"),
		record("a.go", 3, 2, "", "backwards\n"),
	})
	require.Error(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "batch is rolled back")

	err = store.UpsertDocuments(ctx, []Record{record("", 1, 1, "", "x")})
	assert.ErrorIs(t, err, types.ErrMissingFilePath)
}

func TestDeleteByFile(t *testing.T) {
	store := setupTestStore(t, Options{Embed: keywordEmbed})
	ctx := context.Background()

	require.NoError(t, store.UpsertDocuments(ctx, []Record{
		record("a.go", 1, 2, "", "aa"),
		record("a.go", 3, 4, "", "ab"),
		record("src/a.go", 1, 2, "", "cc"),
	}))

	require.NoError(t, store.DeleteByFile(ctx, "a.go"))

	files, err := store.ListFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.go"}, files)

	ids, err := store.IDsByFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Empty(t, ids)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Embeddings)

	// Deleting an unknown file is not an error
	require.NoError(t, store.DeleteByFile(ctx, "missing.go"))
}

func TestCollisionSuffixedIDsAreDistinct(t *testing.T) {
	store := setupTestStore(t, Options{})
	ctx := context.Background()

	base := record("a.go", 1, 1, "", "x")
	dup1 := base
	dup1.ID = base.ID + "#1"
	require.NoError(t, store.UpsertDocuments(ctx, []Record{base, dup1}))

	ids, err := store.IDsByFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go:1-1", "a.go:1-1#1"}, ids)
}

func TestClear(t *testing.T) {
	store := setupTestStore(t, Options{Embed: keywordEmbed})
	ctx := context.Background()

	require.NoError(t, store.UpsertDocuments(ctx, []Record{record("a.go", 1, 1, "", "a")}))
	require.NoError(t, store.Clear(ctx))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = store.Get(ctx, "a.go:1-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
