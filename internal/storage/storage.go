package storage

import (
	"context"
	"errors"

	"github.com/dshills/codescope/pkg/types"
)

var (
	// ErrNotFound is returned when a requested chunk doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNoEmbedFunc is returned when the store is asked to embed text but
	// was opened without an embedding function
	ErrNoEmbedFunc = errors.New("store has no embedding function")
	// ErrLengthMismatch is returned when parallel slices differ in length
	ErrLengthMismatch = errors.New("records and vectors differ in length")
)

// Store persists chunks and answers nearest-neighbour queries over them.
//
// Two upsert flavours exist: UpsertDocuments lets the store compute vectors
// itself (local embedding), UpsertEmbeddings takes vectors computed by the
// caller (remote embedding providers). Both replace any record with the
// same id.
type Store interface {
	UpsertDocuments(ctx context.Context, records []Record) error
	UpsertEmbeddings(ctx context.Context, records []Record, vectors [][]float32) error

	// DeleteByFile removes every record whose file path equals filePath.
	DeleteByFile(ctx context.Context, filePath string) error
	Clear(ctx context.Context) error

	QueryText(ctx context.Context, text string, k int) ([]Match, error)
	QueryEmbedding(ctx context.Context, vector []float32, k int) ([]Match, error)

	Count(ctx context.Context) (int, error)
	ListFiles(ctx context.Context) ([]string, error)

	Close() error
}

// Record is one stored chunk. ID is the chunk id, possibly carrying a "#n"
// collision suffix; the document text is Chunk.Content.
type Record struct {
	ID    string
	Chunk types.Chunk
}

// Match is a query hit. Distance is the cosine distance to the query
// (0 identical, 1 orthogonal, 2 opposite).
type Match struct {
	ID       string
	Chunk    types.Chunk
	Distance float64
}

// EmbedFunc turns texts into vectors, one per text, in order.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Options configures a SQLiteStore.
type Options struct {
	// Embed is used by UpsertDocuments and QueryText. Without it, documents
	// are stored without vectors and QueryText fails with ErrNoEmbedFunc.
	Embed EmbedFunc

	// Provider and Model are recorded on every stored vector.
	Provider string
	Model    string
}

// RecordsFromChunks pairs chunks with their ids.
func RecordsFromChunks(ids []string, chunks []types.Chunk) []Record {
	records := make([]Record, len(chunks))
	for i := range chunks {
		records[i] = Record{ID: ids[i], Chunk: chunks[i]}
	}
	return records
}
