package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dshills/codescope/pkg/types"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

var _ Store = (*SQLiteStore)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (creating if needed) the store at dbPath
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db, opts: opts}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// inTx runs fn inside a transaction, committing on success
func (s *SQLiteStore) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// UpsertDocuments stores records, embedding their content with the store's
// EmbedFunc when one is configured.
func (s *SQLiteStore) UpsertDocuments(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if s.opts.Embed == nil {
		return s.inTx(ctx, func(q querier) error {
			for i := range records {
				if err := s.upsertChunkWithQuerier(ctx, q, &records[i]); err != nil {
					return err
				}
				// a vector from a previous version of this chunk is stale
				if _, err := q.ExecContext(ctx, "DELETE FROM embeddings WHERE chunk_id = ?", records[i].ID); err != nil {
					return fmt.Errorf("failed to drop stale embedding: %w", err)
				}
			}
			return nil
		})
	}

	texts := make([]string, len(records))
	for i := range records {
		texts[i] = records[i].Chunk.Content
	}
	vectors, err := s.opts.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	return s.UpsertEmbeddings(ctx, records, vectors)
}

// UpsertEmbeddings stores records together with caller-supplied vectors
func (s *SQLiteStore) UpsertEmbeddings(ctx context.Context, records []Record, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return fmt.Errorf("%w: %d records, %d vectors", ErrLengthMismatch, len(records), len(vectors))
	}
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(q querier) error {
		for i := range records {
			if err := s.upsertChunkWithQuerier(ctx, q, &records[i]); err != nil {
				return err
			}
			if err := s.upsertEmbeddingWithQuerier(ctx, q, records[i].ID, vectors[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) upsertChunkWithQuerier(ctx context.Context, q querier, rec *Record) error {
	query := `
		INSERT INTO chunks (id, file_path, start_line, end_line, language, symbol, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			language = excluded.language,
			symbol = excluded.symbol,
			content = excluded.content,
			updated_at = excluded.updated_at
	`
	c := rec.Chunk
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid chunk %s: %w", rec.ID, err)
	}
	now := time.Now()
	if _, err := q.ExecContext(ctx, query,
		rec.ID, c.FilePath, c.StartLine, c.EndLine, c.Language, c.Symbol, c.Content, now, now); err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) upsertEmbeddingWithQuerier(ctx context.Context, q querier, chunkID string, vector []float32) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
	`
	if _, err := q.ExecContext(ctx, query,
		chunkID, serializeVector(vector), len(vector), s.opts.Provider, s.opts.Model, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert embedding %s: %w", chunkID, err)
	}
	return nil
}

// DeleteByFile removes every chunk of filePath along with its vectors
func (s *SQLiteStore) DeleteByFile(ctx context.Context, filePath string) error {
	return s.inTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx,
			"DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE file_path = ?)", filePath); err != nil {
			return fmt.Errorf("failed to delete embeddings for %s: %w", filePath, err)
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", filePath); err != nil {
			return fmt.Errorf("failed to delete chunks for %s: %w", filePath, err)
		}
		return nil
	})
}

// Clear removes every record
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, "DELETE FROM embeddings"); err != nil {
			return fmt.Errorf("failed to clear embeddings: %w", err)
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
			return fmt.Errorf("failed to clear chunks: %w", err)
		}
		return nil
	})
}

// QueryText embeds text with the store's EmbedFunc and runs QueryEmbedding
func (s *SQLiteStore) QueryText(ctx context.Context, text string, k int) ([]Match, error) {
	if s.opts.Embed == nil {
		return nil, ErrNoEmbedFunc
	}
	vectors, err := s.opts.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("failed to embed query: got %d vectors", len(vectors))
	}
	return s.QueryEmbedding(ctx, vectors[0], k)
}

// QueryEmbedding returns the k records nearest to vector, closest first
func (s *SQLiteStore) QueryEmbedding(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 || len(vector) == 0 {
		return []Match{}, nil
	}
	return searchVector(ctx, s.db, vector, k)
}

// Get returns the record stored under id
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT id, file_path, start_line, end_line, language, symbol, content
		FROM chunks WHERE id = ?
	`
	var rec Record
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Chunk.FilePath, &rec.Chunk.StartLine, &rec.Chunk.EndLine,
		&rec.Chunk.Language, &rec.Chunk.Symbol, &rec.Chunk.Content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk %s: %w", id, err)
	}
	return &rec, nil
}

// IDsByFile returns the ids stored for filePath, sorted
func (s *SQLiteStore) IDsByFile(ctx context.Context, filePath string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM chunks WHERE file_path = ? ORDER BY id", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for %s: %w", filePath, err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of stored chunks
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// ListFiles returns the distinct file paths that have stored chunks, sorted
func (s *SQLiteStore) ListFiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT file_path FROM chunks ORDER BY file_path")
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	files := []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, rows.Err()
}

// Stats summarises the store for status reporting
type Stats struct {
	Chunks        int
	Files         int
	Embeddings    int
	Dimension     int
	SchemaVersion string
}

// Stats returns counts of stored rows and the vector dimension in use
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(DISTINCT file_path) FROM chunks),
			(SELECT COUNT(*) FROM embeddings),
			COALESCE((SELECT MAX(dimension) FROM embeddings), 0)
	`)
	if err := row.Scan(&st.Chunks, &st.Files, &st.Embeddings, &st.Dimension); err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	st.SchemaVersion = version
	return st, nil
}

// scanChunk fills a types.Chunk from the standard column order
func scanChunk(rows *sql.Rows, id *string, c *types.Chunk, extra ...interface{}) error {
	dest := []interface{}{id, &c.FilePath, &c.StartLine, &c.EndLine, &c.Language, &c.Symbol, &c.Content}
	dest = append(dest, extra...)
	return rows.Scan(dest...)
}
