package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/codescope/pkg/types"
)

// searchVector performs vector similarity search using cosine distance
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, limit int) ([]Match, error) {
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, limit)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, db, queryVector, limit)
}

// searchVectorOptimized uses the sqlite-vec extension to rank in SQL
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, limit int) ([]Match, error) {
	query := `
		SELECT
			c.id, c.file_path, c.start_line, c.end_line, c.language, c.symbol, c.content,
			vec_distance_cosine(e.vector, ?) AS distance
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE e.dimension = ?
		ORDER BY distance ASC, c.id ASC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, serializeVector(queryVector), len(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]Match, 0, limit)
	for rows.Next() {
		var m Match
		if err := scanChunk(rows, &m.ID, &m.Chunk, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// searchVectorFallback ranks every stored vector in Go.
// This is used when the sqlite-vec extension is not available (purego builds)
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, limit int) ([]Match, error) {
	query := `
		SELECT e.chunk_id, e.vector
		FROM embeddings e
		WHERE e.dimension = ?
		ORDER BY e.chunk_id
	`
	rows, err := db.QueryContext(ctx, query, len(queryVector))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	candidates, err := computeSimilarityScores(rows, queryVector)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]Match, 0, len(candidates))
	for _, cand := range candidates {
		m, err := loadMatch(ctx, db, cand)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, nil
}

// loadMatch fetches the chunk behind a ranked candidate
func loadMatch(ctx context.Context, db *sql.DB, cand candidate) (Match, error) {
	m := Match{ID: cand.chunkID, Distance: 1 - cand.score}
	c := &m.Chunk
	err := db.QueryRowContext(ctx, `
		SELECT file_path, start_line, end_line, language, symbol, content
		FROM chunks WHERE id = ?
	`, cand.chunkID).Scan(&c.FilePath, &c.StartLine, &c.EndLine, &c.Language, &c.Symbol, &c.Content)
	if err != nil {
		return Match{}, fmt.Errorf("failed to load chunk %s: %w", cand.chunkID, err)
	}
	return m, nil
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var chunkID string
		var vectorBlob []byte
		if err := rows.Scan(&chunkID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		candidates = append(candidates, candidate{
			chunkID: chunkID,
			score:   cosineSimilarity(queryVector, vector),
		})
	}

	return candidates, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a chunk with its similarity score
type candidate struct {
	chunkID string
	score   float64
}

// sortCandidates sorts candidates by score, highest first. Ties keep id order.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}

// Similarity converts a cosine distance into a similarity clamped to [0, 1]
func Similarity(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// ToSearchResults ranks matches as search results, rank 1 first
func ToSearchResults(matches []Match) []types.SearchResult {
	results := make([]types.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = types.SearchResult{
			ChunkID:    m.ID,
			Rank:       i + 1,
			Distance:   m.Distance,
			Similarity: Similarity(m.Distance),
			Chunk:      m.Chunk,
		}
	}
	return results
}
