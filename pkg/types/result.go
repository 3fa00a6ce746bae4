package types

import "fmt"

// SearchResult represents a single search hit with relevance information
type SearchResult struct {
	// Identification, possibly carrying a "#n" collision suffix
	ChunkID string
	Rank    int // Position in result set (1-based)

	// Scoring
	Distance   float64 // Cosine distance reported by the store
	Similarity float64 // 1 - Distance, clamped to [0, 1]

	Chunk Chunk
}

// Location formats the hit as "path:start-end (symbol)".
func (sr *SearchResult) Location() string {
	loc := fmt.Sprintf("%s:%d-%d", sr.Chunk.FilePath, sr.Chunk.StartLine, sr.Chunk.EndLine)
	if sr.Chunk.Symbol != "" {
		loc += " (" + sr.Chunk.Symbol + ")"
	}
	return loc
}
