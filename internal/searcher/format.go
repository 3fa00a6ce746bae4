package searcher

import (
	"fmt"
	"strings"

	"github.com/dshills/codescope/pkg/types"
)

// FormatResult renders one hit as
//
//	path:start-end (symbol)  [similarity: 87.50%]
//
// followed by the indented chunk text when showCode is set.
func FormatResult(r types.SearchResult, showCode bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  [similarity: %.2f%%]\n", r.Location(), r.Similarity*100)
	if showCode {
		for _, line := range strings.Split(strings.TrimRight(r.Chunk.Content, "\n"), "\n") {
			b.WriteString("    ")
			b.WriteString(strings.TrimRight(line, "\r"))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Hit is the JSON shape of one result for agent-facing output
type Hit struct {
	File       string  `json:"file"`
	Lines      string  `json:"lines"`
	Similarity float64 `json:"similarity"`
	Symbol     string  `json:"symbol,omitempty"`
	Language   string  `json:"language,omitempty"`
	Content    string  `json:"content"`
}

// Hits converts results for JSON output. Similarity is rounded to 4 places.
func Hits(results []types.SearchResult) []Hit {
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			File:       r.Chunk.FilePath,
			Lines:      fmt.Sprintf("%d-%d", r.Chunk.StartLine, r.Chunk.EndLine),
			Similarity: float64(int64(r.Similarity*10000+0.5)) / 10000,
			Symbol:     r.Chunk.Symbol,
			Language:   r.Chunk.Language,
			Content:    r.Chunk.Content,
		}
	}
	return hits
}
