package chunker

import (
	"strings"

	"github.com/dshills/codescope/pkg/types"
)

// SplitWindow cuts lines into chunks of at most maxLines lines, each chunk
// starting overlap lines before the previous one ended. The final chunk ends
// on the last line and may be shorter. offset is the 0-indexed position of
// lines[0] in the file, so sub-ranges keep their real line numbers.
//
// symbol, if set, is attached to the first chunk only.
//
// Callers are expected to validate overlap < maxLines; out-of-range values
// are clamped here so the loop always advances.
func SplitWindow(lines []string, offset, maxLines, overlap int, language, symbol string) []types.Chunk {
	if maxLines < 1 {
		maxLines = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxLines {
		overlap = maxLines - 1
	}

	var chunks []types.Chunk
	for i := 0; i < len(lines); {
		end := min(i+maxLines, len(lines))

		chunk := types.Chunk{
			StartLine: offset + i + 1,
			EndLine:   offset + end,
			Content:   strings.Join(lines[i:end], ""),
			Language:  language,
		}
		if i == 0 {
			chunk.Symbol = symbol
		}
		chunks = append(chunks, chunk)

		if end < len(lines) {
			i = end - overlap
		} else {
			i = end
		}
	}
	return chunks
}
