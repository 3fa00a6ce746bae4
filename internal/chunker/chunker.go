package chunker

import (
	"context"
	"log/slog"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/codescope/pkg/types"
)

const (
	// DefaultMaxLines is the default line budget per chunk
	DefaultMaxLines = 60

	// DefaultOverlap is the default number of lines shared by consecutive window chunks
	DefaultOverlap = 2
)

// Chunker splits source files into chunks, semantically where a grammar is
// available and by fixed-size windows otherwise.
type Chunker struct {
	languages *Languages
	logger    *slog.Logger
}

// New creates a Chunker backed by the given grammar registry. A nil registry
// gets a fresh one; a nil logger uses slog.Default().
func New(languages *Languages, logger *slog.Logger) *Chunker {
	if languages == nil {
		languages = NewLanguages()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		languages: languages,
		logger:    logger,
	}
}

// ExtractFile reads path and splits it into chunks. Unreadable files yield no
// chunks. FilePath is left empty on every chunk for the caller to stamp.
func (c *Chunker) ExtractFile(ctx context.Context, path string, maxLines, overlap int) []types.Chunk {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Debug("chunker: skipping unreadable file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}
	return c.Extract(ctx, path, data, maxLines, overlap)
}

// Extract splits data, the content of path, into chunks. The path is only
// used to pick a grammar by extension.
func (c *Chunker) Extract(ctx context.Context, path string, data []byte, maxLines, overlap int) []types.Chunk {
	text := strings.ToValidUTF8(string(data), "\uFFFD")
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	tag, grammar, ok := LanguageForPath(path)
	if !ok {
		return SplitWindow(lines, 0, maxLines, overlap, "", "")
	}

	result := c.semantic(ctx, []byte(text), lines, tag, grammar, maxLines, overlap)
	if result.Fallback {
		c.logger.Debug("chunker: window fallback",
			slog.String("path", path),
			slog.String("language", tag),
			slog.String("reason", result.Reason))
		return SplitWindow(lines, 0, maxLines, overlap, tag, "")
	}
	return result.Chunks
}

// semantic parses src with the grammar for key and runs the semantic splitter.
func (c *Chunker) semantic(ctx context.Context, src []byte, lines []string, tag, key string, maxLines, overlap int) SemanticResult {
	if len(SemanticNodeTypes(tag)) == 0 {
		return fallback("no semantic node types for " + tag)
	}

	lang, err := c.languages.Grammar(key)
	if err != nil {
		return fallback(err.Error())
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return fallback("parse: " + err.Error())
	}
	if tree == nil {
		return fallback("parse returned no tree")
	}
	defer tree.Close()

	return splitSemantic(tree.RootNode(), src, lines, tag, maxLines, overlap)
}

// splitLines splits text after every '\n', keeping the terminator so that
// joining the lines reproduces text exactly. A trailing newline does not
// start an extra empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
