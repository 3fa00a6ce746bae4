package types

import (
	"errors"
	"fmt"
)

// Chunk is a contiguous range of lines from one source file, the unit that
// gets embedded and stored.
type Chunk struct {
	// Location, relative to the project root with forward slashes
	FilePath string

	// 1-indexed, inclusive
	StartLine int
	EndLine   int

	// Exact text of the covered lines, line terminators included
	Content string

	// Metadata, both optional
	Language string
	Symbol   string
}

// ID returns the canonical chunk identifier "<file_path>:<start>-<end>".
// The indexer may append a "#n" suffix when two chunks share the same id.
func (c *Chunk) ID() string {
	return fmt.Sprintf("%s:%d-%d", c.FilePath, c.StartLine, c.EndLine)
}

// LineCount is the number of lines the chunk spans.
func (c *Chunk) LineCount() int {
	return c.EndLine - c.StartLine + 1
}

// ValidateContent checks if the chunk content is valid
func (c *Chunk) ValidateContent() error {
	if c.Content == "" {
		return ErrEmptyContent
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	return nil
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if err := c.ValidateContent(); err != nil {
		return err
	}

	if c.FilePath == "" {
		return ErrMissingFilePath
	}

	return nil
}
