// Package chunker splits source files into line-addressed chunks for embedding.
//
// Files in a language with a tree-sitter grammar and a semantic node table are
// split along top-level declarations (functions, classes, types). Everything
// else goes through a fixed-size sliding window.
//
// # Basic Usage
//
//	langs := chunker.NewLanguages()
//	c := chunker.New(langs, logger)
//	chunks := c.ExtractFile(ctx, "/path/to/file.py", chunker.DefaultMaxLines, chunker.DefaultOverlap)
//
//	for _, chunk := range chunks {
//	    fmt.Printf("lines %d-%d %s\n", chunk.StartLine, chunk.EndLine, chunk.Symbol)
//	}
//
// # Semantic Splitting
//
// The top-level children of the syntax tree are visited in source order:
//   - A child whose type is in the language's semantic set becomes one chunk,
//     named after its declared identifier.
//   - A semantic child longer than the line budget is cut by the window
//     splitter; only the first slice carries the name.
//   - Non-blank lines between semantic children, and after the last one, are
//     emitted as unnamed chunks.
//
// The union of all chunk ranges always covers every non-blank line of the file.
//
// # Window Splitting
//
// SplitWindow produces chunks of at most maxLines lines where each chunk
// starts overlap lines before the previous one ended:
//
//	max 10, overlap 2, 25 lines -> [1-10] [9-18] [17-25]
//
// It is used for unknown extensions, grammars that fail to load or parse,
// languages without a semantic table (html, css), and files where the
// semantic pass yields nothing.
//
// # Grammar Registry
//
// Languages holds the tree-sitter grammar handles. It loads each grammar the
// first time it is needed and is safe to share between goroutines. Parsers
// are created per file because they are not goroutine-safe.
//
// # Error Handling
//
// Extraction never fails. Unreadable files produce no chunks, and parse
// problems fall back to window splitting; both are logged at debug level.
package chunker
