package chunker

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/codescope/pkg/types"
)

// SemanticResult is the outcome of a semantic split. When Fallback is set,
// Chunks is empty and the caller must window-split the whole file instead.
type SemanticResult struct {
	Chunks   []types.Chunk
	Fallback bool
	Reason   string
}

func fallback(reason string) SemanticResult {
	return SemanticResult{Fallback: true, Reason: reason}
}

// identifierTypes are the node types accepted as a declaration's name.
var identifierTypes = set(
	"identifier", "name", "property_identifier", "type_identifier",
	"field_identifier", "constant", "simple_identifier", "word",
)

// wrapperTypes hold the real declaration one level down.
var wrapperTypes = set(
	"decorated_definition", "export_statement", "type_declaration",
	"template_declaration", "lexical_declaration", "variable_declaration",
)

// skippedInWrapper are named children of a wrapper that never carry its name.
var skippedInWrapper = set(
	"decorator", "comment", "template_parameter_list", "string",
)

// splitSemantic walks the top-level children of root. Each semantic child
// becomes one named chunk, or a run of window slices when it is longer than
// maxLines. Non-blank text between semantic children and after the last one
// is emitted as unnamed chunks so that no line is dropped.
func splitSemantic(root *sitter.Node, src []byte, lines []string, tag string, maxLines, overlap int) SemanticResult {
	semantic := SemanticNodeTypes(tag)
	if len(semantic) == 0 {
		return fallback("no semantic node types for " + tag)
	}
	if root == nil {
		return fallback("empty syntax tree")
	}

	var chunks []types.Chunk
	lastEnd := 0 // 0-indexed line after the last emitted semantic node

	count := int(root.ChildCount())
	for i := 0; i < count; i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		if _, ok := semantic[child.Type()]; !ok {
			continue
		}

		start, end := nodeRows(child, len(lines))
		if start >= len(lines) {
			continue
		}

		if start > lastEnd && lastEnd < len(lines) {
			if gap, ok := unnamed(lines, lastEnd, start, tag); ok {
				chunks = append(chunks, gap)
			}
		}

		symbol := nodeName(child, src)
		if end-start+1 <= maxLines {
			chunks = append(chunks, types.Chunk{
				StartLine: start + 1,
				EndLine:   end + 1,
				Content:   strings.Join(lines[start:end+1], ""),
				Language:  tag,
				Symbol:    symbol,
			})
		} else {
			chunks = append(chunks, SplitWindow(lines[start:end+1], start, maxLines, overlap, tag, symbol)...)
		}
		lastEnd = end + 1
	}

	if lastEnd < len(lines) {
		if trailing, ok := unnamed(lines, lastEnd, len(lines), tag); ok {
			chunks = append(chunks, trailing)
		}
	}

	if len(chunks) == 0 {
		return fallback("no chunks produced")
	}
	return SemanticResult{Chunks: chunks}
}

// nodeRows returns the 0-indexed first and last line of n, clamped to the file.
// A node whose end point sits at column 0 stops on the line before.
func nodeRows(n *sitter.Node, lineCount int) (int, int) {
	start := int(n.StartPoint().Row)
	endPoint := n.EndPoint()
	end := int(endPoint.Row)
	if endPoint.Column == 0 && end > start {
		end--
	}
	if end >= lineCount {
		end = lineCount - 1
	}
	if end < start {
		end = start
	}
	return start, end
}

// unnamed builds a symbol-less chunk over lines[from:to], or reports false if
// the range is only whitespace.
func unnamed(lines []string, from, to int, tag string) (types.Chunk, bool) {
	content := strings.Join(lines[from:to], "")
	if strings.TrimSpace(content) == "" {
		return types.Chunk{}, false
	}
	return types.Chunk{
		StartLine: from + 1,
		EndLine:   to,
		Content:   content,
		Language:  tag,
	}, true
}

// nodeName finds the declared name of a top-level node. Wrappers such as
// decorators, exports and Go type declarations are searched one level down.
func nodeName(n *sitter.Node, src []byte) string {
	return nodeNameDepth(n, src, 0)
}

func nodeNameDepth(n *sitter.Node, src []byte, depth int) string {
	if n == nil || depth > 4 {
		return ""
	}
	if _, ok := identifierTypes[n.Type()]; ok && depth > 0 {
		return n.Content(src)
	}

	// C-family functions and declarations keep their name inside the
	// declarator chain; the return type comes first otherwise.
	if decl := n.ChildByFieldName("declarator"); decl != nil {
		if name := nodeNameDepth(decl, src, depth+1); name != "" {
			return name
		}
	}

	if _, ok := wrapperTypes[n.Type()]; ok {
		named := int(n.NamedChildCount())
		for i := 0; i < named; i++ {
			child := n.NamedChild(i)
			if _, skip := skippedInWrapper[child.Type()]; skip {
				continue
			}
			if name := nodeNameDepth(child, src, depth+1); name != "" {
				return name
			}
		}
	}

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if _, ok := identifierTypes[child.Type()]; ok {
			return child.Content(src)
		}
	}

	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	return ""
}
