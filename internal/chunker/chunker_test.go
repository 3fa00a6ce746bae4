package chunker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codescope/pkg/types"
)

type span struct {
	Start, End int
	Symbol     string
}

func spans(chunks []types.Chunk) []span {
	out := make([]span, len(chunks))
	for i, c := range chunks {
		out[i] = span{c.StartLine, c.EndLine, c.Symbol}
	}
	return out
}

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d\n", i+1)
	}
	return lines
}

// assertCovers checks that every non-blank line of content falls inside some chunk.
func assertCovers(t *testing.T, content string, chunks []types.Chunk) {
	t.Helper()
	for i, line := range splitLines(content) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNo := i + 1
		covered := false
		for _, c := range chunks {
			if c.StartLine <= lineNo && lineNo <= c.EndLine {
				covered = true
				break
			}
		}
		assert.True(t, covered, "line %d (%q) not covered", lineNo, line)
	}
}

func TestNew(t *testing.T) {
	c := New(nil, nil)
	assert.NotNil(t, c)
	assert.NotNil(t, c.languages)
	assert.NotNil(t, c.logger)
}

func TestSplitWindow(t *testing.T) {
	tests := []struct {
		name     string
		lines    int
		maxLines int
		overlap  int
		want     []span
	}{
		{
			name:     "25 lines max 10 overlap 2",
			lines:    25,
			maxLines: 10,
			overlap:  2,
			want:     []span{{1, 10, ""}, {9, 18, ""}, {17, 25, ""}},
		},
		{
			name:     "input fits in one window",
			lines:    7,
			maxLines: 10,
			overlap:  2,
			want:     []span{{1, 7, ""}},
		},
		{
			name:     "exact multiple without overlap",
			lines:    20,
			maxLines: 10,
			overlap:  0,
			want:     []span{{1, 10, ""}, {11, 20, ""}},
		},
		{
			name:     "empty input",
			lines:    0,
			maxLines: 10,
			overlap:  2,
			want:     []span{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitWindow(numberedLines(tt.lines), 0, tt.maxLines, tt.overlap, "", "")
			assert.Equal(t, tt.want, spans(chunks))
		})
	}
}

func TestSplitWindow_ContentAndSymbol(t *testing.T) {
	lines := numberedLines(25)
	chunks := SplitWindow(lines, 0, 10, 2, "python", "handler")
	require.Len(t, chunks, 3)

	assert.Equal(t, "handler", chunks[0].Symbol)
	assert.Empty(t, chunks[1].Symbol)
	assert.Empty(t, chunks[2].Symbol)

	assert.Equal(t, strings.Join(lines[16:25], ""), chunks[2].Content)
	for _, c := range chunks {
		assert.Equal(t, "python", c.Language)
		assert.LessOrEqual(t, c.LineCount(), 10)
	}
}

func TestSplitWindow_Offset(t *testing.T) {
	chunks := SplitWindow(numberedLines(12), 40, 10, 2, "", "")
	assert.Equal(t, []span{{41, 50, ""}, {49, 52, ""}}, spans(chunks))
}

func TestSplitWindow_OverlapClamped(t *testing.T) {
	chunks := SplitWindow(numberedLines(10), 0, 3, 5, "", "")
	require.NotEmpty(t, chunks)
	assert.Equal(t, 10, chunks[len(chunks)-1].EndLine)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartLine, chunks[i-1].StartLine, "window must advance")
	}
}

func TestExtract_EmptyFile(t *testing.T) {
	c := New(nil, nil)
	assert.Empty(t, c.Extract(context.Background(), "empty.py", nil, 60, 2))
	assert.Empty(t, c.Extract(context.Background(), "empty.txt", []byte{}, 60, 2))
}

func TestExtractFile_Unreadable(t *testing.T) {
	c := New(nil, nil)
	chunks := c.ExtractFile(context.Background(), filepath.Join(t.TempDir(), "missing.go"), 60, 2)
	assert.Empty(t, chunks)
}

func TestExtract_UnknownExtensionUsesWindow(t *testing.T) {
	c := New(nil, nil)
	content := strings.Join(numberedLines(25), "")

	chunks := c.Extract(context.Background(), "notes.txt", []byte(content), 10, 2)
	assert.Equal(t, []span{{1, 10, ""}, {9, 18, ""}, {17, 25, ""}}, spans(chunks))
	for _, ch := range chunks {
		assert.Empty(t, ch.Language)
		assert.Empty(t, ch.FilePath, "file path is stamped by the caller")
	}
}

func TestExtract_Python(t *testing.T) {
	content := `import os


def foo():
    return 1


class Bar:
    pass
x = 1
`
	c := New(nil, nil)
	chunks := c.Extract(context.Background(), "mod.py", []byte(content), 60, 2)

	assert.Equal(t, []span{
		{1, 3, ""},
		{4, 5, "foo"},
		{8, 9, "Bar"},
		{10, 10, ""},
	}, spans(chunks))
	assert.Equal(t, "import os\n\n\n", chunks[0].Content)
	assert.Equal(t, "def foo():\n    return 1\n", chunks[1].Content)
	for _, ch := range chunks {
		assert.Equal(t, "python", ch.Language)
	}
	assertCovers(t, content, chunks)
}

func TestExtract_GoMethodsAndTypes(t *testing.T) {
	content := `package main

type Server struct{}

func (s *Server) Start() error {
	return nil
}

func main() {}
`
	c := New(nil, nil)
	chunks := c.Extract(context.Background(), "main.go", []byte(content), 60, 2)

	assert.Equal(t, []span{
		{1, 2, ""},
		{3, 3, "Server"},
		{5, 7, "Start"},
		{9, 9, "main"},
	}, spans(chunks))
	assertCovers(t, content, chunks)
}

func TestExtract_OversizedNodeIsWindowed(t *testing.T) {
	var b strings.Builder
	b.WriteString("def big():\n")
	for i := 0; i < 29; i++ {
		fmt.Fprintf(&b, "    x%d = %d\n", i, i)
	}
	content := b.String()

	c := New(nil, nil)
	chunks := c.Extract(context.Background(), "big.py", []byte(content), 10, 2)

	assert.Equal(t, []span{
		{1, 10, "big"},
		{9, 18, ""},
		{17, 26, ""},
		{25, 30, ""},
	}, spans(chunks))
	assertCovers(t, content, chunks)
}

func TestExtract_SymbolNames(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    string
	}{
		{
			name:    "javascript export",
			path:    "a.js",
			content: "export function hello() {\n  return 1;\n}\n",
			want:    "hello",
		},
		{
			name:    "python decorator",
			path:    "a.py",
			content: "@app.route('/')\ndef index():\n    return 'ok'\n",
			want:    "index",
		},
		{
			name:    "c function declarator",
			path:    "a.c",
			content: "int add(int a, int b) {\n  return a + b;\n}\n",
			want:    "add",
		},
		{
			name:    "rust struct",
			path:    "a.rs",
			content: "struct Point {\n    x: i32,\n}\n",
			want:    "Point",
		},
		{
			name:    "ruby class",
			path:    "a.rb",
			content: "class Greeter\n  def hi\n  end\nend\n",
			want:    "Greeter",
		},
	}

	c := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := c.Extract(context.Background(), tt.path, []byte(tt.content), 60, 2)
			require.NotEmpty(t, chunks)
			var symbols []string
			for _, ch := range chunks {
				symbols = append(symbols, ch.Symbol)
			}
			assert.Contains(t, symbols, tt.want)
			assertCovers(t, tt.content, chunks)
		})
	}
}

func TestExtract_LanguageWithoutSemanticTableFallsBack(t *testing.T) {
	content := "<div>\n  <p>hi</p>\n</div>\n"
	c := New(nil, nil)

	chunks := c.Extract(context.Background(), "index.html", []byte(content), 60, 2)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, "html", chunks[0].Language)
	assert.Equal(t, content, chunks[0].Content)
}

func TestExtract_OnlyStatementsBecomeTrailingChunk(t *testing.T) {
	content := "print('a')\nprint('b')\n"
	c := New(nil, nil)

	chunks := c.Extract(context.Background(), "script.py", []byte(content), 60, 2)
	assert.Equal(t, []span{{1, 2, ""}}, spans(chunks))
}

func TestExtract_Deterministic(t *testing.T) {
	content := `import os


def foo():
    return 1


class Bar:
    def method(self):
        return 2
`
	c := New(nil, nil)
	first := c.Extract(context.Background(), "mod.py", []byte(content), 5, 1)
	second := c.Extract(context.Background(), "mod.py", []byte(content), 5, 1)
	assert.Equal(t, first, second)
}

func TestExtract_PreservesLineEndings(t *testing.T) {
	content := "alpha\r\nbeta\r\ngamma"
	c := New(nil, nil)

	chunks := c.Extract(context.Background(), "crlf.txt", []byte(content), 60, 2)
	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, 3, chunks[0].EndLine)
}

func TestExtract_InvalidUTF8IsReplaced(t *testing.T) {
	data := []byte("ok line\nbad \xff\xfe byte\n")
	c := New(nil, nil)

	chunks := c.Extract(context.Background(), "bin.txt", data, 60, 2)
	require.Len(t, chunks, 1)
	assert.True(t, utf8.ValidString(chunks[0].Content))
	assert.Contains(t, chunks[0].Content, "�")
}

func TestExtractFile_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "util.go")
	require.NoError(t, os.WriteFile(path, []byte("package util\n\nfunc Add(a, b int) int { return a + b }\n"), 0644))

	c := New(nil, nil)
	chunks := c.ExtractFile(context.Background(), path, 60, 2)
	assert.Equal(t, []span{{1, 2, ""}, {3, 3, "Add"}}, spans(chunks))
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"a\n", "b"}, splitLines("a\nb"))
	assert.Equal(t, []string{"\n", "\n"}, splitLines("\n\n"))
}

func TestLanguages(t *testing.T) {
	langs := NewLanguages()

	_, err := langs.Grammar("cobol")
	assert.ErrorIs(t, err, ErrNoGrammar)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lang, err := langs.Grammar("python")
			assert.NoError(t, err)
			assert.NotNil(t, lang)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, langs.Loaded())
}

func TestLanguageForPath(t *testing.T) {
	tests := []struct {
		path    string
		tag     string
		grammar string
		ok      bool
	}{
		{"a.py", "python", "python", true},
		{"A.PY", "python", "python", true},
		{"x/y/comp.tsx", "typescript", "tsx", true},
		{"lib.h", "c", "c", true},
		{"Program.cs", "c_sharp", "c_sharp", true},
		{"README.md", "", "", false},
		{"Makefile", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			tag, grammar, ok := LanguageForPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.tag, tag)
			assert.Equal(t, tt.grammar, grammar)
		})
	}
}

func TestSemanticTableCoversGrammars(t *testing.T) {
	for ext, ref := range extensionTable {
		_, ok := grammarLoaders[ref.grammar]
		assert.True(t, ok, "extension %s points at unknown grammar %s", ext, ref.grammar)
	}
	for tag := range semanticNodeTypes {
		found := false
		for _, ref := range extensionTable {
			if ref.tag == tag {
				found = true
				break
			}
		}
		assert.True(t, found, "semantic table row %s has no extension", tag)
	}
}
