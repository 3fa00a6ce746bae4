package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T, rels ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range rels {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x\n"), 0644))
	}
	return root
}

func rels(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		require.True(t, filepath.IsAbs(f))
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(r))
	}
	return out
}

func TestFiles_DefaultOptions(t *testing.T) {
	root := makeTree(t,
		"main.go",
		"src/app.py",
		"src/z.ts",
		"README.md",
		"image.bmp",
		"node_modules/lib/index.js",
		".git/config.json",
		".codescope/file_hashes.json",
		"pkg/vendor/dep.go",
	)

	files, err := Files(root, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "main.go", "src/app.py", "src/z.ts"}, rels(t, root, files))
}

func TestFiles_IgnorePatterns(t *testing.T) {
	root := makeTree(t,
		"app.js",
		"app.min.js",
		"package-lock.json",
		"docs/guide.md",
		"generated/api/types.go",
		"keep/generated.go",
	)

	opts := DefaultOptions()
	opts.Matcher = NewMatcher([]string{"# comment", "", "*.min.js", "package-lock.json", "docs/", "generated"})

	files, err := Files(root, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js", "keep/generated.go"}, rels(t, root, files))
}

func TestFiles_MissingRoot(t *testing.T) {
	_, err := Files(filepath.Join(t.TempDir(), "nope"), DefaultOptions())
	assert.Error(t, err)
}

func TestMatcher(t *testing.T) {
	m := NewMatcher([]string{"dist/", "*.map", "src/gen/*.go", "  Thumbs.db  "})
	assert.Equal(t, []string{"dist", "*.map", "src/gen/*.go", "Thumbs.db"}, m.Patterns())

	tests := []struct {
		path string
		want bool
	}{
		{"dist/app.js", true},
		{"web/dist/app.js", true},
		{"app.js.map", true},
		{"src/gen/types.go", true},
		{"src/gen.go", false},
		{"photos/Thumbs.db", true},
		{"src/main.go", false},
		{"./dist/x.js", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}

	var empty *Matcher
	assert.False(t, empty.Match("anything"))
}

func TestFilter_Include(t *testing.T) {
	root := t.TempDir()
	f := NewFilter(root, Options{
		Extensions: []string{".go", ".PY"},
		IgnoreDirs: []string{"vendor"},
		Matcher:    NewMatcher([]string{"*_test.go"}),
	})

	assert.True(t, f.Include(filepath.Join(root, "a.go")))
	assert.True(t, f.Include("pkg/b.py"))
	assert.True(t, f.Include("pkg/C.PY"))
	assert.False(t, f.Include("a_test.go"))
	assert.False(t, f.Include("vendor/x/a.go"))
	assert.False(t, f.Include("notes.txt"))
	assert.False(t, f.Include(filepath.Join(filepath.Dir(root), "outside.go")))
}

func TestLoadIgnoreFile(t *testing.T) {
	dir := t.TempDir()

	lines, err := LoadIgnoreFile(filepath.Join(dir, IgnoreFileName))
	require.NoError(t, err)
	assert.Nil(t, lines)

	path, created, err := EnsureIgnoreFile(dir)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = EnsureIgnoreFile(dir)
	require.NoError(t, err)
	assert.False(t, created)

	lines, err = LoadIgnoreFile(path)
	require.NoError(t, err)
	m := NewMatcher(lines)
	assert.Contains(t, m.Patterns(), "node_modules")
	assert.Contains(t, m.Patterns(), "*.tar.gz")
	assert.True(t, m.Match("assets/logo.png"))
	assert.True(t, m.Match("release.tar.gz"))
}
