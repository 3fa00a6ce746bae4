// Package discover walks a project tree and selects the files to index.
//
// A file is a candidate when its extension is in the allowlist, no path
// component is one of the always-ignored directories, and no pattern from
// the project's .codescopeignore matches it.
package discover

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions is the default extension allowlist.
var DefaultExtensions = []string{
	".py", ".js", ".ts", ".tsx", ".jsx",
	".go", ".rs", ".java", ".kt", ".c", ".cpp", ".h", ".hpp",
	".cs", ".rb", ".php", ".swift", ".scala",
	".sql", ".sh", ".bash", ".zsh",
	".yaml", ".yml", ".toml", ".json",
	".md", ".mdx", ".txt", ".rst",
	".html", ".css", ".scss", ".svelte", ".vue",
}

// DefaultIgnoreDirs are never descended into, whatever the ignore file says.
var DefaultIgnoreDirs = []string{
	".git", ".hg", ".svn",
	"node_modules", "__pycache__", ".venv", "venv", ".env",
	".codescope", ".next", ".nuxt", "dist", "build", "target",
	".tox", ".mypy_cache", ".ruff_cache", ".pytest_cache",
	"vendor", "bower_components",
}

// Options controls which files Files returns.
type Options struct {
	Extensions []string
	IgnoreDirs []string
	Matcher    *Matcher
}

// DefaultOptions returns the default allowlist and ignore dirs with no patterns.
func DefaultOptions() Options {
	return Options{
		Extensions: DefaultExtensions,
		IgnoreDirs: DefaultIgnoreDirs,
	}
}

// Filter decides whether single paths are candidates. It is shared by the
// tree walk and the file watcher.
type Filter struct {
	root       string
	extensions map[string]struct{}
	ignoreDirs map[string]struct{}
	matcher    *Matcher
}

// NewFilter compiles opts for the project rooted at root.
func NewFilter(root string, opts Options) *Filter {
	f := &Filter{
		root:       root,
		extensions: make(map[string]struct{}, len(opts.Extensions)),
		ignoreDirs: make(map[string]struct{}, len(opts.IgnoreDirs)),
		matcher:    opts.Matcher,
	}
	for _, ext := range opts.Extensions {
		f.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, dir := range opts.IgnoreDirs {
		f.ignoreDirs[dir] = struct{}{}
	}
	return f
}

// SkipDir reports whether the walk should not descend into the directory rel.
func (f *Filter) SkipDir(rel string) bool {
	if _, ok := f.ignoreDirs[filepath.Base(rel)]; ok {
		return true
	}
	return f.matcher.Match(rel)
}

// Include reports whether the file at path (absolute or relative to the
// root) is a candidate.
func (f *Filter) Include(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(f.root, path)
		if err != nil || strings.HasPrefix(r, "..") {
			return false
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	if _, ok := f.extensions[strings.ToLower(filepath.Ext(rel))]; !ok {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if _, ok := f.ignoreDirs[part]; ok {
			return false
		}
	}
	return !f.matcher.Match(rel)
}

// Files returns the sorted absolute paths of every candidate file under root.
func Files(root string, opts Options) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	filter := NewFilter(abs, opts)

	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			// Unreadable subtrees are skipped.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == abs {
			return nil
		}

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if filter.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if filter.Include(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
