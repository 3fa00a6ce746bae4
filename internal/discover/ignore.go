package discover

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFileName is the user-editable pattern file inside the state directory.
const IgnoreFileName = ".codescopeignore"

// DefaultIgnoreContent is written to a fresh ignore file.
const DefaultIgnoreContent = `# codescope ignore file
# Patterns follow .gitignore-style glob syntax.
# Lines starting with # are comments. Blank lines are skipped.

# Dependencies
node_modules/
.venv/
venv/
vendor/
bower_components/

# Build outputs
dist/
build/
target/
*.min.js
*.min.css
*.map

# Lock files
package-lock.json
yarn.lock
pnpm-lock.yaml
uv.lock

# IDE & OS
.vscode/
.idea/
.DS_Store
Thumbs.db

# Caches
__pycache__/
.pytest_cache/
.mypy_cache/
.ruff_cache/
.next/
.nuxt/
.tox/

# Media & binary
*.png
*.jpg
*.jpeg
*.gif
*.ico
*.woff
*.woff2
*.ttf
*.eot
*.mp4
*.mp3
*.zip
*.tar.gz
*.pdf
`

// Matcher tests relative paths against ignore patterns. A pattern matches
// when it matches any single path component or the whole relative path.
type Matcher struct {
	patterns []string
}

// NewMatcher builds a Matcher from raw pattern lines. Blank lines and
// comments are dropped; a trailing slash is ignored.
func NewMatcher(lines []string) *Matcher {
	m := &Matcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSuffix(line, "/")
		if line == "" {
			continue
		}
		m.patterns = append(m.patterns, line)
	}
	return m
}

// Patterns returns the cleaned patterns.
func (m *Matcher) Patterns() []string {
	return m.patterns
}

// Match reports whether rel (slash or OS separated) is ignored.
func (m *Matcher) Match(rel string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	parts := strings.Split(rel, "/")

	for _, pattern := range m.patterns {
		for _, part := range parts {
			if ok, _ := doublestar.Match(pattern, part); ok {
				return true
			}
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// LoadIgnoreFile reads patterns from path. A missing file yields no patterns.
func LoadIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// EnsureIgnoreFile writes DefaultIgnoreContent to dir/.codescopeignore unless
// the file already exists. It reports whether the file was created.
func EnsureIgnoreFile(dir string) (string, bool, error) {
	path := filepath.Join(dir, IgnoreFileName)
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return path, false, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(DefaultIgnoreContent), 0644); err != nil {
		return path, false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, true, nil
}
