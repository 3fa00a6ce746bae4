package changes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// RegistryFile is the registry's file name inside the state directory.
const RegistryFile = "file_hashes.json"

// Entry is what the registry remembers about one indexed file.
type Entry struct {
	Hash  string  `json:"hash"`
	MTime float64 `json:"mtime"`
}

// Diff lists the work an incremental run has to do.
type Diff struct {
	// Changed holds candidate files (as given) that are new or modified.
	Changed []string
	// Deleted holds relative paths that are tracked but no longer candidates, sorted.
	Deleted []string
}

// Registry maps relative paths to the hash and mtime they had when last
// indexed. It is loaded once per run and saved once at the end; it is not
// safe for concurrent use.
type Registry struct {
	path    string
	entries map[string]Entry
	logger  *slog.Logger
}

// Load reads the registry from dir. A missing file gives an empty registry;
// an unreadable or malformed one is logged and also treated as empty, which
// only costs a full re-hash on the next diff.
func Load(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		path:    filepath.Join(dir, RegistryFile),
		entries: make(map[string]Entry),
		logger:  logger,
	}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return r
	}
	if err != nil {
		logger.Warn("registry: read failed, starting empty",
			slog.String("path", r.path),
			slog.String("error", err.Error()))
		return r
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("registry: corrupt file, starting empty",
			slog.String("path", r.path),
			slog.String("error", err.Error()))
		return r
	}
	if entries != nil {
		r.entries = entries
	}
	return r
}

// Path returns the file the registry is persisted to.
func (r *Registry) Path() string {
	return r.path
}

// Diff classifies files (absolute paths under root) against the registry.
//
// A tracked file whose mtime is unchanged is skipped without hashing. When
// the mtime moved but the content hash did not, only the stored mtime is
// refreshed. Files that cannot be read are left out of both lists; a tracked
// file that cannot be stat'ed is reported as changed.
func (r *Registry) Diff(files []string, root string) Diff {
	var diff Diff
	seen := make(map[string]struct{}, len(files))

	for _, file := range files {
		rel := RelPath(root, file)
		seen[rel] = struct{}{}

		stored, tracked := r.entries[rel]
		if tracked {
			mtime, err := ModTime(file)
			if err != nil {
				diff.Changed = append(diff.Changed, file)
				continue
			}
			if mtime == stored.MTime {
				continue
			}
		}

		hash, err := HashFile(file)
		if err != nil {
			r.logger.Debug("registry: skipping unreadable file",
				slog.String("path", rel),
				slog.String("error", err.Error()))
			continue
		}

		if tracked && stored.Hash == hash {
			if mtime, err := ModTime(file); err == nil {
				stored.MTime = mtime
				r.entries[rel] = stored
			}
			continue
		}

		diff.Changed = append(diff.Changed, file)
	}

	for rel := range r.entries {
		if _, ok := seen[rel]; !ok {
			diff.Deleted = append(diff.Deleted, rel)
		}
	}
	sort.Strings(diff.Deleted)

	return diff
}

// Update records the current hash and mtime of file. Unreadable files are
// left untouched and reported as an error.
func (r *Registry) Update(file, root string) error {
	hash, err := HashFile(file)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", file, err)
	}
	mtime, err := ModTime(file)
	if err != nil {
		mtime = 0
	}
	r.entries[RelPath(root, file)] = Entry{Hash: hash, MTime: mtime}
	return nil
}

// Remove drops the entry for a relative path.
func (r *Registry) Remove(rel string) {
	delete(r.entries, rel)
}

// Get returns the entry for a relative path.
func (r *Registry) Get(rel string) (Entry, bool) {
	e, ok := r.entries[rel]
	return e, ok
}

// Len returns the number of tracked files.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Paths returns every tracked relative path, sorted.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.entries))
	for rel := range r.entries {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

// Save writes the registry to disk, replacing the previous file atomically.
func (r *Registry) Save() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	return WriteFileAtomic(r.path, data)
}

// WriteFileAtomic writes data to a temp file next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
