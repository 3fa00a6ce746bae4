// Package session brackets an editing burst with a content snapshot.
//
// Begin records the hash of every candidate file; Diff later reports which
// files were modified, created or deleted since then; End discards the
// snapshot. The snapshot is independent of the index's hash registry: it
// answers "what changed during this session", not "what is indexed".
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/dshills/codescope/internal/changes"
)

// SnapshotFile is the snapshot's file name inside the state directory.
const SnapshotFile = "session_snapshot.json"

// ErrNoActiveSession is returned by Diff when no snapshot exists.
var ErrNoActiveSession = errors.New("no active session")

// Snapshot maps relative paths to their hash at session start.
type Snapshot map[string]SnapshotEntry

// SnapshotEntry is one file in a Snapshot.
type SnapshotEntry struct {
	Hash string `json:"hash"`
}

// Diff is the classification of files against the snapshot. All lists hold
// relative paths and are sorted.
type Diff struct {
	Modified []string `json:"modified"`
	Created  []string `json:"created"`
	Deleted  []string `json:"deleted"`
}

// Empty reports whether nothing changed.
func (d *Diff) Empty() bool {
	return len(d.Modified) == 0 && len(d.Created) == 0 && len(d.Deleted) == 0
}

// Total returns the number of affected files.
func (d *Diff) Total() int {
	return len(d.Modified) + len(d.Created) + len(d.Deleted)
}

// Tracker persists the session snapshot for one project.
type Tracker struct {
	path   string
	logger *slog.Logger
}

// NewTracker creates a Tracker storing its snapshot in dir.
func NewTracker(dir string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		path:   filepath.Join(dir, SnapshotFile),
		logger: logger,
	}
}

// Begin hashes files and writes a new snapshot, replacing any previous one.
// Unreadable files are left out. It returns the number of files recorded.
func (t *Tracker) Begin(files []string, root string) (int, error) {
	snap := make(Snapshot, len(files))
	for _, file := range files {
		hash, err := changes.HashFile(file)
		if err != nil {
			t.logger.Debug("session: skipping unreadable file",
				slog.String("path", file),
				slog.String("error", err.Error()))
			continue
		}
		snap[changes.RelPath(root, file)] = SnapshotEntry{Hash: hash}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := changes.WriteFileAtomic(t.path, data); err != nil {
		return 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return len(snap), nil
}

// Diff compares the current hashes of files against the snapshot.
func (t *Tracker) Diff(files []string, root string) (*Diff, error) {
	snap, err := t.load()
	if err != nil {
		return nil, err
	}

	current := make(map[string]string, len(files))
	for _, file := range files {
		hash, err := changes.HashFile(file)
		if err != nil {
			continue
		}
		current[changes.RelPath(root, file)] = hash
	}

	diff := &Diff{
		Modified: []string{},
		Created:  []string{},
		Deleted:  []string{},
	}
	for rel, hash := range current {
		old, ok := snap[rel]
		switch {
		case !ok:
			diff.Created = append(diff.Created, rel)
		case old.Hash != hash:
			diff.Modified = append(diff.Modified, rel)
		}
	}
	for rel := range snap {
		if _, ok := current[rel]; !ok {
			diff.Deleted = append(diff.Deleted, rel)
		}
	}

	sort.Strings(diff.Modified)
	sort.Strings(diff.Created)
	sort.Strings(diff.Deleted)
	return diff, nil
}

// End deletes the snapshot. Ending without an active session is not an error.
func (t *Tracker) End() error {
	if err := os.Remove(t.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}

// Active reports whether a snapshot exists.
func (t *Tracker) Active() bool {
	_, err := os.Stat(t.path)
	return err == nil
}

func (t *Tracker) load() (Snapshot, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.logger.Warn("session: corrupt snapshot",
			slog.String("path", t.path),
			slog.String("error", err.Error()))
		return nil, ErrNoActiveSession
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}
