// Package watcher re-indexes files as they change on disk.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/codescope/internal/discover"
	"github.com/dshills/codescope/internal/indexer"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before re-indexing.
const DefaultDebounce = 200 * time.Millisecond

// Event kinds passed to EventCallback.
const (
	KindUpdated   = "updated"
	KindDeleted   = "deleted"
	KindReconcile = "reconciled"
)

// Target is what the watcher drives; *project.Project satisfies it.
type Target interface {
	ReindexFile(ctx context.Context, path string) (*indexer.Result, error)
	Index(ctx context.Context, mode indexer.Mode) (*indexer.Result, error)
}

// EventCallback is called after each index change made by the watcher.
// path is relative to the root, empty for reconcile passes.
type EventCallback func(kind, path string, res *indexer.Result)

// Watcher turns fsnotify events into single-file re-index calls.
//
// Events are collected per path and flushed once no new event arrived for
// the debounce period, so an editor's write-rename-chmod burst causes one
// re-index. Removing or renaming something that is not itself a candidate
// file (typically a directory) schedules an incremental run instead, which
// purges whatever disappeared beneath it.
type Watcher struct {
	root     string
	filter   *discover.Filter
	target   Target
	logger   *slog.Logger
	debounce time.Duration
	onEvent  EventCallback
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration // default: DefaultDebounce
	OnEvent  EventCallback
}

// New creates a Watcher for root.
func New(root string, filter *discover.Filter, target Target, logger *slog.Logger, opts Options) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		filter:   filter,
		target:   target,
		logger:   logger,
		debounce: opts.Debounce,
		onEvent:  opts.OnEvent,
	}
}

// Run watches until ctx is cancelled. New directories are added to the
// watch list as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := w.addDirsRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	pending := make(map[string]struct{})
	reconcile := false

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	schedule := func() { timer.Reset(w.debounce) }

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("watcher: stopped")
			return nil

		case <-timer.C:
			if w.flush(ctx, pending, reconcile) {
				schedule()
				continue
			}
			reconcile = false

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, ev, pending) {
				reconcile = true
			}
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle records what ev requires. It reports whether a reconcile run is needed.
func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event, pending map[string]struct{}) bool {
	path := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.skipDir(path) {
				return false
			}
			if err := w.addDirsRecursive(fw, path); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
			w.queueDir(path, pending)
			return false
		}
	}

	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if w.filter.Include(path) {
		pending[path] = struct{}{}
		return false
	}
	return ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0
}

// flush re-indexes pending paths and runs a reconcile pass when asked. It
// reports whether work was left over because another run held the indexer.
func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}, reconcile bool) bool {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	busy := false
	for _, path := range paths {
		res, err := w.target.ReindexFile(ctx, path)
		if errors.Is(err, indexer.ErrIndexingInProgress) {
			busy = true
			continue
		}
		delete(pending, path)
		if err != nil {
			w.logger.Warn("watcher: reindex failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		w.report(path, res)
	}

	if reconcile {
		res, err := w.target.Index(ctx, indexer.ModeIncremental)
		switch {
		case errors.Is(err, indexer.ErrIndexingInProgress):
			busy = true
		case err != nil:
			w.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
		default:
			if w.onEvent != nil {
				w.onEvent(KindReconcile, "", res)
			}
		}
	}
	return busy
}

func (w *Watcher) report(path string, res *indexer.Result) {
	rel := w.rel(path)
	kind := ""
	switch {
	case res.FilesDeleted > 0:
		kind = KindDeleted
	case res.FilesChanged > 0:
		kind = KindUpdated
	default:
		return
	}
	w.logger.Debug("watcher: indexed",
		slog.String("path", rel),
		slog.String("op", kind),
		slog.Int("chunks", res.ChunksIndexed))
	if w.onEvent != nil {
		w.onEvent(kind, rel, res)
	}
}

// queueDir queues the candidate files already inside a new directory.
func (w *Watcher) queueDir(dir string, pending map[string]struct{}) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.filter.Include(path) {
			pending[path] = struct{}{}
		}
		return nil
	})
}

// addDirsRecursive adds root and its non-ignored subdirectories to the watcher.
func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.skipDir(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) skipDir(path string) bool {
	return w.filter.SkipDir(w.rel(path))
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
