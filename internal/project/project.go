// Package project wires the engines for one project root: store, embedder,
// chunker, indexer, searcher and session tracker, all built from a resolved
// config.Config.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/codescope/internal/chunker"
	"github.com/dshills/codescope/internal/config"
	"github.com/dshills/codescope/internal/discover"
	"github.com/dshills/codescope/internal/embedder"
	"github.com/dshills/codescope/internal/indexer"
	"github.com/dshills/codescope/internal/searcher"
	"github.com/dshills/codescope/internal/session"
	"github.com/dshills/codescope/internal/storage"
)

// ErrNotIndexed is returned by OpenExisting when the project has no database.
var ErrNotIndexed = errors.New("project not indexed")

// Project holds the components serving one root.
type Project struct {
	Config   *config.Config
	Store    *storage.SQLiteStore
	Embedder embedder.Embedder
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Session  *session.Tracker
	Logger   *slog.Logger
}

// Open creates the state directory and the default ignore file when missing,
// opens the database and builds every component.
//
// With the local provider the store embeds documents and queries itself;
// remote providers are called by the indexer and the searcher, and the
// store only keeps the vectors.
func Open(cfg *config.Config, languages *chunker.Languages, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Embedding.CheckCredentials(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.StateDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if _, created, err := discover.EnsureIgnoreFile(cfg.StateDir()); err != nil {
		return nil, err
	} else if created {
		logger.Info("project: wrote default ignore file", slog.String("path", cfg.IgnoreFile()))
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	opts := storage.Options{Provider: emb.Provider(), Model: emb.Model()}
	indexEmb := emb
	if !cfg.Embedding.Remote() {
		opts.Embed = embedder.Func(emb)
		indexEmb = nil
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath(), opts)
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// The ignore file may have just been written.
	lines, err := discover.LoadIgnoreFile(cfg.IgnoreFile())
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, err
	}
	cfg.IgnorePatterns = discover.NewMatcher(lines).Patterns()

	idx, err := indexer.New(cfg.IndexerConfig(), chunker.New(languages, logger), store, indexEmb, logger)
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, err
	}

	return &Project{
		Config:   cfg,
		Store:    store,
		Embedder: emb,
		Indexer:  idx,
		Searcher: searcher.NewSearcher(store, indexEmb),
		Session:  session.NewTracker(cfg.StateDir(), logger),
		Logger:   logger,
	}, nil
}

// OpenExisting is Open for read paths: it fails with ErrNotIndexed instead of
// creating a database.
func OpenExisting(cfg *config.Config, languages *chunker.Languages, logger *slog.Logger) (*Project, error) {
	if !cfg.Indexed() {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, cfg.Root)
	}
	return Open(cfg, languages, logger)
}

// Index runs the indexer and drops cached search results.
func (p *Project) Index(ctx context.Context, mode indexer.Mode) (*indexer.Result, error) {
	res, err := p.Indexer.Run(ctx, mode)
	if err != nil {
		return nil, err
	}
	p.Searcher.Invalidate()
	return res, nil
}

// ReindexFile re-indexes one file and drops cached search results.
func (p *Project) ReindexFile(ctx context.Context, path string) (*indexer.Result, error) {
	res, err := p.Indexer.ReindexFile(ctx, path)
	if err != nil {
		return nil, err
	}
	p.Searcher.Invalidate()
	return res, nil
}

// BeginSession snapshots the current candidate files.
func (p *Project) BeginSession() (int, error) {
	files, err := p.Indexer.Files()
	if err != nil {
		return 0, err
	}
	return p.Session.Begin(files, p.Config.Root)
}

// SessionResult is what EndSession reports.
type SessionResult struct {
	Diff            *session.Diff
	ChunksReindexed int
}

// EndSession diffs against the snapshot, runs an incremental index when
// anything changed, and clears the snapshot. The registry stays the only
// record of what is indexed; the diff just decides whether a run is needed.
func (p *Project) EndSession(ctx context.Context) (*SessionResult, error) {
	files, err := p.Indexer.Files()
	if err != nil {
		return nil, err
	}
	diff, err := p.Session.Diff(files, p.Config.Root)
	if err != nil {
		return nil, err
	}

	out := &SessionResult{Diff: diff}
	if !diff.Empty() {
		res, err := p.Index(ctx, indexer.ModeIncremental)
		if err != nil {
			return nil, err
		}
		out.ChunksReindexed = res.ChunksIndexed
	}

	if err := p.Session.End(); err != nil {
		return nil, err
	}
	return out, nil
}

// Status summarizes the project.
type Status struct {
	Indexed      bool   `json:"indexed"`
	Project      string `json:"project"`
	DBPath       string `json:"db_path"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Chunks       int    `json:"chunks"`
	Files        int    `json:"files"`
	TrackedFiles int    `json:"tracked_files"`
	Embeddings   int    `json:"embeddings"`
	Dimension    int    `json:"dimension"`
	Schema       string `json:"schema_version"`
	Indexing     bool   `json:"indexing"`
	Session      bool   `json:"session_active"`
}

// Status reads store statistics and the registry.
func (p *Project) Status(ctx context.Context) (*Status, error) {
	stats, err := p.Store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store stats: %w", err)
	}
	return &Status{
		Indexed:      true,
		Project:      p.Config.Root,
		DBPath:       p.Config.DBPath(),
		Provider:     p.Config.Embedding.Provider,
		Model:        p.Config.Embedding.Model,
		Chunks:       stats.Chunks,
		Files:        stats.Files,
		TrackedFiles: len(p.Indexer.Tracked()),
		Embeddings:   stats.Embeddings,
		Dimension:    stats.Dimension,
		Schema:       stats.SchemaVersion,
		Indexing:     p.Indexer.Busy(),
		Session:      p.Session.Active(),
	}, nil
}

// Close releases the store and the embedder.
func (p *Project) Close() error {
	return errors.Join(p.Store.Close(), p.Embedder.Close())
}
