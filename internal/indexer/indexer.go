package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/codescope/internal/changes"
	"github.com/dshills/codescope/internal/chunker"
	"github.com/dshills/codescope/internal/discover"
	"github.com/dshills/codescope/internal/embedder"
	"github.com/dshills/codescope/internal/storage"
	"github.com/dshills/codescope/pkg/types"
)

const (
	// DefaultBatchSize is the number of chunks embedded and stored per step
	DefaultBatchSize = 100

	// StateDirName is the per-project directory holding the registry,
	// session snapshot, database and ignore file
	StateDirName = ".codescope"
)

// ErrIndexingInProgress is returned when a run is started while another
// run on the same Indexer has not finished.
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Mode selects how much of the project a run processes.
type Mode int

const (
	// ModeIncremental re-processes only new and modified files and purges deleted ones.
	ModeIncremental Mode = iota
	// ModeFull clears the store and re-processes every candidate file.
	ModeFull
)

func (m Mode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "incremental"
}

// Config contains configuration for the indexer
type Config struct {
	Root            string           // Project root (required)
	StateDir        string           // Registry directory (default: <Root>/.codescope)
	Workers         int              // Concurrent extraction workers (default: runtime.NumCPU())
	BatchSize       int              // Chunks per embed+store step (default: 100)
	MaxLines        int              // Chunk line budget (default: chunker.DefaultMaxLines)
	Overlap         int              // Window overlap (default: chunker.DefaultOverlap)
	CheckpointEvery int              // Save the registry every N stored files (default: 0, end of run only)
	Discover        discover.Options // Candidate file rules
}

// Result summarizes one run.
type Result struct {
	ChunksIndexed  int           `json:"chunks_indexed"`
	FilesChanged   int           `json:"files_changed"`
	FilesDeleted   int           `json:"files_deleted"`
	FilesUnchanged int           `json:"files_unchanged"`
	Duration       time.Duration `json:"-"`
}

// Plan is what an incremental run would do, computed without touching the store.
type Plan struct {
	Files   int      `json:"files"`
	Changed []string `json:"changed"`
	Deleted []string `json:"deleted"`
}

// Indexer coordinates the indexing pipeline: discover -> diff -> chunk -> embed -> store
type Indexer struct {
	cfg      Config
	chunker  *chunker.Chunker
	store    storage.Store
	embedder embedder.Embedder
	logger   *slog.Logger
	lock     IndexLock
}

// fileChunks is the extraction output for one file.
type fileChunks struct {
	path   string
	rel    string
	chunks []types.Chunk
	ids    []string
}

// New creates an Indexer. A nil embedder means the store computes vectors
// itself (UpsertDocuments); otherwise vectors are computed here and passed
// to UpsertEmbeddings.
func New(cfg Config, c *chunker.Chunker, store storage.Store, emb embedder.Embedder, logger *slog.Logger) (*Indexer, error) {
	if cfg.Root == "" {
		return nil, errors.New("indexer: project root is required")
	}
	if store == nil {
		return nil, errors.New("indexer: store is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	cfg.Root = root

	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(root, StateDirName)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = chunker.DefaultMaxLines
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Discover.Extensions == nil && cfg.Discover.IgnoreDirs == nil {
		matcher := cfg.Discover.Matcher
		cfg.Discover = discover.DefaultOptions()
		cfg.Discover.Matcher = matcher
	}
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = chunker.New(nil, logger)
	}

	return &Indexer{
		cfg:      cfg,
		chunker:  c,
		store:    store,
		embedder: emb,
		logger:   logger,
	}, nil
}

// Root returns the absolute project root.
func (idx *Indexer) Root() string {
	return idx.cfg.Root
}

// StateDir returns the directory holding the registry.
func (idx *Indexer) StateDir() string {
	return idx.cfg.StateDir
}

// Busy reports whether a run is in progress.
func (idx *Indexer) Busy() bool {
	return idx.lock.Held()
}

// Files returns the current candidate files, sorted absolute paths.
func (idx *Indexer) Files() ([]string, error) {
	files, err := discover.Files(idx.cfg.Root, idx.cfg.Discover)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	return files, nil
}

// Filter returns the candidate file rules compiled for the root.
func (idx *Indexer) Filter() *discover.Filter {
	return discover.NewFilter(idx.cfg.Root, idx.cfg.Discover)
}

// Tracked returns the relative paths recorded in the registry.
func (idx *Indexer) Tracked() []string {
	return changes.Load(idx.cfg.StateDir, idx.logger).Paths()
}

// Plan diffs the candidate files against the registry without indexing
// anything or saving the registry.
func (idx *Indexer) Plan(ctx context.Context) (*Plan, error) {
	files, err := idx.Files()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	diff := changes.Load(idx.cfg.StateDir, idx.logger).Diff(files, idx.cfg.Root)
	plan := &Plan{Files: len(files), Changed: make([]string, 0, len(diff.Changed)), Deleted: diff.Deleted}
	for _, f := range diff.Changed {
		plan.Changed = append(plan.Changed, changes.RelPath(idx.cfg.Root, f))
	}
	if plan.Deleted == nil {
		plan.Deleted = []string{}
	}
	return plan, nil
}

// Run indexes the project in the given mode.
//
// The registry is saved once at the end, and also when the store or the
// embedder fails, covering the files that were stored before the failure.
// A cancelled context returns ctx.Err() and leaves the registry file as it was
// (apart from checkpoints already written).
func (idx *Indexer) Run(ctx context.Context, mode Mode) (*Result, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	files, err := idx.Files()
	if err != nil {
		return nil, err
	}
	reg := changes.Load(idx.cfg.StateDir, idx.logger)

	var res *Result
	if mode == ModeFull {
		res, err = idx.runFull(ctx, reg, files)
	} else {
		res, err = idx.runIncremental(ctx, reg, files)
	}
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	idx.logger.Info("indexer: run complete",
		slog.String("mode", mode.String()),
		slog.Int("chunks", res.ChunksIndexed),
		slog.Int("changed", res.FilesChanged),
		slog.Int("deleted", res.FilesDeleted),
		slog.Int("unchanged", res.FilesUnchanged),
		slog.Duration("duration", res.Duration))
	return res, nil
}

func (idx *Indexer) runFull(ctx context.Context, reg *changes.Registry, files []string) (*Result, error) {
	if err := idx.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear store: %w", err)
	}

	// Entries for files that are no longer candidates would only be reported
	// as deleted by the next incremental run.
	current := make(map[string]struct{}, len(files))
	for _, f := range files {
		current[changes.RelPath(idx.cfg.Root, f)] = struct{}{}
	}
	for _, rel := range reg.Paths() {
		if _, ok := current[rel]; !ok {
			reg.Remove(rel)
		}
	}

	if len(files) == 0 {
		if err := reg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save registry: %w", err)
		}
		return &Result{}, nil
	}

	chunks, err := idx.process(ctx, reg, files, false)
	if err != nil {
		return nil, err
	}
	return &Result{ChunksIndexed: chunks, FilesChanged: len(files)}, nil
}

func (idx *Indexer) runIncremental(ctx context.Context, reg *changes.Registry, files []string) (*Result, error) {
	diff := reg.Diff(files, idx.cfg.Root)
	res := &Result{
		FilesChanged:   len(diff.Changed),
		FilesDeleted:   len(diff.Deleted),
		FilesUnchanged: len(files) - len(diff.Changed),
	}

	for _, rel := range diff.Deleted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := idx.store.DeleteByFile(ctx, rel); err != nil {
			return nil, idx.abort(ctx, reg, fmt.Errorf("failed to purge %s: %w", rel, err))
		}
		reg.Remove(rel)
	}

	if len(diff.Changed) == 0 {
		if err := reg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save registry: %w", err)
		}
		return res, nil
	}

	chunks, err := idx.process(ctx, reg, diff.Changed, true)
	if err != nil {
		return nil, err
	}
	res.ChunksIndexed = chunks
	return res, nil
}

// ReindexFile re-indexes a single file. A file that no longer exists has its
// chunks and registry entry purged; a file outside the candidate set is
// skipped and yields an empty result.
func (idx *Indexer) ReindexFile(ctx context.Context, path string) (*Result, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	if !filepath.IsAbs(path) {
		path = filepath.Join(idx.cfg.Root, path)
	}
	path = filepath.Clean(path)
	rel := changes.RelPath(idx.cfg.Root, path)
	reg := changes.Load(idx.cfg.StateDir, idx.logger)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := idx.store.DeleteByFile(ctx, rel); err != nil {
			return nil, fmt.Errorf("failed to purge %s: %w", rel, err)
		}
		reg.Remove(rel)
		if err := reg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save registry: %w", err)
		}
		idx.logger.Info("indexer: purged deleted file", slog.String("path", rel))
		return &Result{FilesDeleted: 1, Duration: time.Since(start)}, nil
	}

	if !idx.Filter().Include(path) {
		idx.logger.Debug("indexer: file not indexable", slog.String("path", rel))
		return &Result{Duration: time.Since(start)}, nil
	}

	chunks, err := idx.process(ctx, reg, []string{path}, true)
	if err != nil {
		return nil, err
	}
	return &Result{ChunksIndexed: chunks, FilesChanged: 1, Duration: time.Since(start)}, nil
}

// process extracts, stores and registers files, then saves the registry.
// When purge is set, each file's previously stored chunks are removed
// before its new ones are written.
func (idx *Indexer) process(ctx context.Context, reg *changes.Registry, files []string, purge bool) (int, error) {
	extracted, err := idx.extract(ctx, files)
	if err != nil {
		return 0, err
	}
	assignIDs(extracted)

	var (
		total     int
		pending   []fileChunks
		pendingN  int
		sinceSave int
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if purge {
			for _, fc := range pending {
				if err := idx.store.DeleteByFile(ctx, fc.rel); err != nil {
					return fmt.Errorf("failed to purge %s: %w", fc.rel, err)
				}
			}
		}
		if err := idx.storeBatch(ctx, pending); err != nil {
			return err
		}
		for _, fc := range pending {
			if err := reg.Update(fc.path, idx.cfg.Root); err != nil {
				idx.logger.Debug("indexer: registry update skipped",
					slog.String("path", fc.rel),
					slog.String("error", err.Error()))
			}
			total += len(fc.chunks)
		}
		sinceSave += len(pending)
		pending, pendingN = pending[:0], 0

		if idx.cfg.CheckpointEvery > 0 && sinceSave >= idx.cfg.CheckpointEvery {
			if err := reg.Save(); err != nil {
				return fmt.Errorf("failed to checkpoint registry: %w", err)
			}
			sinceSave = 0
		}
		return nil
	}

	for _, fc := range extracted {
		pending = append(pending, fc)
		pendingN += len(fc.chunks)
		if pendingN >= idx.cfg.BatchSize {
			if err := flush(); err != nil {
				return 0, idx.abort(ctx, reg, err)
			}
		}
	}
	if err := flush(); err != nil {
		return 0, idx.abort(ctx, reg, err)
	}

	if err := reg.Save(); err != nil {
		return 0, fmt.Errorf("failed to save registry: %w", err)
	}
	return total, nil
}

// abort saves whatever completed before a collaborator failure. Cancellation
// skips the save.
func (idx *Indexer) abort(ctx context.Context, reg *changes.Registry, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := reg.Save(); err != nil {
		idx.logger.Warn("indexer: registry save after failure",
			slog.String("error", err.Error()))
	}
	return cause
}

// extract chunks files concurrently and returns the results sorted by path.
func (idx *Indexer) extract(ctx context.Context, files []string) ([]fileChunks, error) {
	out := make([]fileChunks, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.Workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rel := changes.RelPath(idx.cfg.Root, path)
			chunks := idx.chunker.ExtractFile(gctx, path, idx.cfg.MaxLines, idx.cfg.Overlap)
			for j := range chunks {
				chunks[j].FilePath = rel
			}
			out[i] = fileChunks{path: path, rel: rel, chunks: chunks}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].rel < out[j].rel })
	return out, nil
}

// assignIDs gives every chunk its id. Repeated ids get "#1", "#2", ... in
// order of appearance; the first occurrence keeps the plain id.
func assignIDs(files []fileChunks) {
	seen := make(map[string]int)
	for i := range files {
		ids := make([]string, len(files[i].chunks))
		for j, c := range files[i].chunks {
			id := c.ID()
			n, dup := seen[id]
			seen[id] = n + 1
			if dup {
				id += "#" + strconv.Itoa(n)
			}
			ids[j] = id
		}
		files[i].ids = ids
	}
}

// storeBatch writes one batch of files as a single logical step.
func (idx *Indexer) storeBatch(ctx context.Context, batch []fileChunks) error {
	var records []storage.Record
	for _, fc := range batch {
		records = append(records, storage.RecordsFromChunks(fc.ids, fc.chunks)...)
	}
	if len(records) == 0 {
		return nil
	}

	if idx.embedder == nil {
		if err := idx.store.UpsertDocuments(ctx, records); err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
		return nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Chunk.Content
	}
	vectors, err := embedder.EmbedTexts(ctx, idx.embedder, texts, embedder.MaxBatchSize)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if err := idx.store.UpsertEmbeddings(ctx, records, vectors); err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}
	return nil
}
