// Package indexer keeps the chunk store in sync with a project tree.
//
// A run discovers candidate files, asks the hash registry which of them
// changed, re-chunks only those, and writes the result to the store.
//
// # Basic Usage
//
//	idx, err := indexer.New(indexer.Config{Root: "/path/to/project"},
//	    chunker.New(chunker.NewLanguages(), logger), store, nil, logger)
//
//	res, err := idx.Run(ctx, indexer.ModeIncremental)
//	fmt.Printf("%d chunks from %d changed files\n", res.ChunksIndexed, res.FilesChanged)
//
// # Modes
//
// ModeFull clears the store and processes every candidate file regardless of
// the registry. ModeIncremental diffs the candidates against the registry:
//
//  1. Deleted files have their chunks purged and their entries removed.
//  2. Changed files have their old chunks removed and are re-chunked.
//  3. Unchanged files are not read at all when their mtime did not move.
//
// Running the same unchanged project twice reports zero changed, deleted and
// indexed on the second run.
//
// # Concurrent Processing
//
// Extraction fans out over an errgroup bounded by Config.Workers. Results are
// sorted by path before ids are assigned, so output does not depend on
// completion order. Store writes and registry updates then run sequentially
// in batches of Config.BatchSize chunks; a file's old chunks are removed,
// its new chunks written and its registry entry refreshed within one batch.
//
// # Chunk Identifiers
//
// Ids are "<path>:<start>-<end>". When a run produces the same id more than
// once, later occurrences get "#1", "#2", ... appended.
//
// # Embedding
//
// With a nil embedder the store computes vectors itself (UpsertDocuments).
// Otherwise each batch is embedded first and written with UpsertEmbeddings.
//
// # Failure Handling
//
// A store or embedder error stops the run. The registry is saved covering the
// files written before the failure, so the next incremental run redoes only
// the rest. A cancelled context returns without saving. Config.CheckpointEvery
// additionally saves the registry every N stored files.
//
// Run and ReindexFile on one Indexer are mutually exclusive; a call made while
// another is active returns ErrIndexingInProgress.
package indexer
