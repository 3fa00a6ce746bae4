// Package storage provides the SQLite-backed vector store for indexed chunks.
//
// The store keeps one row per chunk id and, optionally, one vector per
// chunk:
//   - chunks: id, file_path, start_line, end_line, language, symbol, content
//   - embeddings: chunk_id, vector (little-endian float32 blob), dimension,
//     provider, model
//
// Schema changes are applied on open through versioned migrations.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStore(".codescope/codescope.db", storage.Options{
//	    Embed:    localEmbed,
//	    Provider: "local",
//	    Model:    "feature-hash-384",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	// The store embeds the content itself
//	err = store.UpsertDocuments(ctx, records)
//
//	// Or the caller brings vectors from a remote provider
//	err = store.UpsertEmbeddings(ctx, records, vectors)
//
//	matches, err := store.QueryText(ctx, "where are sessions refreshed", 10)
//	for _, m := range matches {
//	    fmt.Printf("%s distance %.3f\n", m.ID, m.Distance)
//	}
//
// # Record Identity
//
// Records are keyed by chunk id ("path:start-end", optionally with a "#n"
// suffix). Upserting an existing id replaces its text, metadata and vector.
// DeleteByFile removes every record of one file, which is how re-indexing a
// changed file drops chunks whose ranges no longer exist.
//
// # Build Tags
//
// CGO Build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Ranks in SQL with vec_distance_cosine
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (default, or purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - Ranks in Go over all vectors of the query's dimension
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
