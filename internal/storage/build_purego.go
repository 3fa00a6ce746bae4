//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build, no C compiler required:
//
//	CGO_ENABLED=0 go build ./...
//
// Vectors are ranked in Go after loading every vector of the query's
// dimension, which is fine for projects up to a few hundred thousand chunks.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
