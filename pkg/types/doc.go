// Package types provides shared type definitions for codescope.
//
// Chunk is the unit produced by the chunker and consumed by the indexer and
// the vector store. It carries its location, exact text, and optional
// language and symbol metadata:
//
//	chunk := types.Chunk{
//	    FilePath:  "internal/auth/login.go",
//	    StartLine: 12,
//	    EndLine:   40,
//	    Content:   body,
//	    Language:  "go",
//	    Symbol:    "Login",
//	}
//	chunk.ID() // "internal/auth/login.go:12-40"
//
// SearchResult wraps a stored chunk returned from a similarity query
// together with its rank, distance and similarity.
package types
