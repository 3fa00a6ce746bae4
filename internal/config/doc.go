// Package config resolves the effective settings for a project.
//
// Sources are layered, later ones winning:
//
//  1. built-in defaults (NewDefaultConfig)
//  2. the global file, ~/.codescope/config.yaml
//  3. the project file, <root>/.codescope/config.yaml
//  4. environment variables (CODESCOPE_EMBEDDING_PROVIDER, CODESCOPE_EMBEDDING_MODEL,
//     OPENAI_API_KEY, JINA_API_KEY, CODESCOPE_LOG_LEVEL)
//  5. Overrides, usually command-line flags
//
// YAML files go through os.ExpandEnv before parsing, so a project file can
// reference a key as ${OPENAI_API_KEY} without storing it.
//
// Example project file:
//
//	log_level: debug
//	embedding:
//	  provider: openai
//	chunking:
//	  max_chunk_lines: 80
//	  chunk_overlap: 4
//	index:
//	  workers: 4
//	  checkpoint_every: 200
//	search:
//	  n_results: 20
//
// Ignore patterns are read from <root>/.codescope/.codescopeignore.
package config
