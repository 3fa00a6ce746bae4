// Package embedder turns chunk text into vectors.
//
// Three providers implement Embedder:
//   - local: feature hashing of identifier tokens, no network, 384 dims
//   - openai: OpenAI /v1/embeddings (text-embedding-3-small by default)
//   - jina: Jina AI /v1/embeddings (jina-embeddings-v3 by default)
//
// The remote providers share one HTTP client implementation with
// exponential-backoff retry and an LRU cache keyed by model and content
// hash, so re-embedding unchanged text during incremental runs costs no API
// calls.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  embedder.ProviderOpenAI,
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vectors, err := embedder.EmbedTexts(ctx, emb, texts, embedder.DefaultBatchSize)
//
// # Provider Selection
//
// NewFromEnv picks a provider from CODESCOPE_EMBEDDING_PROVIDER, then from
// whichever of JINA_API_KEY or OPENAI_API_KEY is set, and falls back to the
// local provider.
//
// # Error Handling
//
// Remote failures are retried up to MaxRetries times and then reported as
// ErrProviderFailed. Missing API keys produce ErrNoProviderEnabled. Batches
// larger than MaxBatchSize are rejected with ErrBatchTooLarge; EmbedTexts
// splits input so callers never hit that limit.
package embedder
