// Package searcher answers natural-language queries over the chunk store.
//
// A query is embedded with the same provider that embedded the chunks and
// the nearest chunks are returned, closest first, with their cosine
// distance and a similarity in [0, 1].
//
//	s := searcher.NewSearcher(store, emb)
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "where is the retry backoff computed",
//	    Limit: 10,
//	})
//	for _, r := range resp.Results {
//	    fmt.Print(searcher.FormatResult(r, false))
//	}
//
// Responses can be cached per query and limit in an LRU with a TTL; callers
// that re-index must call Invalidate.
package searcher
