package searcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codescope/internal/embedder"
	"github.com/dshills/codescope/internal/storage"
	"github.com/dshills/codescope/pkg/types"
)

var corpus = []types.Chunk{
	{FilePath: "auth/login.go", StartLine: 1, EndLine: 12, Language: "go", Symbol: "Login",
		Content: "func Login(user, password string) (*Session, error) {\n\t// verify password hash\n}\n"},
	{FilePath: "render/page.go", StartLine: 5, EndLine: 20, Language: "go", Symbol: "RenderPage",
		Content: "func RenderPage(w io.Writer, tmpl *template.Template) error {\n\treturn tmpl.Execute(w, nil)\n}\n"},
	{FilePath: "db/pool.go", StartLine: 1, EndLine: 9, Language: "go",
		Content: "var pool = sql.Open(driver, dsn)\n"},
}

func ids(chunks []types.Chunk) []string {
	out := make([]string, len(chunks))
	for i := range chunks {
		out[i] = chunks[i].ID()
	}
	return out
}

func newLocal(t *testing.T) embedder.Embedder {
	t.Helper()
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	return emb
}

// storeEmbedded indexes corpus with vectors computed by the caller
func storeEmbedded(t *testing.T, emb embedder.Embedder) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:", storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	texts := make([]string, len(corpus))
	for i := range corpus {
		texts[i] = corpus[i].Content
	}
	vectors, err := embedder.EmbedTexts(context.Background(), emb, texts, 0)
	require.NoError(t, err)
	require.NoError(t, store.UpsertEmbeddings(context.Background(), storage.RecordsFromChunks(ids(corpus), corpus), vectors))
	return store
}

func TestSearch_WithEmbedder(t *testing.T) {
	emb := newLocal(t)
	s := NewSearcher(storeEmbedded(t, emb), emb)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "login password", Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.TotalResults)

	top := resp.Results[0]
	assert.Equal(t, "auth/login.go:1-12", top.ChunkID)
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "Login", top.Chunk.Symbol)
	assert.NoError(t, top.Chunk.Validate())
	assert.GreaterOrEqual(t, top.Similarity, resp.Results[1].Similarity)
}

func TestSearch_StoreEmbedsQuery(t *testing.T) {
	emb := newLocal(t)
	store, err := storage.NewSQLiteStore(":memory:", storage.Options{Embed: embedder.Func(emb)})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.UpsertDocuments(ctx, storage.RecordsFromChunks(ids(corpus), corpus)))

	s := NewSearcher(store, nil)
	resp, err := s.Search(ctx, SearchRequest{Query: "render template page"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "render/page.go:5-20", resp.Results[0].ChunkID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	emb := newLocal(t)
	s := NewSearcher(storeEmbedded(t, emb), emb)

	_, err := s.Search(context.Background(), SearchRequest{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_Cache(t *testing.T) {
	emb := newLocal(t)
	s := NewSearcher(storeEmbedded(t, emb), emb)
	ctx := context.Background()
	req := SearchRequest{Query: "sql pool", Limit: 3, UseCache: true}

	first, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	s.Invalidate()
	third, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
}

func TestValidateRequest_Limits(t *testing.T) {
	req := SearchRequest{Query: " q "}
	require.NoError(t, validateRequest(&req))
	assert.Equal(t, "q", req.Query)
	assert.Equal(t, DefaultLimit, req.Limit)
	assert.Equal(t, DefaultCacheTTL, req.CacheTTL)

	req = SearchRequest{Query: "q", Limit: 1000}
	require.NoError(t, validateRequest(&req))
	assert.Equal(t, MaxLimit, req.Limit)
}

func TestFormatResult(t *testing.T) {
	r := types.SearchResult{
		ChunkID:    "a.go:3-4",
		Rank:       1,
		Similarity: 0.875,
		Chunk:      types.Chunk{FilePath: "a.go", StartLine: 3, EndLine: 4, Symbol: "Run", Content: "func Run() {\r\n}\n"},
	}

	assert.Equal(t, "a.go:3-4 (Run)  [similarity: 87.50%]\n", FormatResult(r, false))
	assert.Equal(t, "a.go:3-4 (Run)  [similarity: 87.50%]\n    func Run() {\n    }\n", FormatResult(r, true))

	r.Chunk.Symbol = ""
	assert.Equal(t, "a.go:3-4  [similarity: 87.50%]\n", FormatResult(r, false))
}

func TestHits(t *testing.T) {
	hits := Hits([]types.SearchResult{{
		ChunkID:    "a.go:1-2",
		Similarity: 0.123456,
		Chunk:      types.Chunk{FilePath: "a.go", StartLine: 1, EndLine: 2, Content: "x"},
	}})
	require.Len(t, hits, 1)
	assert.Equal(t, "1-2", hits[0].Lines)
	assert.Equal(t, 0.1235, hits[0].Similarity)
}
