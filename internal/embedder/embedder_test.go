package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	h1 := ComputeHash("func main() {}")
	h2 := ComputeHash("func main() {}")
	h3 := ComputeHash("func other() {}")

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "x"}))
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr bool
	}{
		{"valid", []string{"a", "b"}, false},
		{"empty batch", nil, true},
		{"empty text", []string{"a", ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: tt.texts})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCache(t *testing.T) {
	cache := NewCache(2)

	cache.Set("a", &Embedding{Vector: []float32{1, 2}, Dimension: 2})
	got, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, got.Vector)

	// Mutating the copy leaves the cached value intact
	got.Vector[0] = 99
	again, _ := cache.Get("a")
	assert.Equal(t, float32(1), again.Vector[0])

	cache.Set("b", &Embedding{Vector: []float32{3}})
	cache.Set("c", &Embedding{Vector: []float32{4}})
	assert.Equal(t, 2, cache.Size())
	_, ok = cache.Get("a")
	assert.False(t, ok, "least recently used entry is evicted")

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"parse", "http", "request", "v2", "user", "id"},
		Tokenize("parseHTTPRequest_v2(user.ID)"))
	assert.Empty(t, Tokenize("  a = b + c  "))
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)

	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, DefaultLocalModel, p.Model())
	assert.Equal(t, LocalDimension, p.Dimension())

	emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func LoadConfig(path string)"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, LocalDimension)
	assert.InDelta(t, 1.0, norm(emb.Vector), 1e-5)

	again, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func LoadConfig(path string)"})
	require.NoError(t, err)
	assert.Equal(t, emb.Vector, again.Vector)

	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestLocalProvider_SharedVocabularyIsCloser(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{
		"load config file",
		"func loadConfigFile(path string) (*Config, error)",
		"render html template for dashboard",
	}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)

	query := resp.Embeddings[0].Vector
	related := dot(query, resp.Embeddings[1].Vector)
	unrelated := dot(query, resp.Embeddings[2].Vector)
	assert.Greater(t, related, unrelated)
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

type countingEmbedder struct {
	LocalProvider
	batches []int
	fail    error
}

func (c *countingEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	c.batches = append(c.batches, len(req.Texts))
	return c.LocalProvider.GenerateBatch(ctx, req)
}

func TestEmbedTexts_Batches(t *testing.T) {
	e := &countingEmbedder{LocalProvider: LocalProvider{model: DefaultLocalModel}}
	texts := make([]string, 7)
	for i := range texts {
		texts[i] = "chunk text"
	}

	vectors, err := EmbedTexts(context.Background(), e, texts, 3)
	require.NoError(t, err)
	assert.Len(t, vectors, 7)
	assert.Equal(t, []int{3, 3, 1}, e.batches)
}

func TestEmbedTexts_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	e := &countingEmbedder{fail: boom}

	_, err := EmbedTexts(context.Background(), e, []string{"x"}, 0)
	assert.ErrorIs(t, err, boom)
}

func TestFunc(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	vectors, err := Func(p)(context.Background(), []string{"a b", "c d"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	return dot(v, v)
}
