package embedder_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph/pkg/embedder"
	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/types"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

// countingEmbedder records each Embed call it receives.
type countingEmbedder struct {
	*embedder.HashEmbedder
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls = append(c.calls, append([]string(nil), texts...))
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.HashEmbedder.Embed(ctx, texts)
}

func newCounting() *countingEmbedder {
	return &countingEmbedder{HashEmbedder: embedder.NewHashEmbedder(64)}
}

func TestEmbedderInterface(t *testing.T) {
	var _ embedder.Client = (*embedder.OpenAIEmbedder)(nil)
	var _ embedder.Client = (*embedder.HashEmbedder)(nil)
	var _ embedder.Client = (*embedder.CachedClient)(nil)
}

func TestEmbedderConfig(t *testing.T) {
	tests := []struct {
		name         string
		config       embedder.Config
		expectedDims int
	}{
		{"empty model uses default", embedder.Config{}, 1536},
		{"small model", embedder.Config{Model: "text-embedding-3-small"}, 1536},
		{"large model", embedder.Config{Model: "text-embedding-3-large"}, 3072},
		{"custom base URL", embedder.Config{Model: "nomic-embed-text", BaseURL: "http://localhost:11434/v1"}, 1536},
		{"custom dimensions", embedder.Config{Model: "custom-model", Dimensions: 512}, 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := embedder.NewOpenAIEmbedder("test-key", tt.config)
			require.NotNil(t, client)
			assert.Equal(t, tt.expectedDims, client.Dimensions())
			assert.Equal(t, []nlp.TaskCapability{nlp.TaskEmbedding}, client.GetCapabilities())
		})
	}
}

func TestOpenAIEmbedder_BlankTextsSkipTheAPI(t *testing.T) {
	// The base URL is unreachable; blank inputs must never get that far.
	client := embedder.NewOpenAIEmbedder("test-key", embedder.Config{BaseURL: "http://127.0.0.1:1"})
	vectors, err := client.Embed(context.Background(), []string{"", "   "})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{}, {}}, vectors)
}

func TestOpenAIEmbedder_Batches(t *testing.T) {
	var (
		mu       sync.Mutex
		requests [][]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		requests = append(requests, req.Input)
		mu.Unlock()

		data := make([]map[string]any, len(req.Input))
		for i, in := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(len(in))}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "model": "custom-model", "data": data})
	}))
	defer srv.Close()

	client := embedder.NewOpenAIEmbedder("test-key", embedder.Config{
		Model: "custom-model", BaseURL: srv.URL, Dimensions: 1, BatchSize: 2, DocumentPrefix: "doc: ",
	})
	vectors, err := client.Embed(context.Background(), []string{"a", "", "bb", "ccc"})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"doc: a", "doc: bb"}, {"doc: ccc"}}, requests)
	assert.Equal(t, [][]float32{{6}, {}, {7}, {8}}, vectors)
}

func TestHashEmbedder(t *testing.T) {
	h := embedder.NewHashEmbedder(128)
	ctx := context.Background()

	a, err := h.EmbedSingle(ctx, "the man in the blue coat")
	require.NoError(t, err)
	b, err := h.EmbedSingle(ctx, "The man in the BLUE coat!")
	require.NoError(t, err)
	c, err := h.EmbedSingle(ctx, "zebra migration patterns")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.InDelta(t, 1.0, utils.CosineSimilarity(a, b), 1e-6)
	assert.Less(t, utils.CosineSimilarity(a, c), 0.5)

	empty, err := h.EmbedSingle(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCachedClient(t *testing.T) {
	db, err := embedder.OpenCache("")
	require.NoError(t, err)

	inner := newCounting()
	cached := embedder.NewCachedClient(inner, db, "hash-64")
	defer cached.Close()
	ctx := context.Background()

	first, err := cached.Embed(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)

	second, err := cached.Embed(ctx, []string{"beta", "gamma", "alpha"})
	require.NoError(t, err)

	assert.Equal(t, first[0], second[2])
	assert.Equal(t, first[1], second[0])
	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"gamma"}, inner.calls[1], "only misses reach the wrapped client")

	_, err = cached.Embed(ctx, []string{"alpha", "gamma"})
	require.NoError(t, err)
	assert.Len(t, inner.calls, 2)
	assert.Equal(t, 64, cached.Dimensions())
}

func TestEmbedStatementsUsesTwoBatchedCalls(t *testing.T) {
	inner := newCounting()
	statements := []*types.Statement{
		{ID: 1, DocumentID: "d", Subject: "the man", Predicate: "wore", Object: "a coat", Sentence: "The man wore a coat."},
		{ID: 2, DocumentID: "d", Subject: "the man", Predicate: "walked", Object: "home", Modality: []string{"past"}},
	}

	require.NoError(t, embedder.EmbedStatements(context.Background(), inner, statements))
	assert.Len(t, inner.calls, 2)
	for _, s := range statements {
		assert.Len(t, s.NameEmbedding, 64)
		assert.Len(t, s.ProfileEmbedding, 64)
	}
}

func TestEmbedEntitiesPropagatesErrors(t *testing.T) {
	inner := newCounting()
	inner.err = errors.New("quota")
	entities := []*types.Entity{{ID: 1, DocumentID: "d", Name: "the man"}}

	err := embedder.EmbedEntities(context.Background(), inner, entities)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.Nil(t, entities[0].NameEmbedding)
}

func TestEmbedChunks(t *testing.T) {
	chunks := []*types.Chunk{{Index: 0, DocumentID: "d", Content: "first"}, {Index: 1, DocumentID: "d", Content: "second"}}
	require.NoError(t, embedder.EmbedChunks(context.Background(), embedder.NewHashEmbedder(16), chunks))
	assert.Len(t, chunks[0].Embedding, 16)
	assert.NotEqual(t, chunks[0].Embedding, chunks[1].Embedding)
}

func TestTaskType(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, embedder.TaskTypeDocument, embedder.TaskTypeFrom(ctx))
	assert.Equal(t, embedder.TaskTypeQuery, embedder.TaskTypeFrom(embedder.WithTaskType(ctx, embedder.TaskTypeQuery)))
}

func TestCachedClientSeparatesTaskTypes(t *testing.T) {
	db, err := embedder.OpenCache("")
	require.NoError(t, err)
	inner := newCounting()
	cached := embedder.NewCachedClient(inner, db, "hash-64")
	defer cached.Close()

	_, err = cached.EmbedSingle(context.Background(), "holmes")
	require.NoError(t, err)
	_, err = cached.EmbedSingle(embedder.WithTaskType(context.Background(), embedder.TaskTypeQuery), "holmes")
	require.NoError(t, err)
	assert.Len(t, inner.calls, 2)
}
