package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

// OpenAIEmbedder implements Client with the OpenAI embeddings API or an
// OpenAI-compatible service.
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

// NewOpenAIEmbedder creates a new OpenAI embedder.
func NewOpenAIEmbedder(apiKey string, config Config) *OpenAIEmbedder {
	config = config.withDefaults()

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Embed generates embeddings for the given texts in batches. Blank texts get
// an empty vector without a request.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	prefix := e.config.DocumentPrefix
	if TaskTypeFrom(ctx) == TaskTypeQuery {
		prefix = e.config.QueryPrefix
	}

	var slots []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = []float32{}
			continue
		}
		slots = append(slots, i)
	}

	for _, batch := range utils.Batch(slots, e.config.BatchSize) {
		inputs := make([]string, len(batch))
		for j, slot := range batch {
			inputs[j] = prefix + texts[slot]
		}
		vectors, err := e.embedBatch(ctx, inputs)
		if err != nil {
			return nil, err
		}
		for j, v := range vectors {
			out[batch[j]] = v
		}
	}

	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	req := openai.EmbeddingRequest{
		Input: batch,
		Model: openai.EmbeddingModel(e.config.Model),
	}
	if strings.HasPrefix(e.config.Model, "text-embedding-3") {
		req.Dimensions = e.config.Dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data))
	}

	vectors := make([][]float32, len(batch))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(batch) {
			idx = i
		}
		vectors[idx] = d.Embedding
	}
	return vectors, nil
}

// EmbedSingle generates an embedding for a single text.
func (e *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the number of dimensions in the embeddings.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// GetCapabilities returns the list of capabilities supported by this client.
func (e *OpenAIEmbedder) GetCapabilities() []nlp.TaskCapability {
	return []nlp.TaskCapability{nlp.TaskEmbedding}
}

// Close cleans up any resources.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
