package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

// HashEmbedder is an offline embedder that hashes lowercased word tokens into
// a fixed number of buckets and L2-normalizes the result. Texts sharing words
// get similar vectors, which is enough for dry runs and tests.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hashing embedder. Non-positive dims use DefaultDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed generates embeddings for the given texts.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return []float32{}
	}
	v := make([]float32, h.dims)
	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		v[int(f.Sum32()%uint32(h.dims))]++
	}
	return utils.Normalize(v)
}

// EmbedSingle generates an embedding for a single text.
func (h *HashEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := h.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions returns the number of dimensions in the embeddings.
func (h *HashEmbedder) Dimensions() int {
	return h.dims
}

// GetCapabilities returns the list of capabilities supported by this client.
func (h *HashEmbedder) GetCapabilities() []nlp.TaskCapability {
	return []nlp.TaskCapability{nlp.TaskEmbedding}
}

// Close cleans up any resources.
func (h *HashEmbedder) Close() error {
	return nil
}
