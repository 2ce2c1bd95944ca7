package embedder

import (
	"context"
	"time"

	"github.com/soundprediction/noirgraph/pkg/nlp"
)

// Client defines the interface for embedding operations.
type Client interface {
	// Embed generates embeddings for the given texts. The result has one
	// vector per input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the number of dimensions in the embeddings.
	Dimensions() int

	// GetCapabilities returns the list of capabilities supported by this client.
	GetCapabilities() []nlp.TaskCapability

	// Close cleans up any resources.
	Close() error
}

const (
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536
	DefaultBatchSize  = 100
)

// TaskType tells the embedder whether a text is a search query or stored content.
type TaskType string

const (
	TaskTypeDocument TaskType = "document"
	TaskTypeQuery    TaskType = "query"
)

type taskTypeKey struct{}

// WithTaskType marks every Embed call made with ctx as the given task type.
func WithTaskType(ctx context.Context, t TaskType) context.Context {
	return context.WithValue(ctx, taskTypeKey{}, t)
}

// TaskTypeFrom returns the task type carried by ctx, TaskTypeDocument by default.
func TaskTypeFrom(ctx context.Context) TaskType {
	if t, ok := ctx.Value(taskTypeKey{}).(TaskType); ok {
		return t
	}
	return TaskTypeDocument
}

// Config holds configuration for embedding clients.
type Config struct {
	Model      string        `json:"model"`
	BaseURL    string        `json:"base_url,omitempty"`
	Dimensions int           `json:"dimensions,omitempty"`
	BatchSize  int           `json:"batch_size,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`

	// Instruction prefixes for models trained with asymmetric retrieval
	// prompts, e.g. "search_query: ". Empty for OpenAI models.
	QueryPrefix    string `json:"query_prefix,omitempty"`
	DocumentPrefix string `json:"document_prefix,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Dimensions <= 0 {
		c.Dimensions = modelDimensions(c.Model)
	}
	return c
}

func modelDimensions(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return DefaultDimensions
	}
}
