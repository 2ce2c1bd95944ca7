// Package nlptest provides a scripted nlp.Client for tests.
package nlptest

import (
	"context"
	"sync"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// Handler produces the reply content for one call.
type Handler func(messages []types.Message) (string, error)

// Client replays Replies in order, or calls Handler when set. Once Replies
// are exhausted the last one is repeated.
type Client struct {
	Replies []string
	Handler Handler
	Err     error

	mu    sync.Mutex
	calls [][]types.Message
}

// NewClient returns a client that answers with replies in order.
func NewClient(replies ...string) *Client {
	return &Client{Replies: replies}
}

// Chat records the call and returns the next reply.
func (c *Client) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	return c.reply(ctx, messages)
}

// ChatWithStructuredOutput records the call and returns the next reply.
func (c *Client) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return c.reply(ctx, messages)
}

func (c *Client) reply(ctx context.Context, messages []types.Message) (*types.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	n := len(c.calls)
	c.calls = append(c.calls, messages)
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	if c.Handler != nil {
		content, err := c.Handler(messages)
		if err != nil {
			return nil, err
		}
		return &types.Response{Content: content, Model: "fake"}, nil
	}
	if len(c.Replies) == 0 {
		return nil, nlp.NewEmptyResponseError("no scripted reply")
	}
	if n >= len(c.Replies) {
		n = len(c.Replies) - 1
	}
	return &types.Response{
		Content:    c.Replies[n],
		Model:      "fake",
		TokensUsed: &types.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// Calls returns the messages of every call made so far.
func (c *Client) Calls() [][]types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]types.Message, len(c.calls))
	copy(out, c.calls)
	return out
}

// GetCapabilities reports every chat capability.
func (c *Client) GetCapabilities() []nlp.TaskCapability {
	return []nlp.TaskCapability{nlp.TaskTextGeneration, nlp.TaskStatementExtraction, nlp.TaskEntityResolution}
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}
