package noirgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/noirgraph/pkg/driver"
	"github.com/soundprediction/noirgraph/pkg/embedder"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// ErrEmptyQuery is returned when a search query has no text.
var ErrEmptyQuery = errors.New("query cannot be empty")

// embedQuery embeds a search query with the query task type.
func (c *Client) embedQuery(ctx context.Context, query string, k int) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, types.ErrInvalidLimit
	}
	ectx, cancel := c.withTimeout(embedder.WithTaskType(ctx, embedder.TaskTypeQuery))
	defer cancel()
	vec, err := c.embedder.EmbedSingle(ectx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return vec, nil
}

// SearchChunks returns the k chunks closest to query.
func (c *Client) SearchChunks(ctx context.Context, query string, k int) ([]driver.ChunkHit, error) {
	vec, err := c.embedQuery(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return c.store.SearchChunks(ctx, vec, k)
}

// SearchStatements returns the k statements whose name or profile view is
// closest to query.
func (c *Client) SearchStatements(ctx context.Context, view driver.View, query string, k int) ([]driver.StatementHit, error) {
	vec, err := c.embedQuery(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return c.store.SearchStatements(ctx, view, vec, k)
}

// SearchEntities returns the k entities whose name or profile view is
// closest to query.
func (c *Client) SearchEntities(ctx context.Context, view driver.View, query string, k int) ([]driver.EntityHit, error) {
	vec, err := c.embedQuery(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return c.store.SearchEntities(ctx, view, vec, k)
}

// StatementsForEntity returns the statements an entity takes part in, as
// subject or object.
func (c *Client) StatementsForEntity(ctx context.Context, entityKey string) ([]driver.StatementRole, error) {
	return c.store.StatementsForEntity(ctx, entityKey)
}

// EntitiesForStatement returns the subject and object entities of a
// statement.
func (c *Client) EntitiesForStatement(ctx context.Context, statementKey string) ([]driver.EntityRole, error) {
	return c.store.EntitiesForStatement(ctx, statementKey)
}
