package noirgraph

import (
	"context"
	"fmt"
	"slices"

	"github.com/soundprediction/noirgraph/pkg/embedder"
	"github.com/soundprediction/noirgraph/pkg/resolver"
	"github.com/soundprediction/noirgraph/pkg/types"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

// StartResolution begins a resolution run and freezes the registry. When
// no statements were extracted in this process they are loaded from the
// open session.
func (c *Client) StartResolution(ctx context.Context) error {
	if c.Document() == nil {
		return &StageError{Stage: StageResolution, ChunkIndex: -1, Err: ErrNoDocument, Fatal: true}
	}
	if err := c.store.VerifySchema(ctx); err != nil {
		return &StageError{Stage: StageResolution, ChunkIndex: -1, Err: err, Fatal: true}
	}

	c.mu.RLock()
	empty := len(c.statements) == 0
	session := c.session
	c.mu.RUnlock()
	if empty && session != "" {
		statements, err := c.config.Sessions.LoadAllStatements(ctx, session)
		if err != nil {
			return &StageError{Stage: StageResolution, ChunkIndex: -1, Err: err}
		}
		c.mu.Lock()
		for _, s := range statements {
			c.statements[s.ChunkIndex] = append(c.statements[s.ChunkIndex], s)
		}
		c.mu.Unlock()
		c.logger.Info("Loaded statements from session", "session", session, "statements", len(statements))
	}

	c.config.Registry.Freeze()

	c.mu.Lock()
	c.resolution = &accumulator[*types.Entity]{}
	c.mu.Unlock()
	return nil
}

// DoResolution resolves the entities mentioned in the statements of one
// chunk, then embeds and stores them before returning. Each call is an
// independent pass: an entity seen in two chunks gets two IDs.
func (c *Client) DoResolution(ctx context.Context, chunk *types.Chunk) ([]*types.Entity, error) {
	c.mu.RLock()
	started := c.resolution != nil
	c.mu.RUnlock()
	if !started {
		return nil, &StageError{Stage: StageResolution, ChunkIndex: -1, Err: ErrStageNotStarted}
	}
	doc, err := c.checkChunk(chunk)
	if err != nil {
		return nil, &StageError{Stage: StageResolution, ChunkIndex: chunkIndex(chunk), Err: err}
	}

	fail := func(err error) ([]*types.Entity, error) {
		return nil, stageError(StageResolution, chunk.Index, err)
	}

	c.mu.RLock()
	statements := c.statements[chunk.Index]
	c.mu.RUnlock()
	if len(statements) == 0 {
		c.logger.Debug("No statements to resolve", "document_id", doc.ID, "chunk_index", chunk.Index)
		return nil, nil
	}

	cctx, cancel := c.withTimeout(ctx)
	drafts, rep, err := c.resolver.Resolve(cctx, chunk.Content, statements)
	cancel()
	if err != nil {
		return fail(err)
	}

	if err := c.checkCounters(doc); err != nil {
		return fail(err)
	}
	first := c.ids.ReserveEntities(len(drafts))
	entities := resolver.ToEntities(drafts, doc.ID, chunk.Index, sequence(first))
	if err := c.saveCounters(ctx); err != nil {
		return fail(fmt.Errorf("failed to save counters: %w", err))
	}

	ectx, cancel := c.withTimeout(embedder.WithTaskType(ctx, embedder.TaskTypeDocument))
	err = embedder.EmbedEntities(ectx, c.embedder, entities)
	cancel()
	if err != nil {
		return fail(err)
	}

	if err := c.store.UpsertEntities(ctx, entities); err != nil {
		return fail(fmt.Errorf("failed to store entities: %w", err))
	}
	if session := c.Session(); session != "" {
		if err := c.config.Sessions.SaveEntities(ctx, session, chunk.Index, entities); err != nil {
			return fail(err)
		}
	}

	c.mu.Lock()
	if c.resolution != nil {
		c.resolution.items = append(c.resolution.items, entities...)
	}
	c.mu.Unlock()

	c.logger.Info("Resolved entities",
		"document_id", doc.ID,
		"chunk_index", chunk.Index,
		"entities", len(entities),
		"dropped", rep.DroppedReferences,
		"rejected", rep.Rejected,
		"merged", rep.Merged)
	return entities, nil
}

// EndResolution closes the run and returns every entity it produced,
// ordered by ID.
func (c *Client) EndResolution() []*types.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolution == nil {
		return nil
	}
	out := c.resolution.items
	c.resolution = nil
	slices.SortFunc(out, func(a, b *types.Entity) int { return a.ID - b.ID })
	return out
}

// ResolveAll runs a full resolution stage over the loaded document.
func (c *Client) ResolveAll(ctx context.Context) (StageResult, []*types.Entity) {
	if err := c.StartResolution(ctx); err != nil {
		return stageReport(StageResolution, 0, 0, map[int]error{-1: err}), nil
	}

	chunks := c.limitedChunks()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := 0
	pool := utils.NewWorkerPool(c.config.Concurrency, c.DoResolution).
		OnResult(func(i int, _ []*types.Entity, err error) {
			done++
			if err != nil {
				c.logger.Error("Chunk resolution failed", "chunk_index", chunks[i].Index, "error", err)
				if IsFatal(err) {
					cancel()
				}
			}
			c.progress(StageResolution, done, len(chunks))
		})
	_, errs := pool.ProcessItems(ctx, chunks)

	entities := c.EndResolution()
	return stageReport(StageResolution, len(chunks), len(entities), byChunkIndex(chunks, errs)), entities
}
