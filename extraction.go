package noirgraph

import (
	"context"
	"fmt"
	"slices"

	"github.com/soundprediction/noirgraph/pkg/embedder"
	"github.com/soundprediction/noirgraph/pkg/extractor"
	"github.com/soundprediction/noirgraph/pkg/types"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

// StartExtraction begins an extraction run. It resets the run's
// accumulator but leaves stored statements in place; clear the graph first
// for a clean slate. A missing schema constraint aborts the run.
func (c *Client) StartExtraction(ctx context.Context) error {
	if c.Document() == nil {
		return &StageError{Stage: StageExtraction, ChunkIndex: -1, Err: ErrNoDocument, Fatal: true}
	}
	if err := c.store.VerifySchema(ctx); err != nil {
		return &StageError{Stage: StageExtraction, ChunkIndex: -1, Err: err, Fatal: true}
	}

	c.mu.Lock()
	c.extraction = &accumulator[*types.Statement]{}
	c.mu.Unlock()
	return nil
}

// DoExtraction extracts, embeds and stores the statements of one chunk.
// The statements are written to the graph and the open session before the
// call returns. Zero statements is a valid result.
func (c *Client) DoExtraction(ctx context.Context, chunk *types.Chunk) ([]*types.Statement, error) {
	c.mu.RLock()
	started := c.extraction != nil
	allChunks := c.chunks
	c.mu.RUnlock()
	if !started {
		return nil, &StageError{Stage: StageExtraction, ChunkIndex: -1, Err: ErrStageNotStarted}
	}
	doc, err := c.checkChunk(chunk)
	if err != nil {
		return nil, &StageError{Stage: StageExtraction, ChunkIndex: chunkIndex(chunk), Err: err}
	}

	fail := func(err error) ([]*types.Statement, error) {
		return nil, stageError(StageExtraction, chunk.Index, err)
	}

	history := extractor.History(allChunks, chunk.Index, c.extractor.Options().HistoryWindow)
	cctx, cancel := c.withTimeout(ctx)
	drafts, discarded, err := c.extractor.Extract(cctx, chunk.Content, history)
	cancel()
	if err != nil {
		return fail(err)
	}

	// IDs are reserved once the reply is in, so concurrent chunks never
	// number their statements by position.
	if err := c.checkCounters(doc); err != nil {
		return fail(err)
	}
	first := c.ids.ReserveStatements(len(drafts))
	statements := extractor.ToStatements(drafts, doc.ID, chunk.Index, sequence(first))
	if err := c.saveCounters(ctx); err != nil {
		return fail(fmt.Errorf("failed to save counters: %w", err))
	}

	ectx, cancel := c.withTimeout(embedder.WithTaskType(ctx, embedder.TaskTypeDocument))
	err = embedder.EmbedStatements(ectx, c.embedder, statements)
	cancel()
	if err != nil {
		return fail(err)
	}

	if err := c.store.UpsertStatements(ctx, statements); err != nil {
		return fail(fmt.Errorf("failed to store statements: %w", err))
	}
	if session := c.Session(); session != "" {
		if err := c.config.Sessions.SaveStatements(ctx, session, chunk.Index, statements); err != nil {
			return fail(err)
		}
	}

	c.mu.Lock()
	c.statements[chunk.Index] = statements
	if c.extraction != nil {
		c.extraction.items = append(c.extraction.items, statements...)
	}
	c.mu.Unlock()

	c.logger.Info("Extracted statements",
		"document_id", doc.ID,
		"chunk_index", chunk.Index,
		"statements", len(statements),
		"discarded", discarded)
	return statements, nil
}

// EndExtraction closes the run and returns every statement it produced,
// ordered by ID.
func (c *Client) EndExtraction() []*types.Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.extraction == nil {
		return nil
	}
	out := c.extraction.items
	c.extraction = nil
	slices.SortFunc(out, func(a, b *types.Statement) int { return a.ID - b.ID })
	return out
}

// ExtractAll runs a full extraction stage over the loaded document with up
// to Concurrency chunks in flight. A fatal error stops the remaining
// chunks; other failures are reported and skipped.
func (c *Client) ExtractAll(ctx context.Context) (StageResult, []*types.Statement) {
	if err := c.StartExtraction(ctx); err != nil {
		return stageReport(StageExtraction, 0, 0, map[int]error{-1: err}), nil
	}

	chunks := c.limitedChunks()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := 0
	pool := utils.NewWorkerPool(c.config.Concurrency, c.DoExtraction).
		OnResult(func(i int, _ []*types.Statement, err error) {
			done++
			if err != nil {
				c.logger.Error("Chunk extraction failed", "chunk_index", chunks[i].Index, "error", err)
				if IsFatal(err) {
					cancel()
				}
			}
			c.progress(StageExtraction, done, len(chunks))
		})
	_, errs := pool.ProcessItems(ctx, chunks)

	statements := c.EndExtraction()
	return stageReport(StageExtraction, len(chunks), len(statements), byChunkIndex(chunks, errs)), statements
}

// byChunkIndex rekeys pool errors from slice position to chunk index.
func byChunkIndex(chunks []*types.Chunk, errs map[int]error) map[int]error {
	out := make(map[int]error, len(errs))
	for i, err := range errs {
		out[chunks[i].Index] = err
	}
	return out
}

func chunkIndex(chunk *types.Chunk) int {
	if chunk == nil {
		return -1
	}
	return chunk.Index
}
