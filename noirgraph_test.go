package noirgraph_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph"
	"github.com/soundprediction/noirgraph/pkg/checkpoint"
	"github.com/soundprediction/noirgraph/pkg/chunker"
	"github.com/soundprediction/noirgraph/pkg/driver"
	"github.com/soundprediction/noirgraph/pkg/embedder"
	"github.com/soundprediction/noirgraph/pkg/nlp/nlptest"
	"github.com/soundprediction/noirgraph/pkg/types"
)

const testDims = 16

const storyText = "\"Precisely,\" Holmes replied.\n\nThe big cat chased the mouse. It caught the mouse."

const (
	holmesStatements = `{"statements":[{"subject":"Holmes","predicate":"said","object":"\"Precisely.\"","modality":["assertion"],"sentence":"\"Precisely,\" Holmes replied.","explanation":"Holmes answers."}]}`
	catStatements    = `{"statements":[
		{"subject":"big cat","predicate":"chase","object":"mouse","modality":["assertion","past"],"sentence":"The big cat chased the mouse.","explanation":"Narration."},
		{"subject":"big cat","predicate":"catch","object":"mouse","modality":["assertion","past"],"sentence":"It caught the mouse.","explanation":"It is the cat."}
	]}`
	holmesEntities = `{"entities":[{"name":"Sherlock Holmes","aliases":["Holmes"],"type":"detective","category":"Person","description":"Consulting detective.","explanation":"Speaker of the line."}]}`
	catEntities    = `{"entities":[{"name":"big cat","aliases":["it","the cat"],"type":"cat","category":"Entity","description":"A hunting cat.","explanation":"Subject of both sentences."}]}`
)

func content(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// The extraction prompt for the second chunk carries the first one as
// history, so the cat paragraph is checked first.
func extractionModel() *nlptest.Client {
	return &nlptest.Client{Handler: func(messages []types.Message) (string, error) {
		if strings.Contains(content(messages), "The big cat chased") {
			return catStatements, nil
		}
		return holmesStatements, nil
	}}
}

func resolutionModel() *nlptest.Client {
	return &nlptest.Client{Handler: func(messages []types.Message) (string, error) {
		if strings.Contains(content(messages), "The big cat chased") {
			return catEntities, nil
		}
		return holmesEntities, nil
	}}
}

type fixture struct {
	client     *noirgraph.Client
	store      *driver.MemoryDriver
	sessions   *checkpoint.Store
	extraction *nlptest.Client
	resolution *nlptest.Client
}

func newFixture(t *testing.T, modify func(*noirgraph.Config)) *fixture {
	t.Helper()
	sessions, err := checkpoint.NewStore(t.TempDir(), "")
	require.NoError(t, err)

	store := driver.NewMemoryDriver(testDims)
	require.NoError(t, store.CreateSchema(context.Background()))

	f := &fixture{
		store:      store,
		sessions:   sessions,
		extraction: extractionModel(),
		resolution: resolutionModel(),
	}
	cfg := &noirgraph.Config{
		Chunking:    chunker.Options{TargetSize: 30, MinSize: 5},
		Concurrency: 1,
		Sessions:    sessions,
	}
	if modify != nil {
		modify(cfg)
	}
	f.client, err = noirgraph.NewClient(store,
		noirgraph.LanguageModels{Extraction: f.extraction, Resolution: f.resolution},
		embedder.NewHashEmbedder(testDims), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return f
}

func (f *fixture) load(t *testing.T) *types.Document {
	t.Helper()
	doc := &types.Document{ID: "story", Title: "A Story", Content: storyText}
	chunks, err := f.client.LoadDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	return doc
}

func TestNewClientValidation(t *testing.T) {
	emb := embedder.NewHashEmbedder(testDims)
	store := driver.NewMemoryDriver(testDims)
	model := nlptest.NewClient()

	_, err := noirgraph.NewClient(nil, noirgraph.LanguageModels{Extraction: model}, emb, nil, nil)
	assert.Error(t, err)
	_, err = noirgraph.NewClient(store, noirgraph.LanguageModels{Extraction: model}, nil, nil, nil)
	assert.Error(t, err)
	_, err = noirgraph.NewClient(store, noirgraph.LanguageModels{}, emb, nil, nil)
	assert.Error(t, err)

	client, err := noirgraph.NewClient(store, noirgraph.LanguageModels{Resolution: model}, emb, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, client.Registry())
	assert.Same(t, store, client.GetDriver())
}

func TestLoadDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	session, err := f.client.OpenSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "student-001", session)

	doc := &types.Document{Title: "Untitled", Content: storyText}
	chunks, err := f.client.LoadDocument(ctx, doc)
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID, "a missing id is generated")
	require.Len(t, chunks, 2)
	assert.Equal(t, "\"Precisely,\" Holmes replied.", chunks[0].Content)
	assert.Equal(t, types.ChunkID(doc.ID, 1), chunks[1].ChunkID())
	assert.Len(t, chunks[0].Embedding, testDims)

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Documents)
	assert.EqualValues(t, 2, stats.Chunks)
	assert.EqualValues(t, 2, stats.EdgesByType[driver.EdgeHasChunk])

	saved, err := f.sessions.LoadDocument(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, saved.ID)
	counters, err := f.sessions.LoadCounters(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.NextStatementID)
	assert.Equal(t, 1, counters.NextEntityID)

	_, err = f.client.LoadDocument(ctx, &types.Document{ID: "empty", Content: "  "})
	assert.ErrorIs(t, err, types.ErrEmptyContent)
	_, err = f.client.LoadDocument(ctx, nil)
	assert.ErrorIs(t, err, noirgraph.ErrNoDocument)
}

func TestLoadDocumentDimensionMismatch(t *testing.T) {
	store := driver.NewMemoryDriver(testDims)
	require.NoError(t, store.CreateSchema(context.Background()))
	client, err := noirgraph.NewClient(store,
		noirgraph.LanguageModels{Extraction: extractionModel()},
		embedder.NewHashEmbedder(4), nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	_, err = client.LoadDocument(context.Background(), &types.Document{ID: "d", Content: storyText})
	assert.ErrorIs(t, err, driver.ErrDimensionMismatch)
	assert.True(t, noirgraph.IsFatal(err))
}

func TestStageCallsInOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	err := f.client.StartExtraction(ctx)
	require.ErrorIs(t, err, noirgraph.ErrNoDocument)
	assert.True(t, noirgraph.IsFatal(err))

	doc := f.load(t)
	chunks := f.client.Chunks()

	_, err = f.client.DoExtraction(ctx, chunks[0])
	assert.ErrorIs(t, err, noirgraph.ErrStageNotStarted)

	require.NoError(t, f.client.StartExtraction(ctx))
	first, err := f.client.DoExtraction(ctx, chunks[0])
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, first[0].ID)
	assert.Equal(t, "story_1", first[0].Key())
	assert.Equal(t, doc.ID, first[0].DocumentID)

	second, err := f.client.DoExtraction(ctx, chunks[1])
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, []int{2, 3}, []int{second[0].ID, second[1].ID})
	assert.Equal(t, 1, second[0].ChunkIndex)

	foreign := &types.Chunk{DocumentID: "other", Index: 0, Content: "x"}
	_, err = f.client.DoExtraction(ctx, foreign)
	assert.ErrorIs(t, err, noirgraph.ErrUnknownChunk)

	all := f.client.EndExtraction()
	require.Len(t, all, 3)
	for i, s := range all {
		assert.Equal(t, i+1, s.ID)
	}
	assert.Nil(t, f.client.EndExtraction(), "a closed run returns nothing")

	// A second run continues numbering instead of reusing IDs.
	require.NoError(t, f.client.StartExtraction(ctx))
	again, err := f.client.DoExtraction(ctx, chunks[0])
	require.NoError(t, err)
	assert.Equal(t, 4, again[0].ID)
	f.client.EndExtraction()

	// Loading the document again resets the counters.
	f.load(t)
	require.NoError(t, f.client.StartExtraction(ctx))
	reset, err := f.client.DoExtraction(ctx, f.client.Chunks()[0])
	require.NoError(t, err)
	assert.Equal(t, 1, reset[0].ID)
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var progress []string
	f := newFixture(t, func(c *noirgraph.Config) {
		c.Concurrency = 4
		c.Progress = func(stage string, done, total int) {
			mu.Lock()
			defer mu.Unlock()
			progress = append(progress, stage)
		}
	})
	session, err := f.client.OpenSession(ctx, "")
	require.NoError(t, err)
	doc := f.load(t)

	res, statements := f.client.ExtractAll(ctx)
	require.True(t, res.OK, res.Report)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, 3, res.Items)
	require.Len(t, statements, 3)

	seen := map[int]bool{}
	for i, s := range statements {
		assert.Equal(t, i+1, s.ID, "ids are dense and ordered")
		assert.False(t, seen[s.ID])
		seen[s.ID] = true
		assert.Len(t, s.NameEmbedding, testDims)
		assert.Len(t, s.ProfileEmbedding, testDims)
	}
	assert.Len(t, f.extraction.Calls(), 2)

	res, entities := f.client.ResolveAll(ctx)
	require.True(t, res.OK, res.Report)
	require.Len(t, entities, 2)
	assert.Equal(t, []int{1, 2}, []int{entities[0].ID, entities[1].ID})

	names := map[string]*types.Entity{}
	for _, e := range entities {
		names[e.Name] = e
		assert.Equal(t, doc.ID, e.DocumentID)
		assert.NotEmpty(t, e.StatementIDs(), "every entity is grounded")
	}
	require.Contains(t, names, "Sherlock Holmes")
	require.Contains(t, names, "big cat")
	assert.Len(t, names["big cat"].SubjectStatementIDs, 2)

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Statements)
	assert.EqualValues(t, 2, stats.Entities)
	assert.EqualValues(t, 3, stats.EdgesByType[driver.EdgeHasStatement])
	assert.EqualValues(t, 3, stats.EdgesByType[driver.EdgeHasSubject])

	holmes := names["Sherlock Holmes"]
	roles, err := f.client.StatementsForEntity(ctx, holmes.Key())
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, driver.RoleSubject, roles[0].Role)
	assert.Equal(t, "Holmes", roles[0].Statement.Subject)

	cat := names["big cat"]
	related, err := f.client.EntitiesForStatement(ctx, types.StatementKey(doc.ID, cat.SubjectStatementIDs[0]))
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, cat.Key(), related[0].Entity.Key())

	saved, err := f.sessions.LoadAllStatements(ctx, session)
	require.NoError(t, err)
	assert.Len(t, saved, 3)
	savedEntities, err := f.sessions.LoadAllEntities(ctx, session)
	require.NoError(t, err)
	assert.Len(t, savedEntities, 2)
	counters, err := f.sessions.LoadCounters(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 4, counters.NextStatementID)
	assert.Equal(t, 3, counters.NextEntityID)

	mu.Lock()
	assert.Equal(t, []string{
		noirgraph.StageExtraction, noirgraph.StageExtraction,
		noirgraph.StageResolution, noirgraph.StageResolution,
	}, progress)
	mu.Unlock()
}

func TestExtractAllSchemaMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	fresh := driver.NewMemoryDriver(testDims)
	client, err := noirgraph.NewClient(fresh,
		noirgraph.LanguageModels{Extraction: f.extraction},
		embedder.NewHashEmbedder(testDims), &noirgraph.Config{Chunking: chunker.Options{TargetSize: 30, MinSize: 5}},
		slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	_, err = client.LoadDocument(ctx, &types.Document{ID: "story", Content: storyText})
	require.NoError(t, err)

	res, statements := client.ExtractAll(ctx)
	assert.False(t, res.OK)
	assert.Empty(t, statements)
	require.Len(t, res.Errors, 1)
	assert.True(t, res.Errors[0].Fatal)
	assert.ErrorIs(t, &res.Errors[0], driver.ErrSchemaMissing)
	assert.Contains(t, res.Message, "aborted")
	assert.Contains(t, res.Report, "could not start")
	assert.Empty(t, f.extraction.Calls(), "no model call before the schema check")
}

func TestExtractAllChunkFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.extraction.Handler = func(messages []types.Message) (string, error) {
		if strings.Contains(content(messages), "The big cat chased") {
			return catStatements, nil
		}
		return "", errors.New("upstream unavailable")
	}
	f.load(t)

	res, statements := f.client.ExtractAll(ctx)
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Chunks)
	assert.Len(t, statements, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 0, res.Errors[0].ChunkIndex)
	assert.False(t, res.Errors[0].Fatal)
	assert.Contains(t, res.Report, "Chunk 0")

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Statements, "statements of the healthy chunk are stored")
}

func TestChunkLimit(t *testing.T) {
	f := newFixture(t, func(c *noirgraph.Config) { c.ChunkLimit = 1 })
	f.load(t)

	res, statements := f.client.ExtractAll(context.Background())
	require.True(t, res.OK, res.Report)
	assert.Equal(t, 1, res.Chunks)
	assert.Len(t, statements, 1)
}

func TestResolutionLoadsSessionStatements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	session, err := f.client.OpenSession(ctx, "")
	require.NoError(t, err)
	f.load(t)
	res, _ := f.client.ExtractAll(ctx)
	require.True(t, res.OK, res.Report)

	// A new process picks up the session and resolves without re-extracting.
	next, err := noirgraph.NewClient(f.store,
		noirgraph.LanguageModels{Extraction: f.extraction, Resolution: f.resolution},
		embedder.NewHashEmbedder(testDims),
		&noirgraph.Config{Chunking: chunker.Options{TargetSize: 30, MinSize: 5}, Sessions: f.sessions},
		slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	_, err = next.OpenSession(ctx, session)
	require.NoError(t, err)
	require.NoError(t, next.Resume(ctx))

	assert.Equal(t, "story", next.Document().ID)
	assert.Len(t, next.Chunks(), 2)
	assert.Len(t, next.Statements(), 3)
	assert.Equal(t, 4, next.IDs().Counters().NextStatementID)

	res, entities := next.ResolveAll(ctx)
	require.True(t, res.OK, res.Report)
	assert.Len(t, entities, 2)
	assert.True(t, next.Registry().Frozen())

	require.NoError(t, next.StartExtraction(ctx))
	more, err := next.DoExtraction(ctx, next.Chunks()[0])
	require.NoError(t, err)
	assert.Equal(t, 4, more[0].ID, "resumed counters continue")
}

func TestResumeRejectsCorruptedCounters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	session, err := f.client.OpenSession(ctx, "")
	require.NoError(t, err)
	f.load(t)
	res, _ := f.client.ExtractAll(ctx)
	require.True(t, res.OK, res.Report)

	counters, err := f.sessions.LoadCounters(ctx, session)
	require.NoError(t, err)
	counters.NextStatementID = 2
	require.NoError(t, f.sessions.SaveCounters(ctx, session, *counters))

	err = f.client.Resume(ctx)
	assert.ErrorIs(t, err, noirgraph.ErrCountersCorrupted)
	assert.True(t, noirgraph.IsFatal(err))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.load(t)
	_, statements := f.client.ExtractAll(ctx)
	require.Len(t, statements, 3)
	_, entities := f.client.ResolveAll(ctx)
	require.Len(t, entities, 2)

	chunks, err := f.client.SearchChunks(ctx, "the big cat chased the mouse it caught the mouse", 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Chunk.Index)

	hits, err := f.client.SearchStatements(ctx, driver.ViewName, statements[0].NameString(), 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, statements[0].Key(), hits[0].Statement.Key())
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	found, err := f.client.SearchEntities(ctx, driver.ViewName, "Sherlock Holmes", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Sherlock Holmes", found[0].Entity.Name)

	_, err = f.client.SearchChunks(ctx, "  ", 1)
	assert.ErrorIs(t, err, noirgraph.ErrEmptyQuery)
	_, err = f.client.SearchEntities(ctx, driver.ViewName, "cat", 0)
	assert.ErrorIs(t, err, types.ErrInvalidLimit)
}

func TestDuplicateCandidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.client.OpenSession(ctx, "")
	require.NoError(t, err)
	f.load(t)
	_, statements := f.client.ExtractAll(ctx)
	require.Len(t, statements, 3)

	// The same referent named in two chunks is not merged, only reported.
	f.resolution.Handler = func(messages []types.Message) (string, error) {
		return `{"entities":[{"name":"Holmes","category":"Person","subject_statement_ids":[2]}]}`, nil
	}
	res, entities := f.client.ResolveAll(ctx)
	require.True(t, res.OK, res.Report)
	require.Len(t, entities, 2)

	pairs, err := f.client.DuplicateCandidates(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 1, pairs[0].OriginalID)
	assert.Equal(t, 2, pairs[0].DuplicateID)
	assert.InDelta(t, 1.0, pairs[0].Similarity, 1e-6)
}

func TestDiagnostics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	res := f.client.TestDatabase(ctx)
	assert.True(t, res.OK)
	assert.Contains(t, res.Report, "Provider: `memory`")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	res = f.client.TestDatabase(cancelled)
	assert.False(t, res.OK)
	assert.Contains(t, res.Report, "### ")

	f.extraction.Handler = func([]types.Message) (string, error) { return "Connected.", nil }
	res = f.client.TestLanguageModel(ctx)
	assert.True(t, res.OK, res.Report)
	assert.Contains(t, res.Report, "Connected.")

	f.resolution.Err = errors.New("invalid api key")
	res = f.client.TestLanguageModel(ctx)
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "resolution")
	assert.Contains(t, res.Report, "invalid api key")

	res = f.client.TestEmbedding(ctx)
	assert.True(t, res.OK)
	assert.Contains(t, res.Message, "16")
}

func TestEmbeddingDimensionReport(t *testing.T) {
	client, err := noirgraph.NewClient(driver.NewMemoryDriver(testDims),
		noirgraph.LanguageModels{Extraction: nlptest.NewClient()},
		wrongSize{embedder.NewHashEmbedder(8)}, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	res := client.TestEmbedding(context.Background())
	assert.False(t, res.OK)
	assert.Equal(t, "Embedding has 8 dimensions, expected 16", res.Message)
}

// wrongSize reports more dimensions than it produces.
type wrongSize struct {
	*embedder.HashEmbedder
}

func (wrongSize) Dimensions() int { return testDims }

func TestClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.load(t)
	res, _ := f.client.ExtractAll(ctx)
	require.True(t, res.OK, res.Report)

	_, err := f.client.LoadDocument(ctx, &types.Document{ID: "other", Content: "Watson waited."})
	require.NoError(t, err)

	res = f.client.ClearDocument(ctx, "story")
	require.True(t, res.OK, res.Report)
	assert.Equal(t, 6, res.Items, "document, two chunks, three statements")

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Documents)

	res = f.client.ClearDocument(ctx, "")
	assert.False(t, res.OK)

	res = f.client.ClearGraph(ctx)
	require.True(t, res.OK, res.Report)
	stats, err = f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Documents+stats.Chunks)
}
