package noirgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/noirgraph/pkg/checkpoint"
	"github.com/soundprediction/noirgraph/pkg/chunker"
	"github.com/soundprediction/noirgraph/pkg/driver"
	"github.com/soundprediction/noirgraph/pkg/embedder"
	"github.com/soundprediction/noirgraph/pkg/extractor"
	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/prompts"
	"github.com/soundprediction/noirgraph/pkg/registry"
	"github.com/soundprediction/noirgraph/pkg/resolver"
	"github.com/soundprediction/noirgraph/pkg/types"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

// DefaultRecentWindow is how long a session folder counts as recent when a
// session is opened without a name.
const DefaultRecentWindow = 24 * time.Hour

// LanguageModels holds the chat clients used by each stage.
type LanguageModels struct {
	// Extraction handles statement extraction, usually the small model.
	Extraction nlp.Client
	// Resolution handles entity resolution, usually the large model.
	Resolution nlp.Client
}

// DatabaseInfo describes the graph endpoint in diagnostic reports.
type DatabaseInfo struct {
	URI      string
	Username string
	Database string
}

// Config holds configuration for the noirgraph client.
type Config struct {
	Chunking   chunker.Options
	Extraction extractor.Options
	Resolution resolver.Options

	// Registry lists the entity categories and edge types. Nil means the
	// built-in crime registry. It is frozen when resolution starts.
	Registry *registry.Registry
	Prompts  *prompts.Library

	// Concurrency caps in-flight chunks in ExtractAll and ResolveAll.
	Concurrency int
	// ChunkLimit processes only the first ChunkLimit chunks; 0 means all.
	ChunkLimit int
	// Timeout bounds every collaborator and embedding call; 0 disables it.
	Timeout time.Duration

	// Sessions stores per-session artifacts. Optional.
	Sessions *checkpoint.Store

	Database DatabaseInfo

	// Progress is called after each chunk of a stage completes.
	Progress func(stage string, done, total int)
}

// Client sequences chunking, extraction, resolution and persistence for one
// document at a time.
type Client struct {
	store     driver.GraphStore
	models    LanguageModels
	embedder  embedder.Client
	chunker   *chunker.Chunker
	extractor *extractor.Extractor
	resolver  *resolver.Resolver
	ids       *IdAllocator
	config    *Config
	logger    *slog.Logger

	mu         sync.RWMutex
	session    string
	document   *types.Document
	chunks     []*types.Chunk
	statements map[int][]*types.Statement // by chunk index
	extraction *accumulator[*types.Statement]
	resolution *accumulator[*types.Entity]
}

// accumulator collects the output of one stage run.
type accumulator[T any] struct {
	items []T
}

// NewClient creates a new noirgraph client with the provided components.
// config and logger may be nil.
func NewClient(store driver.GraphStore, models LanguageModels, embedderClient embedder.Client, config *Config, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, errors.New("graph store is required")
	}
	if embedderClient == nil {
		return nil, errors.New("embedder is required")
	}
	if models.Extraction == nil && models.Resolution == nil {
		return nil, errors.New("at least one language model is required")
	}
	if models.Extraction == nil {
		models.Extraction = models.Resolution
	}
	if models.Resolution == nil {
		models.Resolution = models.Extraction
	}
	if !nlp.Supports(models.Extraction, nlp.TaskStatementExtraction) {
		return nil, errors.New("extraction model does not support statement extraction")
	}
	if !nlp.Supports(models.Resolution, nlp.TaskEntityResolution) {
		return nil, errors.New("resolution model does not support entity resolution")
	}
	if config == nil {
		config = &Config{}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = utils.DefaultConcurrency
	}
	if config.Registry == nil {
		config.Registry = registry.DefaultCrimeRegistry()
	}
	if config.Prompts == nil {
		config.Prompts = prompts.NewLibrary()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		store:      store,
		models:     models,
		embedder:   embedderClient,
		chunker:    chunker.New(config.Chunking),
		extractor:  extractor.New(models.Extraction, config.Prompts, config.Extraction, logger),
		resolver:   resolver.New(models.Resolution, config.Prompts, config.Registry, config.Resolution, logger),
		ids:        NewIdAllocator(""),
		config:     config,
		logger:     logger,
		statements: make(map[int][]*types.Statement),
	}, nil
}

// GetDriver returns the underlying graph store.
func (c *Client) GetDriver() driver.GraphStore {
	return c.store
}

// IDs returns the allocator owned by the client.
func (c *Client) IDs() *IdAllocator {
	return c.ids
}

// Registry returns the category registry used by resolution.
func (c *Client) Registry() *registry.Registry {
	return c.config.Registry
}

// withTimeout applies the per-call timeout.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

// CreateIndices creates constraints and indexes. It is safe to re-run.
func (c *Client) CreateIndices(ctx context.Context) error {
	return c.store.CreateSchema(ctx)
}

// OpenSession selects the session folder artifacts are written to. An empty
// name reuses the most recent session or creates a new one.
func (c *Client) OpenSession(ctx context.Context, name string) (string, error) {
	sessions := c.config.Sessions
	if sessions == nil {
		return "", errors.New("no session store configured")
	}
	if name == "" {
		var err error
		name, err = sessions.CreateOrRecent(ctx, DefaultRecentWindow)
		if err != nil {
			return "", err
		}
	} else if _, err := sessions.SessionPath(name); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.session = name
	c.mu.Unlock()
	c.logger.Info("Using session", "session", name)
	return name, nil
}

// Session returns the open session, or "".
func (c *Client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// LoadDocument chunks doc, embeds and stores the chunks, and resets the ID
// counters. A missing document ID is generated. Previously stored
// statements and entities are not removed.
func (c *Client) LoadDocument(ctx context.Context, doc *types.Document) ([]*types.Chunk, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}

	chunks := c.chunker.Split(doc)

	ectx, cancel := c.withTimeout(embedder.WithTaskType(ctx, embedder.TaskTypeDocument))
	err := embedder.EmbedChunks(ectx, c.embedder, chunks)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	if err := c.store.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := c.store.UpsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	c.mu.Lock()
	c.document = doc
	c.chunks = chunks
	c.statements = make(map[int][]*types.Statement)
	c.extraction = nil
	c.resolution = nil
	session := c.session
	c.mu.Unlock()
	c.ids.Reset(doc.ID)

	if session != "" {
		sessions := c.config.Sessions
		if err := sessions.SaveDocument(ctx, session, doc); err != nil {
			return nil, err
		}
		if err := sessions.SaveChunks(ctx, session, chunks); err != nil {
			return nil, err
		}
		if err := sessions.SaveCounters(ctx, session, c.ids.Counters()); err != nil {
			return nil, err
		}
	}

	c.logger.Info("Loaded document", "document_id", doc.ID, "title", doc.Title, "chunks", len(chunks))
	return chunks, nil
}

// Resume restores the document, chunks, statements and ID counters saved in
// the open session, without touching the graph.
func (c *Client) Resume(ctx context.Context) error {
	session := c.Session()
	if session == "" {
		return errors.New("no session open")
	}
	sessions := c.config.Sessions

	doc, err := sessions.LoadDocument(ctx, session)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w in session %s", ErrNoDocument, session)
	}
	chunks, err := sessions.LoadChunks(ctx, session)
	if err != nil {
		return err
	}
	statements, err := sessions.LoadAllStatements(ctx, session)
	if err != nil {
		return err
	}
	counters, err := sessions.LoadCounters(ctx, session)
	if err != nil {
		return err
	}

	ids := NewIdAllocator(doc.ID)
	if counters != nil {
		if err := ids.Restore(*counters); err != nil {
			return &StageError{Stage: StageLoad, ChunkIndex: -1, Err: err, Fatal: true}
		}
	}
	// Counters are saved before the artifacts they number.
	next := ids.Counters().NextStatementID
	for _, s := range statements {
		if s.ID >= next {
			return &StageError{Stage: StageLoad, ChunkIndex: s.ChunkIndex, Fatal: true,
				Err: fmt.Errorf("%w: statement %d saved beyond the counter", ErrCountersCorrupted, s.ID)}
		}
	}

	byChunk := make(map[int][]*types.Statement)
	for _, s := range statements {
		byChunk[s.ChunkIndex] = append(byChunk[s.ChunkIndex], s)
	}

	c.mu.Lock()
	c.document = doc
	c.chunks = chunks
	c.statements = byChunk
	c.extraction = nil
	c.resolution = nil
	c.mu.Unlock()
	c.ids.Reset(doc.ID)
	if err := c.ids.Restore(ids.Counters()); err != nil {
		return err
	}

	c.logger.Info("Resumed session", "session", session, "document_id", doc.ID,
		"chunks", len(chunks), "statements", len(statements))
	return nil
}

// Document returns the loaded document, or nil.
func (c *Client) Document() *types.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.document
}

// Chunks returns the chunks of the loaded document.
func (c *Client) Chunks() []*types.Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.chunks)
}

// Statements returns every statement extracted for the loaded document,
// ordered by ID.
func (c *Client) Statements() []*types.Statement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*types.Statement
	for _, list := range c.statements {
		out = append(out, list...)
	}
	slices.SortFunc(out, func(a, b *types.Statement) int { return a.ID - b.ID })
	return out
}

// limitedChunks applies ChunkLimit.
func (c *Client) limitedChunks() []*types.Chunk {
	chunks := c.Chunks()
	if c.config.ChunkLimit > 0 && len(chunks) > c.config.ChunkLimit {
		chunks = chunks[:c.config.ChunkLimit]
	}
	return chunks
}

// checkChunk makes sure chunk belongs to the loaded document.
func (c *Client) checkChunk(chunk *types.Chunk) (*types.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.document == nil {
		return nil, ErrNoDocument
	}
	if chunk == nil || chunk.DocumentID != c.document.ID || chunk.Index < 0 || chunk.Index >= len(c.chunks) {
		return nil, ErrUnknownChunk
	}
	return c.document, nil
}

// checkCounters makes sure the allocator still belongs to doc.
func (c *Client) checkCounters(doc *types.Document) error {
	if owner := c.ids.DocumentID(); owner != doc.ID {
		return fmt.Errorf("%w: allocator belongs to %q, document is %q", ErrCountersCorrupted, owner, doc.ID)
	}
	return nil
}

// saveCounters persists the allocator to the open session.
func (c *Client) saveCounters(ctx context.Context) error {
	session := c.Session()
	if session == "" {
		return nil
	}
	return c.config.Sessions.SaveCounters(ctx, session, c.ids.Counters())
}

func (c *Client) progress(stage string, done, total int) {
	if c.config.Progress != nil {
		c.config.Progress(stage, done, total)
	}
}

// Close closes all connections and cleans up resources.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.models.Extraction.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.models.Resolution != c.models.Extraction {
		if err := c.models.Resolution.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
