package driver

import (
	"context"

	"github.com/soundprediction/noirgraph/pkg/types"
)

// This file defines focused interfaces that follow the Interface Segregation Principle.
// GraphStore is composed from them. Consumers should depend on the smallest
// interface that meets their needs.

// SchemaManager sets up constraints and indexes.
type SchemaManager interface {
	// CreateSchema is idempotent and safe to re-run against a populated graph.
	CreateSchema(ctx context.Context) error
	// VerifySchema returns ErrSchemaMissing when a required uniqueness
	// constraint is absent.
	VerifySchema(ctx context.Context) error
}

// DocumentStore upserts documents keyed by document_id.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc *types.Document) error
}

// ChunkStore upserts chunks keyed by chunk_id and links them to their
// document with HAS_CHUNK.
type ChunkStore interface {
	UpsertChunk(ctx context.Context, chunk *types.Chunk) error
	UpsertChunks(ctx context.Context, chunks []*types.Chunk) error
}

// StatementStore upserts statements keyed by statement_id and links them to
// their chunk with HAS_STATEMENT.
type StatementStore interface {
	UpsertStatement(ctx context.Context, statement *types.Statement) error
	UpsertStatements(ctx context.Context, statements []*types.Statement) error
}

// EntityStore upserts entities keyed by entity_id. The HAS_SUBJECT and
// HAS_OBJECT edges of an entity are replaced on every upsert.
type EntityStore interface {
	UpsertEntity(ctx context.Context, entity *types.Entity) error
	UpsertEntities(ctx context.Context, entities []*types.Entity) error
}

// VectorSearcher runs nearest-neighbour queries. Results are ordered by
// descending cosine similarity.
type VectorSearcher interface {
	SearchChunks(ctx context.Context, embedding []float32, k int) ([]ChunkHit, error)
	SearchStatements(ctx context.Context, view View, embedding []float32, k int) ([]StatementHit, error)
	SearchEntities(ctx context.Context, view View, embedding []float32, k int) ([]EntityHit, error)
}

// Traverser follows HAS_SUBJECT and HAS_OBJECT edges.
type Traverser interface {
	StatementsForEntity(ctx context.Context, entityKey string) ([]StatementRole, error)
	EntitiesForStatement(ctx context.Context, statementKey string) ([]EntityRole, error)
}

// DatabaseAdmin covers connectivity, statistics and destructive resets.
type DatabaseAdmin interface {
	VerifyConnectivity(ctx context.Context) error
	Stats(ctx context.Context) (*GraphStats, error)
	// ClearAll detach-deletes every node and edge.
	ClearAll(ctx context.Context) error
	// ClearDocument detach-deletes one document with its chunks, statements
	// and entities, returning the number of nodes removed.
	ClearDocument(ctx context.Context, documentID string) (int64, error)
	Provider() GraphProvider
	Close() error
}

// GraphStore is everything the pipeline needs from a graph database.
type GraphStore interface {
	SchemaManager
	DocumentStore
	ChunkStore
	StatementStore
	EntityStore
	VectorSearcher
	Traverser
	DatabaseAdmin
}
