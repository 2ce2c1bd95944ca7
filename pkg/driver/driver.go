package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/soundprediction/noirgraph/pkg/types"
)

// GraphProvider represents the type of graph database provider
type GraphProvider string

const (
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderMemory GraphProvider = "memory"
)

// DefaultDimensions is the vector index dimensionality.
const DefaultDimensions = 1536

// Vector index names, one per node type and embedding view.
const (
	ChunkEmbeddingIndex            = "chunk_embedding_vx"
	StatementNameEmbeddingIndex    = "statement_name_embedding_vx"
	StatementProfileEmbeddingIndex = "statement_profile_embedding_vx"
	EntityNameEmbeddingIndex       = "entity_name_embedding_vx"
	EntityProfileEmbeddingIndex    = "entity_profile_embedding_vx"
)

// Edge types linking the graph together.
const (
	EdgeHasChunk     = "HAS_CHUNK"
	EdgeHasStatement = "HAS_STATEMENT"
	EdgeHasSubject   = "HAS_SUBJECT"
	EdgeHasObject    = "HAS_OBJECT"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrUnknownView       = errors.New("unknown embedding view")
	ErrUnknownProvider   = errors.New("unknown graph provider")
	ErrNilRecord         = errors.New("cannot upsert nil record")
	ErrSchemaMissing     = errors.New("required constraint is missing")
)

// RequiredConstraints are the uniqueness constraints upserts rely on.
var RequiredConstraints = []string{
	"document_id_unique",
	"chunk_id_unique",
	"statement_id_unique",
	"entity_id_unique",
}

// View selects which embedding of a statement or entity a search runs over.
type View string

const (
	ViewName    View = "name"
	ViewProfile View = "profile"
)

// ParseView accepts "name" or "profile".
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewName, ViewProfile:
		return View(s), nil
	case "":
		return ViewName, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// StatementIndex returns the vector index for the given view.
func StatementIndex(view View) (string, error) {
	switch view {
	case ViewName:
		return StatementNameEmbeddingIndex, nil
	case ViewProfile:
		return StatementProfileEmbeddingIndex, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, view)
}

// EntityIndex returns the vector index for the given view.
func EntityIndex(view View) (string, error) {
	switch view {
	case ViewName:
		return EntityNameEmbeddingIndex, nil
	case ViewProfile:
		return EntityProfileEmbeddingIndex, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, view)
}

// Role is the edge through which a statement refers to an entity.
type Role string

const (
	RoleSubject Role = EdgeHasSubject
	RoleObject  Role = EdgeHasObject
)

// ChunkHit is a vector search result.
type ChunkHit struct {
	Chunk *types.Chunk `json:"chunk"`
	Score float64      `json:"score"`
}

// StatementHit is a vector search result.
type StatementHit struct {
	Statement *types.Statement `json:"statement"`
	Score     float64          `json:"score"`
}

// EntityHit is a vector search result.
type EntityHit struct {
	Entity *types.Entity `json:"entity"`
	Score  float64       `json:"score"`
}

// StatementRole is a statement that refers to an entity.
type StatementRole struct {
	Statement *types.Statement `json:"statement"`
	Role      Role             `json:"role"`
}

// EntityRole is an entity referred to by a statement.
type EntityRole struct {
	Entity *types.Entity `json:"entity"`
	Role   Role          `json:"role"`
}

// GraphStats contains statistics about the graph.
type GraphStats struct {
	Documents   int64            `json:"documents"`
	Chunks      int64            `json:"chunks"`
	Statements  int64            `json:"statements"`
	Entities    int64            `json:"entities"`
	EdgesByType map[string]int64 `json:"edges_by_type"`
	LastUpdated time.Time        `json:"last_updated"`
}

// Config selects and configures a graph store.
type Config struct {
	Provider   GraphProvider `mapstructure:"provider"`
	URI        string        `mapstructure:"uri"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	Database   string        `mapstructure:"database"`
	Dimensions int           `mapstructure:"dimensions"`
}

// New creates the graph store named by cfg.Provider. An empty provider
// means Neo4j.
func New(cfg Config) (GraphStore, error) {
	switch cfg.Provider {
	case GraphProviderNeo4j, "":
		return NewNeo4jDriver(cfg.URI, cfg.Username, cfg.Password, cfg.Database, cfg.Dimensions)
	case GraphProviderMemory:
		return NewMemoryDriver(cfg.Dimensions), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}

// checkDimensions rejects a non-empty vector of the wrong size before it
// reaches the store.
func checkDimensions(dims int, field string, v []float32) error {
	if dims <= 0 || len(v) == 0 || len(v) == dims {
		return nil
	}
	return fmt.Errorf("%w: %s has %d values, index expects %d", ErrDimensionMismatch, field, len(v), dims)
}

func checkChunk(dims int, c *types.Chunk) error {
	if c == nil {
		return ErrNilRecord
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return checkDimensions(dims, "embedding", c.Embedding)
}

func checkStatement(dims int, s *types.Statement) error {
	if s == nil {
		return ErrNilRecord
	}
	if s.DocumentID == "" {
		return types.ErrEmptyDocumentID
	}
	if err := checkDimensions(dims, "name_embedding", s.NameEmbedding); err != nil {
		return err
	}
	return checkDimensions(dims, "profile_embedding", s.ProfileEmbedding)
}

func checkEntity(dims int, e *types.Entity) error {
	if e == nil {
		return ErrNilRecord
	}
	if e.DocumentID == "" {
		return types.ErrEmptyDocumentID
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("entity %s: %w", e.Key(), err)
	}
	if err := checkDimensions(dims, "name_embedding", e.NameEmbedding); err != nil {
		return err
	}
	return checkDimensions(dims, "profile_embedding", e.ProfileEmbedding)
}
