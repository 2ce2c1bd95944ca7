package driver

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/soundprediction/noirgraph/pkg/types"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

const (
	labelDocument  = "Document"
	labelChunk     = "Chunk"
	labelStatement = "Statement"
	labelEntity    = "Entity"
)

type nodeRef struct {
	label string
	key   string
}

type edge struct {
	typ  string
	from nodeRef
	to   nodeRef
}

// MemoryDriver is an in-process GraphStore with the same merge semantics as
// the Neo4j driver. Vector search is exact cosine similarity.
type MemoryDriver struct {
	mu         sync.RWMutex
	dimensions int
	schema     bool
	nodes      map[nodeRef]map[string]any
	edges      map[edge]struct{}
}

// NewMemoryDriver creates an empty in-memory graph.
func NewMemoryDriver(dimensions int) *MemoryDriver {
	return &MemoryDriver{
		dimensions: dimensions,
		nodes:      make(map[nodeRef]map[string]any),
		edges:      make(map[edge]struct{}),
	}
}

// CreateSchema marks the schema as present.
func (m *MemoryDriver) CreateSchema(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema = true
	return nil
}

// VerifySchema fails until CreateSchema has run.
func (m *MemoryDriver) VerifySchema(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.schema {
		return fmt.Errorf("%w: %s", ErrSchemaMissing, RequiredConstraints[0])
	}
	return nil
}

// merge returns the node for ref, creating it with the key property when
// absent.
func (m *MemoryDriver) merge(ref nodeRef, keyProp string) map[string]any {
	props, ok := m.nodes[ref]
	if !ok {
		props = map[string]any{keyProp: ref.key}
		m.nodes[ref] = props
	}
	return props
}

// set replaces every property of ref, dropping nulls like SET n = $props.
func (m *MemoryDriver) set(ref nodeRef, props map[string]any) {
	out := make(map[string]any, len(props))
	for k, v := range props {
		switch x := v.(type) {
		case nil:
			continue
		case []float32:
			out[k] = slices.Clone(x)
		case []string:
			out[k] = slices.Clone(x)
		case []int64:
			out[k] = slices.Clone(x)
		default:
			out[k] = x
		}
	}
	m.nodes[ref] = out
}

// UpsertDocument creates or updates a document node.
func (m *MemoryDriver) UpsertDocument(ctx context.Context, doc *types.Document) error {
	if doc == nil {
		return ErrNilRecord
	}
	if doc.ID == "" {
		return types.ErrEmptyID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	props := m.merge(nodeRef{labelDocument, doc.ID}, "document_id")
	props["title"] = doc.Title
	return nil
}

// UpsertChunk creates or updates one chunk.
func (m *MemoryDriver) UpsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return m.UpsertChunks(ctx, []*types.Chunk{chunk})
}

// UpsertChunks creates or updates chunks.
func (m *MemoryDriver) UpsertChunks(ctx context.Context, chunks []*types.Chunk) error {
	for _, c := range chunks {
		if err := checkChunk(m.dimensions, c); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		doc := nodeRef{labelDocument, c.DocumentID}
		ref := nodeRef{labelChunk, c.ChunkID()}
		m.merge(doc, "document_id")
		m.set(ref, chunkProps(c))
		m.edges[edge{EdgeHasChunk, doc, ref}] = struct{}{}
	}
	return nil
}

// UpsertStatement creates or updates one statement.
func (m *MemoryDriver) UpsertStatement(ctx context.Context, statement *types.Statement) error {
	return m.UpsertStatements(ctx, []*types.Statement{statement})
}

// UpsertStatements creates or updates statements.
func (m *MemoryDriver) UpsertStatements(ctx context.Context, statements []*types.Statement) error {
	for _, s := range statements {
		if err := checkStatement(m.dimensions, s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range statements {
		chunk := nodeRef{labelChunk, s.ChunkID()}
		if _, ok := m.nodes[chunk]; !ok {
			m.nodes[chunk] = map[string]any{
				"chunk_id":    chunk.key,
				"document_id": s.DocumentID,
				"index":       int64(s.ChunkIndex),
			}
		}
		ref := nodeRef{labelStatement, s.Key()}
		m.set(ref, statementProps(s))
		for e := range m.edges {
			if e.typ == EdgeHasStatement && e.to == ref && e.from != chunk {
				delete(m.edges, e)
			}
		}
		m.edges[edge{EdgeHasStatement, chunk, ref}] = struct{}{}
	}
	return nil
}

// UpsertEntity creates or updates one entity.
func (m *MemoryDriver) UpsertEntity(ctx context.Context, entity *types.Entity) error {
	return m.UpsertEntities(ctx, []*types.Entity{entity})
}

// UpsertEntities creates or updates entities and replaces their statement
// edges. Edges are only created to statements already stored.
func (m *MemoryDriver) UpsertEntities(ctx context.Context, entities []*types.Entity) error {
	for _, e := range entities {
		if err := checkEntity(m.dimensions, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entities {
		ref := nodeRef{labelEntity, e.Key()}
		m.set(ref, entityProps(e))
		for ed := range m.edges {
			if ed.to == ref && (ed.typ == EdgeHasSubject || ed.typ == EdgeHasObject) {
				delete(m.edges, ed)
			}
		}
		m.link(EdgeHasSubject, ref, statementKeys(e.DocumentID, e.SubjectStatementIDs))
		m.link(EdgeHasObject, ref, statementKeys(e.DocumentID, e.ObjectStatementIDs))
	}
	return nil
}

func (m *MemoryDriver) link(typ string, entity nodeRef, statementKeys []string) {
	for _, key := range statementKeys {
		s := nodeRef{labelStatement, key}
		if _, ok := m.nodes[s]; ok {
			m.edges[edge{typ, s, entity}] = struct{}{}
		}
	}
}

func (m *MemoryDriver) search(label, prop string, embedding []float32, k int) ([]utils.ScoredItem[map[string]any], error) {
	if k <= 0 {
		return nil, types.ErrInvalidLimit
	}
	if len(embedding) == 0 {
		return nil, nil
	}
	if err := checkDimensions(m.dimensions, "query", embedding); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []utils.ScoredItem[map[string]any]
	for _, ref := range m.sortedRefs(label) {
		props := m.nodes[ref]
		vec := propVector(props, prop)
		if len(vec) == 0 {
			continue
		}
		items = append(items, utils.ScoredItem[map[string]any]{
			Item:  maps.Clone(props),
			Score: utils.CosineSimilarity(embedding, vec),
		})
	}
	return utils.TopKByScore(items, k), nil
}

// sortedRefs lists the nodes of one label in key order. Callers hold the lock.
func (m *MemoryDriver) sortedRefs(label string) []nodeRef {
	var refs []nodeRef
	for ref := range m.nodes {
		if ref.label == label {
			refs = append(refs, ref)
		}
	}
	slices.SortFunc(refs, func(a, b nodeRef) int { return cmp.Compare(a.key, b.key) })
	return refs
}

// SearchChunks ranks chunks by embedding similarity.
func (m *MemoryDriver) SearchChunks(ctx context.Context, embedding []float32, k int) ([]ChunkHit, error) {
	items, err := m.search(labelChunk, "embedding", embedding, k)
	if err != nil {
		return nil, err
	}
	out := make([]ChunkHit, len(items))
	for i, it := range items {
		out[i] = ChunkHit{Chunk: chunkFromProps(it.Item), Score: it.Score}
	}
	return out, nil
}

// SearchStatements ranks statements by the chosen embedding view.
func (m *MemoryDriver) SearchStatements(ctx context.Context, view View, embedding []float32, k int) ([]StatementHit, error) {
	if _, err := StatementIndex(view); err != nil {
		return nil, err
	}
	items, err := m.search(labelStatement, string(view)+"_embedding", embedding, k)
	if err != nil {
		return nil, err
	}
	out := make([]StatementHit, len(items))
	for i, it := range items {
		out[i] = StatementHit{Statement: statementFromProps(it.Item), Score: it.Score}
	}
	return out, nil
}

// SearchEntities ranks entities by the chosen embedding view.
func (m *MemoryDriver) SearchEntities(ctx context.Context, view View, embedding []float32, k int) ([]EntityHit, error) {
	if _, err := EntityIndex(view); err != nil {
		return nil, err
	}
	items, err := m.search(labelEntity, string(view)+"_embedding", embedding, k)
	if err != nil {
		return nil, err
	}
	out := make([]EntityHit, len(items))
	for i, it := range items {
		out[i] = EntityHit{Entity: entityFromProps(it.Item), Score: it.Score}
	}
	return out, nil
}

type roleProps struct {
	props map[string]any
	role  Role
}

func (m *MemoryDriver) traverse(match func(edge) (nodeRef, bool)) []roleProps {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []roleProps
	for e := range m.edges {
		if e.typ != EdgeHasSubject && e.typ != EdgeHasObject {
			continue
		}
		if other, ok := match(e); ok {
			out = append(out, roleProps{props: maps.Clone(m.nodes[other]), role: Role(e.typ)})
		}
	}
	slices.SortFunc(out, func(a, b roleProps) int {
		return cmp.Or(cmp.Compare(propInt(a.props, "id"), propInt(b.props, "id")), cmp.Compare(a.role, b.role))
	})
	return out
}

// StatementsForEntity returns the statements that name the entity.
func (m *MemoryDriver) StatementsForEntity(ctx context.Context, entityKey string) ([]StatementRole, error) {
	ref := nodeRef{labelEntity, entityKey}
	found := m.traverse(func(e edge) (nodeRef, bool) { return e.from, e.to == ref })
	out := make([]StatementRole, len(found))
	for i, f := range found {
		out[i] = StatementRole{Statement: statementFromProps(f.props), Role: f.role}
	}
	return out, nil
}

// EntitiesForStatement returns the entities a statement refers to.
func (m *MemoryDriver) EntitiesForStatement(ctx context.Context, statementKey string) ([]EntityRole, error) {
	ref := nodeRef{labelStatement, statementKey}
	found := m.traverse(func(e edge) (nodeRef, bool) { return e.to, e.from == ref })
	out := make([]EntityRole, len(found))
	for i, f := range found {
		out[i] = EntityRole{Entity: entityFromProps(f.props), Role: f.role}
	}
	return out, nil
}

// Stats counts nodes per label and edges per type.
func (m *MemoryDriver) Stats(ctx context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &GraphStats{EdgesByType: make(map[string]int64), LastUpdated: time.Now()}
	for ref := range m.nodes {
		switch ref.label {
		case labelDocument:
			stats.Documents++
		case labelChunk:
			stats.Chunks++
		case labelStatement:
			stats.Statements++
		case labelEntity:
			stats.Entities++
		}
	}
	for e := range m.edges {
		stats.EdgesByType[e.typ]++
	}
	return stats, nil
}

// ClearAll removes every node and edge.
func (m *MemoryDriver) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.nodes)
	clear(m.edges)
	return nil
}

// ClearDocument removes the nodes of one document and their edges.
func (m *MemoryDriver) ClearDocument(ctx context.Context, documentID string) (int64, error) {
	if documentID == "" {
		return 0, types.ErrEmptyDocumentID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for ref, props := range m.nodes {
		if propString(props, "document_id") != documentID {
			continue
		}
		delete(m.nodes, ref)
		deleted++
		for e := range m.edges {
			if e.from == ref || e.to == ref {
				delete(m.edges, e)
			}
		}
	}
	return deleted, nil
}

// VerifyConnectivity always succeeds.
func (m *MemoryDriver) VerifyConnectivity(ctx context.Context) error {
	return ctx.Err()
}

// Provider returns the provider type.
func (m *MemoryDriver) Provider() GraphProvider {
	return GraphProviderMemory
}

// Close is a no-op.
func (m *MemoryDriver) Close() error {
	return nil
}

var _ GraphStore = (*MemoryDriver)(nil)
