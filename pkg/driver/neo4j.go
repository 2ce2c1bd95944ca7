package driver

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/noirgraph/pkg/types"
)

// Neo4jDriver implements GraphStore for Neo4j 5.x.
type Neo4jDriver struct {
	client     neo4j.DriverWithContext
	database   string
	dimensions int
}

// NewNeo4jDriver creates a new Neo4j driver instance. It does not contact the
// server; use VerifyConnectivity for that.
func NewNeo4jDriver(uri, username, password, database string, dimensions int) (*Neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	return &Neo4jDriver{
		client:     driver,
		database:   database,
		dimensions: dimensions,
	}, nil
}

func (n *Neo4jDriver) newSession(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database, AccessMode: mode})
}

// write runs each query in one managed write transaction.
func (n *Neo4jDriver) write(ctx context.Context, queries ...query) error {
	session := n.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range queries {
			res, err := tx.Run(ctx, q.cypher, q.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (n *Neo4jDriver) read(ctx context.Context, cypher string, params map[string]any) ([]*db.Record, error) {
	session := n.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return MustRecordSlice(result, "records")
}

type query struct {
	cypher string
	params map[string]any
}

func (n *Neo4jDriver) schemaStatements() []string {
	vector := func(name, label, prop string) string {
		return fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.%s) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			name, label, prop, n.dimensions)
	}
	return []string{
		"CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.document_id IS UNIQUE",
		"CREATE INDEX document_title_idx IF NOT EXISTS FOR (d:Document) ON (d.title)",

		"CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.chunk_id IS UNIQUE",
		"CREATE INDEX chunk_document_id_idx IF NOT EXISTS FOR (c:Chunk) ON (c.document_id)",
		"CREATE INDEX chunk_index_idx IF NOT EXISTS FOR (c:Chunk) ON (c.index)",
		"CREATE FULLTEXT INDEX chunk_content_ft IF NOT EXISTS FOR (c:Chunk) ON EACH [c.content]",
		vector(ChunkEmbeddingIndex, "Chunk", "embedding"),

		"CREATE CONSTRAINT statement_id_unique IF NOT EXISTS FOR (s:Statement) REQUIRE s.statement_id IS UNIQUE",
		"CREATE INDEX statement_document_id_idx IF NOT EXISTS FOR (s:Statement) ON (s.document_id)",
		"CREATE INDEX statement_subject_idx IF NOT EXISTS FOR (s:Statement) ON (s.subject)",
		"CREATE INDEX statement_predicate_idx IF NOT EXISTS FOR (s:Statement) ON (s.predicate)",
		"CREATE INDEX statement_object_idx IF NOT EXISTS FOR (s:Statement) ON (s.object)",
		vector(StatementNameEmbeddingIndex, "Statement", "name_embedding"),
		vector(StatementProfileEmbeddingIndex, "Statement", "profile_embedding"),

		"CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.entity_id IS UNIQUE",
		"CREATE INDEX entity_document_id_idx IF NOT EXISTS FOR (e:Entity) ON (e.document_id)",
		"CREATE INDEX entity_name_idx IF NOT EXISTS FOR (e:Entity) ON (e.name)",
		"CREATE INDEX entity_category_idx IF NOT EXISTS FOR (e:Entity) ON (e.category)",
		vector(EntityNameEmbeddingIndex, "Entity", "name_embedding"),
		vector(EntityProfileEmbeddingIndex, "Entity", "profile_embedding"),
	}
}

// CreateSchema creates constraints, property indexes, the chunk full-text
// index and the five vector indexes.
func (n *Neo4jDriver) CreateSchema(ctx context.Context) error {
	session := n.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range n.schemaStatements() {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			if !strings.Contains(err.Error(), "already exists") && !strings.Contains(err.Error(), "An equivalent") {
				return fmt.Errorf("schema statement %q: %w", stmt, err)
			}
		}
	}
	return nil
}

// VerifySchema checks for the uniqueness constraints.
func (n *Neo4jDriver) VerifySchema(ctx context.Context) error {
	records, err := n.read(ctx, "SHOW CONSTRAINTS YIELD name RETURN name", nil)
	if err != nil {
		return fmt.Errorf("list constraints: %w", err)
	}
	present := make([]string, 0, len(records))
	for _, record := range records {
		if v, ok := record.Get("name"); ok {
			if name, ok := AsString(v); ok {
				present = append(present, name)
			}
		}
	}
	for _, name := range RequiredConstraints {
		if !slices.Contains(present, name) {
			return fmt.Errorf("%w: %s", ErrSchemaMissing, name)
		}
	}
	return nil
}

const upsertDocumentQuery = `
MERGE (d:Document {document_id: $document_id})
SET d.title = $title
`

// UpsertDocument creates or updates a document node.
func (n *Neo4jDriver) UpsertDocument(ctx context.Context, doc *types.Document) error {
	if doc == nil {
		return ErrNilRecord
	}
	if doc.ID == "" {
		return types.ErrEmptyID
	}
	if err := n.write(ctx, query{upsertDocumentQuery, documentProps(doc)}); err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

const upsertChunksQuery = `
UNWIND $rows AS row
MERGE (d:Document {document_id: row.document_id})
MERGE (c:Chunk {chunk_id: row.chunk_id})
SET c = row.props
MERGE (d)-[:HAS_CHUNK]->(c)
`

// UpsertChunk creates or updates one chunk.
func (n *Neo4jDriver) UpsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return n.UpsertChunks(ctx, []*types.Chunk{chunk})
}

// UpsertChunks creates or updates chunks in one transaction.
func (n *Neo4jDriver) UpsertChunks(ctx context.Context, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		if err := checkChunk(n.dimensions, c); err != nil {
			return err
		}
		rows = append(rows, map[string]any{
			"document_id": c.DocumentID,
			"chunk_id":    c.ChunkID(),
			"props":       chunkProps(c),
		})
	}
	if err := n.write(ctx, query{upsertChunksQuery, map[string]any{"rows": rows}}); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

const upsertStatementsQuery = `
UNWIND $rows AS row
MERGE (c:Chunk {chunk_id: row.chunk_id})
ON CREATE SET c.document_id = row.document_id, c.index = row.chunk_index
MERGE (s:Statement {statement_id: row.statement_id})
SET s = row.props
MERGE (c)-[:HAS_STATEMENT]->(s)
WITH s, c
OPTIONAL MATCH (other:Chunk)-[stale:HAS_STATEMENT]->(s)
WHERE other <> c
DELETE stale
`

// UpsertStatement creates or updates one statement.
func (n *Neo4jDriver) UpsertStatement(ctx context.Context, statement *types.Statement) error {
	return n.UpsertStatements(ctx, []*types.Statement{statement})
}

// UpsertStatements creates or updates statements in one transaction.
func (n *Neo4jDriver) UpsertStatements(ctx context.Context, statements []*types.Statement) error {
	if len(statements) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(statements))
	for _, s := range statements {
		if err := checkStatement(n.dimensions, s); err != nil {
			return err
		}
		rows = append(rows, map[string]any{
			"chunk_id":     s.ChunkID(),
			"document_id":  s.DocumentID,
			"chunk_index":  int64(s.ChunkIndex),
			"statement_id": s.Key(),
			"props":        statementProps(s),
		})
	}
	if err := n.write(ctx, query{upsertStatementsQuery, map[string]any{"rows": rows}}); err != nil {
		return fmt.Errorf("upsert statements: %w", err)
	}
	return nil
}

const (
	upsertEntityQuery = `
MERGE (e:Entity {entity_id: $entity_id})
SET e = $props
WITH e
OPTIONAL MATCH (:Statement)-[stale:HAS_SUBJECT|HAS_OBJECT]->(e)
DELETE stale
`
	linkSubjectsQuery = `
MATCH (e:Entity {entity_id: $entity_id})
UNWIND $keys AS key
MATCH (s:Statement {statement_id: key})
MERGE (s)-[:HAS_SUBJECT]->(e)
`
	linkObjectsQuery = `
MATCH (e:Entity {entity_id: $entity_id})
UNWIND $keys AS key
MATCH (s:Statement {statement_id: key})
MERGE (s)-[:HAS_OBJECT]->(e)
`
)

// UpsertEntity creates or updates one entity.
func (n *Neo4jDriver) UpsertEntity(ctx context.Context, entity *types.Entity) error {
	return n.UpsertEntities(ctx, []*types.Entity{entity})
}

// UpsertEntities creates or updates entities in one transaction. Edges are
// only created to statements already in the graph.
func (n *Neo4jDriver) UpsertEntities(ctx context.Context, entities []*types.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	queries := make([]query, 0, 3*len(entities))
	for _, e := range entities {
		if err := checkEntity(n.dimensions, e); err != nil {
			return err
		}
		key := e.Key()
		queries = append(queries,
			query{upsertEntityQuery, map[string]any{"entity_id": key, "props": entityProps(e)}},
			query{linkSubjectsQuery, map[string]any{"entity_id": key, "keys": statementKeys(e.DocumentID, e.SubjectStatementIDs)}},
			query{linkObjectsQuery, map[string]any{"entity_id": key, "keys": statementKeys(e.DocumentID, e.ObjectStatementIDs)}},
		)
	}
	if err := n.write(ctx, queries...); err != nil {
		return fmt.Errorf("upsert entities: %w", err)
	}
	return nil
}

const vectorSearchQuery = `
CALL db.index.vector.queryNodes($index_name, $k, $embedding)
YIELD node, score
RETURN node, score
ORDER BY score DESC
LIMIT $k
`

type scoredProps struct {
	props map[string]any
	score float64
}

func (n *Neo4jDriver) vectorSearch(ctx context.Context, index string, embedding []float32, k int) ([]scoredProps, error) {
	if k <= 0 {
		return nil, types.ErrInvalidLimit
	}
	if len(embedding) == 0 {
		return nil, nil
	}
	if err := checkDimensions(n.dimensions, "query", embedding); err != nil {
		return nil, err
	}
	records, err := n.read(ctx, vectorSearchQuery, map[string]any{
		"index_name": index,
		"k":          int64(k),
		"embedding":  embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search on %s: %w", index, err)
	}
	hits := make([]scoredProps, 0, len(records))
	for _, record := range records {
		v, _ := record.Get("node")
		node, err := MustDBNode(v, "node")
		if err != nil {
			return nil, err
		}
		s, _ := record.Get("score")
		score, _ := AsFloat64(s)
		hits = append(hits, scoredProps{props: node.Props, score: score})
	}
	return hits, nil
}

// SearchChunks searches chunk_embedding_vx.
func (n *Neo4jDriver) SearchChunks(ctx context.Context, embedding []float32, k int) ([]ChunkHit, error) {
	hits, err := n.vectorSearch(ctx, ChunkEmbeddingIndex, embedding, k)
	if err != nil {
		return nil, err
	}
	out := make([]ChunkHit, len(hits))
	for i, h := range hits {
		out[i] = ChunkHit{Chunk: chunkFromProps(h.props), Score: h.score}
	}
	return out, nil
}

// SearchStatements searches the statement index for the view.
func (n *Neo4jDriver) SearchStatements(ctx context.Context, view View, embedding []float32, k int) ([]StatementHit, error) {
	index, err := StatementIndex(view)
	if err != nil {
		return nil, err
	}
	hits, err := n.vectorSearch(ctx, index, embedding, k)
	if err != nil {
		return nil, err
	}
	out := make([]StatementHit, len(hits))
	for i, h := range hits {
		out[i] = StatementHit{Statement: statementFromProps(h.props), Score: h.score}
	}
	return out, nil
}

// SearchEntities searches the entity index for the view.
func (n *Neo4jDriver) SearchEntities(ctx context.Context, view View, embedding []float32, k int) ([]EntityHit, error) {
	index, err := EntityIndex(view)
	if err != nil {
		return nil, err
	}
	hits, err := n.vectorSearch(ctx, index, embedding, k)
	if err != nil {
		return nil, err
	}
	out := make([]EntityHit, len(hits))
	for i, h := range hits {
		out[i] = EntityHit{Entity: entityFromProps(h.props), Score: h.score}
	}
	return out, nil
}

const (
	statementsForEntityQuery = `
MATCH (s:Statement)-[r:HAS_SUBJECT|HAS_OBJECT]->(e:Entity {entity_id: $entity_id})
RETURN s AS node, type(r) AS role
ORDER BY s.id, role
`
	entitiesForStatementQuery = `
MATCH (s:Statement {statement_id: $statement_id})-[r:HAS_SUBJECT|HAS_OBJECT]->(e:Entity)
RETURN e AS node, type(r) AS role
ORDER BY e.id, role
`
)

func (n *Neo4jDriver) traverse(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, []Role, error) {
	records, err := n.read(ctx, cypher, params)
	if err != nil {
		return nil, nil, err
	}
	props := make([]map[string]any, 0, len(records))
	roles := make([]Role, 0, len(records))
	for _, record := range records {
		v, _ := record.Get("node")
		node, err := MustDBNode(v, "node")
		if err != nil {
			return nil, nil, err
		}
		r, _ := record.Get("role")
		role, err := MustString(r, "role")
		if err != nil {
			return nil, nil, err
		}
		props = append(props, node.Props)
		roles = append(roles, Role(role))
	}
	return props, roles, nil
}

// StatementsForEntity returns the statements that name the entity as
// subject or object.
func (n *Neo4jDriver) StatementsForEntity(ctx context.Context, entityKey string) ([]StatementRole, error) {
	props, roles, err := n.traverse(ctx, statementsForEntityQuery, map[string]any{"entity_id": entityKey})
	if err != nil {
		return nil, fmt.Errorf("statements for entity %s: %w", entityKey, err)
	}
	out := make([]StatementRole, len(props))
	for i := range props {
		out[i] = StatementRole{Statement: statementFromProps(props[i]), Role: roles[i]}
	}
	return out, nil
}

// EntitiesForStatement returns the entities a statement refers to.
func (n *Neo4jDriver) EntitiesForStatement(ctx context.Context, statementKey string) ([]EntityRole, error) {
	props, roles, err := n.traverse(ctx, entitiesForStatementQuery, map[string]any{"statement_id": statementKey})
	if err != nil {
		return nil, fmt.Errorf("entities for statement %s: %w", statementKey, err)
	}
	out := make([]EntityRole, len(props))
	for i := range props {
		out[i] = EntityRole{Entity: entityFromProps(props[i]), Role: roles[i]}
	}
	return out, nil
}

const (
	nodeStatsQuery = `
MATCH (n)
UNWIND labels(n) AS label
WITH label
WHERE label IN ['Document', 'Chunk', 'Statement', 'Entity']
RETURN label, count(*) AS node_count
`
	edgeStatsQuery = `
MATCH ()-[r]->()
RETURN type(r) AS edge_type, count(r) AS edge_count
ORDER BY edge_type
`
)

// Stats counts nodes per label and edges per type.
func (n *Neo4jDriver) Stats(ctx context.Context) (*GraphStats, error) {
	nodeRecords, err := n.read(ctx, nodeStatsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("node stats: %w", err)
	}
	edgeRecords, err := n.read(ctx, edgeStatsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("edge stats: %w", err)
	}

	stats := &GraphStats{EdgesByType: make(map[string]int64), LastUpdated: time.Now()}
	for _, record := range nodeRecords {
		l, _ := record.Get("label")
		c, _ := record.Get("node_count")
		label, _ := AsString(l)
		count, _ := AsInt64(c)
		switch label {
		case "Document":
			stats.Documents = count
		case "Chunk":
			stats.Chunks = count
		case "Statement":
			stats.Statements = count
		case "Entity":
			stats.Entities = count
		}
	}
	for _, record := range edgeRecords {
		t, _ := record.Get("edge_type")
		c, _ := record.Get("edge_count")
		edgeType, _ := AsString(t)
		count, _ := AsInt64(c)
		stats.EdgesByType[edgeType] = count
	}
	return stats, nil
}

// ClearAll detach-deletes every node and edge. Irreversible.
func (n *Neo4jDriver) ClearAll(ctx context.Context) error {
	if err := n.write(ctx, query{"MATCH (n) DETACH DELETE n", nil}); err != nil {
		return fmt.Errorf("clear graph: %w", err)
	}
	return nil
}

const clearDocumentQuery = `
MATCH (n)
WHERE n.document_id = $document_id AND (n:Document OR n:Chunk OR n:Statement OR n:Entity)
DETACH DELETE n
RETURN count(n) AS deleted
`

// ClearDocument detach-deletes everything that belongs to one document.
func (n *Neo4jDriver) ClearDocument(ctx context.Context, documentID string) (int64, error) {
	if documentID == "" {
		return 0, types.ErrEmptyDocumentID
	}
	session := n.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, clearDocumentQuery, map[string]any{"document_id": documentID})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		v, _ := record.Get("deleted")
		deleted, _ := AsInt64(v)
		return deleted, nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear document %s: %w", documentID, err)
	}
	deleted, _ := AsInt64(result)
	return deleted, nil
}

// Provider returns the provider type.
func (n *Neo4jDriver) Provider() GraphProvider {
	return GraphProviderNeo4j
}

// Close closes the Neo4j driver.
func (n *Neo4jDriver) Close() error {
	return n.client.Close(context.Background())
}

// VerifyConnectivity checks if the driver can connect to the database.
func (n *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}

var _ GraphStore = (*Neo4jDriver)(nil)
