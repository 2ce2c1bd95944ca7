package driver_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph/pkg/driver"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// getNeo4jConnectionInfo returns connection info from environment or defaults.
// Set NEO4J_URI, NEO4J_USERNAME, NEO4J_PASSWORD env vars to override.
func getNeo4jConnectionInfo() (uri, user, password string) {
	uri = os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user = os.Getenv("NEO4J_USERNAME")
	if user == "" {
		user = "neo4j"
	}
	password = os.Getenv("NEO4J_PASSWORD")
	return
}

// skipIfNeo4jUnavailable skips the test if Neo4j is not available.
func skipIfNeo4jUnavailable(t *testing.T) *driver.Neo4jDriver {
	t.Helper()
	if os.Getenv("NOIRGRAPH_NEO4J_TESTS") == "" {
		t.Skip("set NOIRGRAPH_NEO4J_TESTS=1 to run against a live Neo4j; the tests clear the database")
	}

	uri, user, password := getNeo4jConnectionInfo()
	d, err := driver.NewNeo4jDriver(uri, user, password, "", 3)
	if err != nil {
		t.Skipf("Neo4j not available at %s: %v", uri, err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.VerifyConnectivity(ctx); err != nil {
		d.Close()
		t.Skipf("Neo4j connection failed: %v", err)
		return nil
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestNeo4jDriver(t *testing.T) {
	d := skipIfNeo4jUnavailable(t)
	ctx := context.Background()

	require.NoError(t, d.ClearAll(ctx))
	require.NoError(t, d.CreateSchema(ctx))
	require.NoError(t, d.CreateSchema(ctx), "schema setup is re-runnable")
	require.NoError(t, d.VerifySchema(ctx))

	t.Run("chunk upsert is idempotent", func(t *testing.T) {
		require.NoError(t, d.UpsertChunk(ctx, &types.Chunk{Index: 0, DocumentID: "t", Content: "first"}))
		require.NoError(t, d.UpsertChunk(ctx, &types.Chunk{Index: 0, DocumentID: "t", Content: "second", Embedding: []float32{1, 0, 0}}))

		stats, err := d.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Chunks)
		assert.Equal(t, int64(1), stats.EdgesByType[driver.EdgeHasChunk])
	})

	t.Run("graph round trip", func(t *testing.T) {
		seedGraph(t, d)

		roles, err := d.EntitiesForStatement(ctx, types.StatementKey("study", 1))
		require.NoError(t, err)
		require.Len(t, roles, 1)
		assert.Equal(t, "Sherlock Holmes", roles[0].Entity.Name)
		assert.Equal(t, driver.RoleSubject, roles[0].Role)

		statements, err := d.StatementsForEntity(ctx, types.EntityKey("study", 2))
		require.NoError(t, err)
		require.Len(t, statements, 1)
		assert.Equal(t, []string{"assertion"}, statements[0].Statement.Modality)
	})

	t.Run("clear document", func(t *testing.T) {
		deleted, err := d.ClearDocument(ctx, "study")
		require.NoError(t, err)
		assert.Equal(t, int64(7), deleted)
	})

	require.NoError(t, d.ClearAll(ctx))
}
