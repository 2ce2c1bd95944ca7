package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), "")
	require.NoError(t, err)
	return store
}

func TestStoreSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("create numbers folders sequentially", func(t *testing.T) {
		store := newTestStore(t)

		first, err := store.Create(ctx)
		require.NoError(t, err)
		second, err := store.Create(ctx)
		require.NoError(t, err)
		assert.Equal(t, "student-001", first)
		assert.Equal(t, "student-002", second)

		require.NoError(t, os.Mkdir(filepath.Join(store.BaseDir(), "notes"), 0o755))
		sessions, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 2, "folders without the prefix are ignored")
		assert.Equal(t, 2, sessions[1].Index)
	})

	t.Run("empty store", func(t *testing.T) {
		store := newTestStore(t)
		last, err := store.Last(ctx)
		require.NoError(t, err)
		assert.Nil(t, last)

		name, err := store.CreateOrRecent(ctx, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "student-001", name)
	})

	t.Run("recent reuses the last active session", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.Create(ctx)
		require.NoError(t, err)
		second, err := store.Create(ctx)
		require.NoError(t, err)

		old := time.Now().Add(-48 * time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(store.BaseDir(), "student-001"), old, old))

		name, err := store.CreateOrRecent(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, second, name)

		require.NoError(t, os.Chtimes(filepath.Join(store.BaseDir(), second), old, old))
		name, err = store.CreateOrRecent(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "student-003", name)
	})

	t.Run("custom prefix", func(t *testing.T) {
		store, err := NewStore(t.TempDir(), "team")
		require.NoError(t, err)
		name, err := store.Create(ctx)
		require.NoError(t, err)
		assert.Equal(t, "team-001", name)
	})
}

func TestStoreArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	session, err := store.Create(ctx)
	require.NoError(t, err)

	t.Run("missing files load empty", func(t *testing.T) {
		chunks, err := store.LoadChunks(ctx, session)
		require.NoError(t, err)
		assert.Empty(t, chunks)

		counters, err := store.LoadCounters(ctx, session)
		require.NoError(t, err)
		assert.Nil(t, counters)

		doc, err := store.LoadDocument(ctx, session)
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("round trip", func(t *testing.T) {
		doc := &types.Document{ID: "study", Title: "A Study in Scarlet", Content: "One.\n\nTwo."}
		require.NoError(t, store.SaveDocument(ctx, session, doc))
		loadedDoc, err := store.LoadDocument(ctx, session)
		require.NoError(t, err)
		assert.Equal(t, doc, loadedDoc)

		chunks := []*types.Chunk{{Index: 0, DocumentID: "study", Content: "One."}, {Index: 1, DocumentID: "study", Content: "Two."}}
		require.NoError(t, store.SaveChunks(ctx, session, chunks))
		loaded, err := store.LoadChunks(ctx, session)
		require.NoError(t, err)
		assert.Equal(t, chunks, loaded)

		require.NoError(t, store.SaveStatements(ctx, session, 10, []*types.Statement{{ID: 3, DocumentID: "study", ChunkIndex: 10}}))
		require.NoError(t, store.SaveStatements(ctx, session, 2, []*types.Statement{{ID: 1, DocumentID: "study", ChunkIndex: 2}}))
		require.NoError(t, store.SaveStatements(ctx, session, 5, nil))

		all, err := store.LoadAllStatements(ctx, session)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, 1, all[0].ID, "numeric chunk order, not lexical")
		assert.Equal(t, 3, all[1].ID)

		require.NoError(t, store.SaveEntities(ctx, session, 2, []*types.Entity{{ID: 1, DocumentID: "study", Name: "Sherlock Holmes", SubjectStatementIDs: []int{1}}}))
		entities, err := store.LoadAllEntities(ctx, session)
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, []int{1}, entities[0].SubjectStatementIDs)

		require.NoError(t, store.SaveCounters(ctx, session, Counters{DocumentID: "study", NextStatementID: 4, NextEntityID: 2}))
		counters, err := store.LoadCounters(ctx, session)
		require.NoError(t, err)
		require.NotNil(t, counters)
		assert.Equal(t, 4, counters.NextStatementID)
		assert.False(t, counters.UpdatedAt.IsZero())
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		matches, err := filepath.Glob(filepath.Join(store.BaseDir(), session, "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, session))
		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})
}

func TestSessionIDValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, id := range []string{"", ".", "..", "../etc", "a/b", `a\b`, "x\x00y"} {
		t.Run(id, func(t *testing.T) {
			_, err := store.SessionPath(id)
			assert.ErrorIs(t, err, ErrInvalidSessionID)
			assert.ErrorIs(t, store.SaveChunks(ctx, id, nil), ErrInvalidSessionID)
		})
	}

	path, err := store.SessionPath("student-001")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BaseDir(), "student-001"), path)
}
