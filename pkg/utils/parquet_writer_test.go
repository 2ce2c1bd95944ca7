package utils

import (
	"context"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph/pkg/types"
)

func TestParquetWriter(t *testing.T) {
	ctx := context.Background()
	w, err := NewParquetWriter(t.TempDir())
	require.NoError(t, err)

	t.Run("chunks", func(t *testing.T) {
		path, err := w.WriteChunks(ctx, []*types.Chunk{
			{Index: 0, DocumentID: "study", Content: "one", Embedding: []float32{0.1, 0.2}},
			{Index: 1, DocumentID: "study", Content: "two"},
		})
		require.NoError(t, err)

		rows, err := parquet.ReadFile[ParquetChunk](path)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "study_1", rows[1].ChunkID)
		assert.Equal(t, []float32{0.1, 0.2}, rows[0].Embedding)
	})

	t.Run("statements", func(t *testing.T) {
		path, err := w.WriteStatements(ctx, []*types.Statement{{
			ID: 3, DocumentID: "study", ChunkIndex: 1, Subject: "Holmes", Predicate: "said", Object: "Precisely.",
			Modality: []string{"assertion"}, Attributes: map[string]string{"speaker": "Holmes"},
		}})
		require.NoError(t, err)

		rows, err := parquet.ReadFile[ParquetStatement](path)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "study_3", rows[0].StatementID)
		assert.Equal(t, "study_1", rows[0].ChunkID)
		assert.Equal(t, []string{"assertion"}, rows[0].Modality)
		assert.JSONEq(t, `{"speaker":"Holmes"}`, rows[0].Attributes)
	})

	t.Run("entities", func(t *testing.T) {
		path, err := w.WriteEntities(ctx, []*types.Entity{{
			ID: 1, DocumentID: "study", Name: "Sherlock Holmes", Aliases: []string{"Holmes", "he"},
			Category: "Person", SubjectStatementIDs: []int{3}, Attributes: map[string]any{"occupation": "detective"},
		}})
		require.NoError(t, err)

		rows, err := parquet.ReadFile[ParquetEntity](path)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "study_1", rows[0].EntityID)
		assert.Equal(t, []int64{3}, rows[0].SubjectStatementIDs)
		assert.Equal(t, []string{"Holmes", "he"}, rows[0].Aliases)
	})

	t.Run("empty input writes nothing", func(t *testing.T) {
		path, err := w.WriteEntities(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, path)
	})
}
