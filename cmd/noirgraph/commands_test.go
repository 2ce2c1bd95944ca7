package noirgraph

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph/pkg/checkpoint"
	"github.com/soundprediction/noirgraph/pkg/types"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

// run executes the root command in an empty working directory so no local
// config.yaml or .env is picked up.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("NOIRGRAPH_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestChunkCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.txt")
	text := strings.Repeat("Holmes lit his pipe and looked at the fire. ", 3) + "\n\n" +
		strings.Repeat("Watson waited by the window for the cab. ", 3)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	t.Setenv("NOIRGRAPH_CHUNKING_TARGET_SIZE", "150")
	t.Setenv("NOIRGRAPH_CHUNKING_MIN_SIZE", "20")
	out, err := run(t, "chunk", path)
	require.NoError(t, err)
	assert.Contains(t, out, "--- chunk 0")
	assert.Contains(t, out, "--- chunk 1")
	assert.Contains(t, out, "Watson waited")
}

func TestExportCommand(t *testing.T) {
	ctx := context.Background()
	data := t.TempDir()
	t.Setenv("DATA_PATH", data)

	store, err := checkpoint.NewStore(data, "")
	require.NoError(t, err)
	session, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SaveChunks(ctx, session, []*types.Chunk{
		{DocumentID: "story", Index: 0, Content: "Holmes smoked."},
	}))
	require.NoError(t, store.SaveStatements(ctx, session, 0, []*types.Statement{
		{ID: 1, DocumentID: "story", Subject: "Holmes", Predicate: "smoke", Object: "pipe", Sentence: "Holmes smoked."},
		{ID: 2, DocumentID: "story", Subject: "Holmes", Predicate: "light", Object: "fire", Sentence: "Holmes lit the fire."},
	}))

	outDir := filepath.Join(t.TempDir(), "parquet")
	out, err := run(t, "export", session, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 1 chunks")
	assert.Contains(t, out, "Wrote 2 statements")
	assert.NotContains(t, out, "entities")

	files, err := filepath.Glob(filepath.Join(outDir, "statements", "*.parquet"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	rows, err := parquet.ReadFile[utils.ParquetStatement](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "story_1", rows[0].StatementID)

	_, err = run(t, "export", "student-999", "--out", outDir)
	assert.ErrorContains(t, err, "nothing to export")
}

func TestClearRequiresConfirmation(t *testing.T) {
	_, err := run(t, "clear")
	assert.ErrorContains(t, err, "--yes")
}
