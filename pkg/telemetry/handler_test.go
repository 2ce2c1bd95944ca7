package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph/pkg/types"
)

func readRecords(t *testing.T, dir string) []LogRecord {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "execution_errors_*.parquet"))
	require.NoError(t, err)
	var out []LogRecord
	for _, f := range files {
		rows, err := parquet.ReadFile[LogRecord](f)
		require.NoError(t, err)
		out = append(out, rows...)
	}
	return out
}

func TestParquetHandler(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(dir, nil)
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), types.ContextKeySessionID, "student-004")
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "cli")

	log := slog.New(h).With("document_id", "study")
	log.InfoContext(ctx, "below the threshold")
	log.WithGroup("chunk").ErrorContext(ctx, "extraction failed", "index", 3, "error", errors.New("timeout"))

	assert.Empty(t, readRecords(t, dir), "records stay buffered until a flush")
	require.NoError(t, h.Close())

	records := readRecords(t, dir)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "extraction failed", r.Message)
	assert.Equal(t, "ERROR", r.Level)
	assert.Equal(t, "student-004", r.SessionID)
	assert.Equal(t, "cli", r.RequestSource)
	assert.NotEmpty(t, r.ID)
	assert.JSONEq(t, `{"document_id":"study","chunk.index":3,"chunk.error":"timeout"}`, r.Attributes)
}

func TestParquetHandlerBatching(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(dir, slog.LevelWarn)
	require.NoError(t, err)

	log := slog.New(h)
	child := log.With("worker", 1)
	for i := range DefaultBatchSize {
		if i%2 == 0 {
			log.Warn("retrying", "attempt", i)
		} else {
			child.Warn("retrying", "attempt", i)
		}
	}

	assert.Len(t, readRecords(t, dir), DefaultBatchSize, "derived handlers share one buffer")
	require.NoError(t, h.Flush())
	assert.Len(t, readRecords(t, dir), DefaultBatchSize, "flushing an empty buffer writes nothing")
}
