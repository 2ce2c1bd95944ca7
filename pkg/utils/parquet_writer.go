package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/noirgraph/pkg/types"
)

// ParquetWriter exports pipeline artifacts to Parquet files for offline
// analysis. Each call writes one new file.
type ParquetWriter struct {
	baseDir string
	now     func() time.Time
}

// NewParquetWriter creates the chunks, statements and entities directories
// under baseDir.
func NewParquetWriter(baseDir string) (*ParquetWriter, error) {
	for _, d := range []string{"chunks", "statements", "entities"} {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return &ParquetWriter{baseDir: baseDir, now: time.Now}, nil
}

// ParquetChunk is the row schema for chunks.
type ParquetChunk struct {
	ChunkID    string    `parquet:"chunk_id"`
	DocumentID string    `parquet:"document_id"`
	Index      int64     `parquet:"index"`
	Content    string    `parquet:"content"`
	Embedding  []float32 `parquet:"embedding,list"`
	ExportedAt time.Time `parquet:"exported_at,timestamp"`
}

// ParquetStatement is the row schema for statements.
type ParquetStatement struct {
	StatementID      string    `parquet:"statement_id"`
	ID               int64     `parquet:"id"`
	DocumentID       string    `parquet:"document_id"`
	ChunkID          string    `parquet:"chunk_id"`
	Subject          string    `parquet:"subject"`
	Predicate        string    `parquet:"predicate"`
	Object           string    `parquet:"object"`
	Modality         []string  `parquet:"modality,list"`
	Sentence         string    `parquet:"sentence"`
	Explanation      string    `parquet:"explanation"`
	NameEmbedding    []float32 `parquet:"name_embedding,list"`
	ProfileEmbedding []float32 `parquet:"profile_embedding,list"`
	Attributes       string    `parquet:"attributes"` // JSON string
	ExportedAt       time.Time `parquet:"exported_at,timestamp"`
}

// ParquetEntity is the row schema for entities.
type ParquetEntity struct {
	EntityID            string    `parquet:"entity_id"`
	ID                  int64     `parquet:"id"`
	DocumentID          string    `parquet:"document_id"`
	ChunkIndex          int64     `parquet:"chunk_index"`
	Name                string    `parquet:"name"`
	Aliases             []string  `parquet:"aliases,list"`
	Type                string    `parquet:"type"`
	Category            string    `parquet:"category"`
	Description         string    `parquet:"description"`
	Explanation         string    `parquet:"explanation"`
	NameEmbedding       []float32 `parquet:"name_embedding,list"`
	ProfileEmbedding    []float32 `parquet:"profile_embedding,list"`
	Attributes          string    `parquet:"attributes"` // JSON string
	SubjectStatementIDs []int64   `parquet:"subject_statement_ids,list"`
	ObjectStatementIDs  []int64   `parquet:"object_statement_ids,list"`
	ExportedAt          time.Time `parquet:"exported_at,timestamp"`
}

func (w *ParquetWriter) path(kind, documentID string) string {
	if documentID == "" {
		documentID = "default"
	}
	filename := fmt.Sprintf("%s_%s_%d.parquet", kind, documentID, w.now().UnixNano())
	return filepath.Join(w.baseDir, kind, filename)
}

// WriteChunks writes chunks to one file and returns its path. Nothing is
// written for an empty slice.
func (w *ParquetWriter) WriteChunks(ctx context.Context, chunks []*types.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}
	now := w.now().UTC()
	rows := make([]ParquetChunk, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, ParquetChunk{
			ChunkID:    c.ChunkID(),
			DocumentID: c.DocumentID,
			Index:      int64(c.Index),
			Content:    c.Content,
			Embedding:  c.Embedding,
			ExportedAt: now,
		})
	}
	path := w.path("chunks", chunks[0].DocumentID)
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("write chunks: %w", err)
	}
	return path, nil
}

// WriteStatements writes statements to one file and returns its path.
func (w *ParquetWriter) WriteStatements(ctx context.Context, statements []*types.Statement) (string, error) {
	if len(statements) == 0 {
		return "", nil
	}
	now := w.now().UTC()
	rows := make([]ParquetStatement, 0, len(statements))
	for _, s := range statements {
		attrs, err := marshalAttributes(s.Attributes)
		if err != nil {
			return "", err
		}
		rows = append(rows, ParquetStatement{
			StatementID:      s.Key(),
			ID:               int64(s.ID),
			DocumentID:       s.DocumentID,
			ChunkID:          s.ChunkID(),
			Subject:          s.Subject,
			Predicate:        s.Predicate,
			Object:           s.Object,
			Modality:         s.Modality,
			Sentence:         s.Sentence,
			Explanation:      s.Explanation,
			NameEmbedding:    s.NameEmbedding,
			ProfileEmbedding: s.ProfileEmbedding,
			Attributes:       attrs,
			ExportedAt:       now,
		})
	}
	path := w.path("statements", statements[0].DocumentID)
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("write statements: %w", err)
	}
	return path, nil
}

// WriteEntities writes entities to one file and returns its path.
func (w *ParquetWriter) WriteEntities(ctx context.Context, entities []*types.Entity) (string, error) {
	if len(entities) == 0 {
		return "", nil
	}
	now := w.now().UTC()
	rows := make([]ParquetEntity, 0, len(entities))
	for _, e := range entities {
		attrs, err := marshalAttributes(e.Attributes)
		if err != nil {
			return "", err
		}
		rows = append(rows, ParquetEntity{
			EntityID:            e.Key(),
			ID:                  int64(e.ID),
			DocumentID:          e.DocumentID,
			ChunkIndex:          int64(e.ChunkIndex),
			Name:                e.Name,
			Aliases:             e.Aliases,
			Type:                e.Type,
			Category:            e.Category,
			Description:         e.Description,
			Explanation:         e.Explanation,
			NameEmbedding:       e.NameEmbedding,
			ProfileEmbedding:    e.ProfileEmbedding,
			Attributes:          attrs,
			SubjectStatementIDs: toInt64s(e.SubjectStatementIDs),
			ObjectStatementIDs:  toInt64s(e.ObjectStatementIDs),
			ExportedAt:          now,
		})
	}
	path := w.path("entities", entities[0].DocumentID)
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("write entities: %w", err)
	}
	return path, nil
}

func marshalAttributes[V any](attrs map[string]V) (string, error) {
	if len(attrs) == 0 {
		return "", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attributes: %w", err)
	}
	return string(b), nil
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
