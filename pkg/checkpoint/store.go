package checkpoint

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/soundprediction/noirgraph/pkg/types"
)

// ErrInvalidSessionID is returned when a session ID contains invalid characters
var ErrInvalidSessionID = errors.New("invalid session ID: contains path traversal or invalid characters")

// DefaultPrefix names session folders "student-001", "student-002", ...
const DefaultPrefix = "student"

const (
	documentFile = "document.json"
	chunksFile   = "chunks.json"
	countersFile = "counters.json"
)

// Session is one working folder.
type Session struct {
	Name         string    `json:"name"`
	Index        int       `json:"index"`
	LastModified time.Time `json:"last_modified"`
}

// Counters lets the ID allocator resume where a previous process stopped.
type Counters struct {
	DocumentID      string    `json:"document_id"`
	NextStatementID int       `json:"next_statement_id"`
	NextEntityID    int       `json:"next_entity_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store keeps intermediate artifacts as JSON in per-session folders named
// "{prefix}-{NNN}" under a base directory. It is a durable cache independent
// of the graph database.
type Store struct {
	baseDir string
	prefix  string
	pattern *regexp.Regexp
}

// NewStore creates a store rooted at baseDir, creating the directory if it
// does not exist.
func NewStore(baseDir, prefix string) (*Store, error) {
	if baseDir == "" {
		baseDir = filepath.Join("data", "students")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{
		baseDir: baseDir,
		prefix:  prefix,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-(\d{3,})$`),
	}, nil
}

// BaseDir returns the directory holding the session folders.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// validateSessionID checks that the session ID is safe for use in file paths.
func validateSessionID(id string) error {
	if id == "" || id == "." {
		return ErrInvalidSessionID
	}
	if strings.Contains(id, "..") {
		return ErrInvalidSessionID
	}
	if strings.ContainsAny(id, `/\`) {
		return ErrInvalidSessionID
	}
	if strings.ContainsRune(id, '\x00') {
		return ErrInvalidSessionID
	}
	return nil
}

// isPathWithinDirectory checks that the resolved path is within the expected directory.
func isPathWithinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanDir)
}

// SessionPath returns the folder of a session.
func (s *Store) SessionPath(session string) (string, error) {
	if err := validateSessionID(session); err != nil {
		return "", err
	}
	path := filepath.Join(s.baseDir, session)
	if !isPathWithinDirectory(path, s.baseDir) {
		return "", ErrInvalidSessionID
	}
	return path, nil
}

// List returns the session folders ordered by index.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	var sessions []Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := s.pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		index, _ := strconv.Atoi(m[1])
		sessions = append(sessions, Session{
			Name:         entry.Name(),
			Index:        index,
			LastModified: info.ModTime(),
		})
	}
	slices.SortFunc(sessions, func(a, b Session) int { return cmp.Compare(a.Index, b.Index) })
	return sessions, nil
}

// Last returns the most recently modified session, or nil when there is
// none.
func (s *Store) Last(ctx context.Context) (*Session, error) {
	sessions, err := s.List(ctx)
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	last := slices.MaxFunc(sessions, func(a, b Session) int {
		return a.LastModified.Compare(b.LastModified)
	})
	return &last, nil
}

// Recent returns the last session if it was modified within window.
func (s *Store) Recent(ctx context.Context, window time.Duration) (*Session, error) {
	last, err := s.Last(ctx)
	if err != nil || last == nil {
		return nil, err
	}
	if time.Since(last.LastModified) >= window {
		return nil, nil
	}
	return last, nil
}

// Create makes the folder with the next free number and returns its name.
func (s *Store) Create(ctx context.Context) (string, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	next := 1
	if len(sessions) > 0 {
		next = sessions[len(sessions)-1].Index + 1
	}
	for {
		name := fmt.Sprintf("%s-%03d", s.prefix, next)
		err := os.Mkdir(filepath.Join(s.baseDir, name), 0o755)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to create session %s: %w", name, err)
		}
		next++
	}
}

// CreateOrRecent reuses the last session if it was active within window and
// creates a new one otherwise.
func (s *Store) CreateOrRecent(ctx context.Context, window time.Duration) (string, error) {
	recent, err := s.Recent(ctx, window)
	if err != nil {
		return "", err
	}
	if recent != nil {
		return recent.Name, nil
	}
	return s.Create(ctx)
}

// Delete removes a session folder and everything in it.
func (s *Store) Delete(ctx context.Context, session string) error {
	path, err := s.SessionPath(session)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", session, err)
	}
	return nil
}

func (s *Store) filePath(session, name string) (string, error) {
	dir, err := s.SessionPath(session)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// writeJSON writes to a temporary file first, then renames it into place.
func (s *Store) writeJSON(session, name string, v any) error {
	path, err := s.filePath(session, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create session folder: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", name, err)
	}
	return nil
}

// readJSON reports found=false without error when the file does not exist.
func (s *Store) readJSON(session, name string, v any) (bool, error) {
	path, err := s.filePath(session, name)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return true, nil
}

// SaveDocument stores the loaded document.
func (s *Store) SaveDocument(ctx context.Context, session string, doc *types.Document) error {
	return s.writeJSON(session, documentFile, doc)
}

// LoadDocument returns nil when the session has no document.
func (s *Store) LoadDocument(ctx context.Context, session string) (*types.Document, error) {
	var doc types.Document
	found, err := s.readJSON(session, documentFile, &doc)
	if err != nil || !found {
		return nil, err
	}
	return &doc, nil
}

// SaveChunks stores chunks.json.
func (s *Store) SaveChunks(ctx context.Context, session string, chunks []*types.Chunk) error {
	return s.writeJSON(session, chunksFile, chunks)
}

// LoadChunks returns an empty slice when chunks.json does not exist.
func (s *Store) LoadChunks(ctx context.Context, session string) ([]*types.Chunk, error) {
	var chunks []*types.Chunk
	if _, err := s.readJSON(session, chunksFile, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func statementsFile(chunkIndex int) string { return fmt.Sprintf("statements-%d.json", chunkIndex) }
func entitiesFile(chunkIndex int) string   { return fmt.Sprintf("entities-%d.json", chunkIndex) }

// SaveStatements stores the statements extracted from one chunk.
func (s *Store) SaveStatements(ctx context.Context, session string, chunkIndex int, statements []*types.Statement) error {
	if statements == nil {
		statements = []*types.Statement{}
	}
	return s.writeJSON(session, statementsFile(chunkIndex), statements)
}

// LoadStatements returns the statements of one chunk.
func (s *Store) LoadStatements(ctx context.Context, session string, chunkIndex int) ([]*types.Statement, error) {
	var statements []*types.Statement
	if _, err := s.readJSON(session, statementsFile(chunkIndex), &statements); err != nil {
		return nil, err
	}
	return statements, nil
}

// SaveEntities stores the entities resolved from one chunk.
func (s *Store) SaveEntities(ctx context.Context, session string, chunkIndex int, entities []*types.Entity) error {
	if entities == nil {
		entities = []*types.Entity{}
	}
	return s.writeJSON(session, entitiesFile(chunkIndex), entities)
}

// LoadEntities returns the entities of one chunk.
func (s *Store) LoadEntities(ctx context.Context, session string, chunkIndex int) ([]*types.Entity, error) {
	var entities []*types.Entity
	if _, err := s.readJSON(session, entitiesFile(chunkIndex), &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// chunkIndexes lists the chunk indexes that have a "{kind}-{idx}.json" file.
func (s *Store) chunkIndexes(session, kind string) ([]int, error) {
	dir, err := s.SessionPath(session)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session %s: %w", session, err)
	}
	var indexes []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, kind+"-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, kind+"-"), ".json"))
		if err != nil {
			continue
		}
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)
	return indexes, nil
}

// LoadAllStatements returns every stored statement in chunk order.
func (s *Store) LoadAllStatements(ctx context.Context, session string) ([]*types.Statement, error) {
	indexes, err := s.chunkIndexes(session, "statements")
	if err != nil {
		return nil, err
	}
	var all []*types.Statement
	for _, idx := range indexes {
		statements, err := s.LoadStatements(ctx, session, idx)
		if err != nil {
			return nil, err
		}
		all = append(all, statements...)
	}
	return all, nil
}

// LoadAllEntities returns every stored entity in chunk order.
func (s *Store) LoadAllEntities(ctx context.Context, session string) ([]*types.Entity, error) {
	indexes, err := s.chunkIndexes(session, "entities")
	if err != nil {
		return nil, err
	}
	var all []*types.Entity
	for _, idx := range indexes {
		entities, err := s.LoadEntities(ctx, session, idx)
		if err != nil {
			return nil, err
		}
		all = append(all, entities...)
	}
	return all, nil
}

// SaveCounters stores the next statement and entity IDs.
func (s *Store) SaveCounters(ctx context.Context, session string, counters Counters) error {
	counters.UpdatedAt = time.Now()
	return s.writeJSON(session, countersFile, counters)
}

// LoadCounters returns nil when no counters were saved.
func (s *Store) LoadCounters(ctx context.Context, session string) (*Counters, error) {
	var counters Counters
	found, err := s.readJSON(session, countersFile, &counters)
	if err != nil || !found {
		return nil, err
	}
	return &counters, nil
}
