package types

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrEmptyID         = errors.New("id cannot be empty")
	ErrEmptyDocumentID = errors.New("document_id cannot be empty")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrNegativeIndex   = errors.New("index cannot be negative")
	ErrUngrounded      = errors.New("entity is not linked to any statement")
	ErrPronounName     = errors.New("canonical name cannot be a bare pronoun")
	ErrInvalidLimit    = errors.New("limit must be positive")
)

// Document is the root of ownership for chunks, statements and entities.
type Document struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// Validate checks if the Document has all required fields set.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// Paragraphs splits the content on blank lines, trimming each paragraph and
// dropping empty ones.
func (d *Document) Paragraphs() []string {
	return SplitParagraphs(d.Content)
}

// HistoryItem is a paragraph together with the paragraphs that precede it.
type HistoryItem struct {
	Index     int      `json:"index"`
	Paragraph string   `json:"paragraph"`
	History   []string `json:"history"`
}

// RollingHistory returns every paragraph with up to window preceding
// paragraphs as context, oldest first.
func (d *Document) RollingHistory(window int) []HistoryItem {
	if window < 0 {
		window = 0
	}
	paragraphs := d.Paragraphs()
	items := make([]HistoryItem, 0, len(paragraphs))
	for i, p := range paragraphs {
		start := i - window
		if start < 0 {
			start = 0
		}
		history := make([]string, i-start)
		copy(history, paragraphs[start:i])
		items = append(items, HistoryItem{Index: i, Paragraph: p, History: history})
	}
	return items
}

// SplitParagraphs splits text on blank-line boundaries.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		paragraphs []string
		current    []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		p := strings.TrimSpace(strings.Join(current, "\n"))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
		current = current[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return paragraphs
}

// Chunk is a bounded contiguous slice of a document used as the unit of extraction.
type Chunk struct {
	Index      int       `json:"index"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ChunkID returns the natural key "{document_id}_{index}".
func (c *Chunk) ChunkID() string {
	return ChunkID(c.DocumentID, c.Index)
}

// ChunkID builds the chunk natural key.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

// Validate checks if the Chunk has all required fields set.
func (c *Chunk) Validate() error {
	if c.DocumentID == "" {
		return ErrEmptyDocumentID
	}
	if c.Index < 0 {
		return ErrNegativeIndex
	}
	return nil
}

// Statement is an atomic subject-predicate-object triple extracted from one sentence.
type Statement struct {
	ID               int               `json:"id"`
	DocumentID       string            `json:"document_id"`
	ChunkIndex       int               `json:"chunk_index"`
	Subject          string            `json:"subject"`
	Predicate        string            `json:"predicate"`
	Object           string            `json:"object"`
	Modality         []string          `json:"modality"`
	Sentence         string            `json:"sentence"`
	Explanation      string            `json:"explanation"`
	NameEmbedding    []float32         `json:"name_embedding,omitempty"`
	ProfileEmbedding []float32         `json:"profile_embedding,omitempty"`
	Attributes       map[string]string `json:"attributes,omitempty"`
}

// Key returns the graph key "{document_id}_{id}".
func (s *Statement) Key() string {
	return StatementKey(s.DocumentID, s.ID)
}

// StatementKey builds the statement graph key.
func StatementKey(documentID string, id int) string {
	return fmt.Sprintf("%s_%d", documentID, id)
}

// ChunkID returns the key of the chunk the statement belongs to.
func (s *Statement) ChunkID() string {
	return ChunkID(s.DocumentID, s.ChunkIndex)
}

// NameString is the short identifying text used for the name embedding.
func (s *Statement) NameString() string {
	return joinNonEmpty(s.Subject, s.Predicate, s.Object)
}

// ProfileString is the full descriptive text used for the profile embedding.
func (s *Statement) ProfileString() string {
	return joinNonEmpty(s.Subject, s.Predicate, s.Object,
		"["+strings.Join(s.Modality, ", ")+"]", s.Sentence, s.Explanation)
}

// HasModality reports whether the statement carries the given modality tag.
func (s *Statement) HasModality(m Modality) bool {
	for _, tag := range s.Modality {
		if strings.EqualFold(tag, string(m)) {
			return true
		}
	}
	return false
}

// Entity is a canonicalized real-world referent merged from statement mentions.
type Entity struct {
	ID                  int            `json:"id"`
	DocumentID          string         `json:"document_id"`
	ChunkIndex          int            `json:"chunk_index"` // chunk whose resolution pass produced it
	Name                string         `json:"name"`
	Aliases             []string       `json:"aliases"`
	Type                string         `json:"type"`
	Category            string         `json:"category"`
	Description         string         `json:"description"`
	Explanation         string         `json:"explanation"`
	NameEmbedding       []float32      `json:"name_embedding,omitempty"`
	ProfileEmbedding    []float32      `json:"profile_embedding,omitempty"`
	Attributes          map[string]any `json:"attributes,omitempty"`
	SubjectStatementIDs []int          `json:"subject_statement_ids"`
	ObjectStatementIDs  []int          `json:"object_statement_ids"`
}

// Key returns the graph key "{document_id}_{id}".
func (e *Entity) Key() string {
	return EntityKey(e.DocumentID, e.ID)
}

// EntityKey builds the entity graph key.
func EntityKey(documentID string, id int) string {
	return fmt.Sprintf("%s_%d", documentID, id)
}

// NameString is the canonical name followed by all aliases.
func (e *Entity) NameString() string {
	return joinNonEmpty(append([]string{e.Name}, e.Aliases...)...)
}

// ProfileString adds the description and explanation to the name string.
func (e *Entity) ProfileString() string {
	return joinNonEmpty(e.NameString(), e.Description, e.Explanation)
}

// Validate enforces groundedness and the canonical-name rule.
func (e *Entity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if IsPronoun(e.Name) {
		return fmt.Errorf("%w: %q", ErrPronounName, e.Name)
	}
	if len(e.SubjectStatementIDs)+len(e.ObjectStatementIDs) == 0 {
		return ErrUngrounded
	}
	return nil
}

// StatementIDs returns subject and object statement IDs without duplicates.
func (e *Entity) StatementIDs() []int {
	seen := make(map[int]struct{}, len(e.SubjectStatementIDs)+len(e.ObjectStatementIDs))
	ids := make([]int, 0, len(e.SubjectStatementIDs)+len(e.ObjectStatementIDs))
	for _, group := range [][]int{e.SubjectStatementIDs, e.ObjectStatementIDs} {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && p != "[]" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
