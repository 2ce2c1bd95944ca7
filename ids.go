package noirgraph

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soundprediction/noirgraph/pkg/checkpoint"
)

// ErrCountersCorrupted reports counters that would reuse an ID.
var ErrCountersCorrupted = errors.New("id counters corrupted")

// IdAllocator hands out statement and entity IDs for one document. IDs start
// at 1, are strictly increasing and never reused until Reset is called for a
// new document. It is safe for concurrent use.
type IdAllocator struct {
	mu            sync.Mutex
	documentID    string
	nextStatement int
	nextEntity    int
}

// NewIdAllocator returns an allocator positioned at the first ID.
func NewIdAllocator(documentID string) *IdAllocator {
	return &IdAllocator{documentID: documentID, nextStatement: 1, nextEntity: 1}
}

// DocumentID returns the document the counters belong to.
func (a *IdAllocator) DocumentID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.documentID
}

// NextStatementID returns the next statement ID.
func (a *IdAllocator) NextStatementID() int {
	return a.ReserveStatements(1)
}

// NextEntityID returns the next entity ID.
func (a *IdAllocator) NextEntityID() int {
	return a.ReserveEntities(1)
}

// ReserveStatements reserves n consecutive statement IDs and returns the
// first one.
func (a *IdAllocator) ReserveStatements(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	first := a.nextStatement
	a.nextStatement += max(n, 0)
	return first
}

// ReserveEntities reserves n consecutive entity IDs and returns the first one.
func (a *IdAllocator) ReserveEntities(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	first := a.nextEntity
	a.nextEntity += max(n, 0)
	return first
}

// Reset starts over for a new document.
func (a *IdAllocator) Reset(documentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.documentID = documentID
	a.nextStatement = 1
	a.nextEntity = 1
}

// Counters snapshots the allocator for the session store.
func (a *IdAllocator) Counters() checkpoint.Counters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return checkpoint.Counters{
		DocumentID:      a.documentID,
		NextStatementID: a.nextStatement,
		NextEntityID:    a.nextEntity,
		UpdatedAt:       time.Now().UTC(),
	}
}

// Restore resumes from saved counters. Counters for another document, or
// that would move an allocator backwards, are rejected.
func (a *IdAllocator) Restore(c checkpoint.Counters) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c.NextStatementID < 1 || c.NextEntityID < 1 {
		return fmt.Errorf("%w: next statement %d, next entity %d", ErrCountersCorrupted, c.NextStatementID, c.NextEntityID)
	}
	if c.DocumentID != a.documentID {
		return fmt.Errorf("%w: counters belong to %q, not %q", ErrCountersCorrupted, c.DocumentID, a.documentID)
	}
	a.nextStatement = max(a.nextStatement, c.NextStatementID)
	a.nextEntity = max(a.nextEntity, c.NextEntityID)
	return nil
}

// sequence returns a func yielding consecutive IDs from first.
func sequence(first int) func() int {
	next := first
	return func() int {
		id := next
		next++
		return id
	}
}
