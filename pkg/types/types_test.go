package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitParagraphs(t *testing.T) {
	t.Run("blank lines separate paragraphs", func(t *testing.T) {
		got := SplitParagraphs("Para one.\n\nPara two.\n\n\n  Para three.  ")
		assert.Equal(t, []string{"Para one.", "Para two.", "Para three."}, got)
	})

	t.Run("whitespace-only lines count as blank", func(t *testing.T) {
		got := SplitParagraphs("a\n   \nb\r\n\r\nc")
		assert.Equal(t, []string{"a", "b", "c"}, got)
	})

	t.Run("single newlines stay inside a paragraph", func(t *testing.T) {
		got := SplitParagraphs("line one\nline two\n\nnext")
		assert.Equal(t, []string{"line one\nline two", "next"}, got)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, SplitParagraphs(""))
		assert.Empty(t, SplitParagraphs("\n\n  \n"))
	})
}

func TestRollingHistory(t *testing.T) {
	doc := &Document{ID: "d", Content: "a\n\nb\n\nc\n\nd\n\ne"}

	items := doc.RollingHistory(3)
	require.Len(t, items, 5)
	assert.Empty(t, items[0].History)
	assert.Equal(t, []string{"a"}, items[1].History)
	assert.Equal(t, []string{"a", "b", "c"}, items[3].History)
	assert.Equal(t, []string{"b", "c", "d"}, items[4].History)
	assert.Equal(t, "e", items[4].Paragraph)

	assert.Empty(t, doc.RollingHistory(-1)[2].History)
}

func TestKeys(t *testing.T) {
	c := &Chunk{DocumentID: "colorman", Index: 3}
	assert.Equal(t, "colorman_3", c.ChunkID())

	s := &Statement{DocumentID: "colorman", ID: 12, ChunkIndex: 3}
	assert.Equal(t, "colorman_12", s.Key())
	assert.Equal(t, "colorman_3", s.ChunkID())

	e := &Entity{DocumentID: "colorman", ID: 7}
	assert.Equal(t, "colorman_7", e.Key())
}

func TestEmbeddingStrings(t *testing.T) {
	s := &Statement{
		Subject:     "Sherlock Holmes",
		Predicate:   "said",
		Object:      "Precisely.",
		Modality:    []string{"assertion", "past"},
		Sentence:    `"Precisely," Holmes replied.`,
		Explanation: "Holmes answers the question.",
	}
	assert.Equal(t, "Sherlock Holmes said Precisely.", s.NameString())
	assert.Equal(t, `Sherlock Holmes said Precisely. [assertion, past] "Precisely," Holmes replied. Holmes answers the question.`, s.ProfileString())

	e := &Entity{
		Name:        "big cat",
		Aliases:     []string{"the big cat", "the cat", "it"},
		Description: "A large feline.",
	}
	assert.Equal(t, "big cat the big cat the cat it", e.NameString())
	assert.Equal(t, "big cat the big cat the cat it A large feline.", e.ProfileString())
}

func TestEntityValidate(t *testing.T) {
	tests := []struct {
		name    string
		entity  Entity
		wantErr error
	}{
		{"grounded as subject", Entity{Name: "Josiah Amberley", SubjectStatementIDs: []int{1}}, nil},
		{"grounded as object", Entity{Name: "Josiah Amberley", ObjectStatementIDs: []int{2}}, nil},
		{"ungrounded", Entity{Name: "Josiah Amberley"}, ErrUngrounded},
		{"pronoun", Entity{Name: "He", SubjectStatementIDs: []int{1}}, ErrPronounName},
		{"empty name", Entity{Name: " ", SubjectStatementIDs: []int{1}}, ErrEmptyName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStatementIDs(t *testing.T) {
	e := &Entity{SubjectStatementIDs: []int{1, 2}, ObjectStatementIDs: []int{2, 3}}
	assert.Equal(t, []int{1, 2, 3}, e.StatementIDs())
}

func TestNormalizeModality(t *testing.T) {
	assert.Equal(t, []string{"assertion"}, NormalizeModality(nil))
	assert.Equal(t, []string{"negation", "past"}, NormalizeModality([]string{" Negation", "past", "NEGATION", ""}))

	tags := AddModality([]string{"assertion"}, ModalityNegation)
	assert.Equal(t, []string{"assertion", "negation"}, tags)
	assert.Equal(t, tags, AddModality(tags, ModalityNegation))

	s := &Statement{Modality: tags}
	assert.True(t, s.HasModality(ModalityNegation))
	assert.False(t, s.HasModality(ModalityQuestion))
}

func TestIsPronoun(t *testing.T) {
	for _, p := range []string{"it", "He", " she ", "They.", "the man"} {
		assert.True(t, IsPronoun(p), p)
	}
	for _, n := range []string{"big cat", "Sherlock Holmes", "Itinerary"} {
		assert.False(t, IsPronoun(n), n)
	}
}

func TestStatementDraftEmpty(t *testing.T) {
	assert.True(t, (&StatementDraft{Subject: "a", Object: "c"}).Empty())
	assert.True(t, (&StatementDraft{Predicate: "b", Object: "c"}).Empty())
	assert.False(t, (&StatementDraft{Subject: "a", Predicate: "b"}).Empty())
	assert.False(t, (&StatementDraft{Subject: "a", Predicate: "b", Object: "c"}).Empty())
}
