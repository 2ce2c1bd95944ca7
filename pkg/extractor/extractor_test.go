package extractor

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph/pkg/nlp/nlptest"
	"github.com/soundprediction/noirgraph/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      int
		discarded int
	}{
		{"wrapped object", `{"statements":[{"subject":"Holmes","predicate":"smoke","object":"pipe"}]}`, 1, 0},
		{"bare array", `[{"subject":"Holmes","predicate":"smoke","object":"pipe"}]`, 1, 0},
		{"single object", `{"subject":"Holmes","predicate":"smoke","object":"pipe"}`, 1, 0},
		{"missing object kept", `[{"subject":"Holmes","predicate":"smoke"},{"subject":"Watson","predicate":"write","object":"notes"}]`, 2, 0},
		{"missing predicate dropped", `[{"subject":"Holmes","object":"pipe"},{"predicate":"write","object":"notes"}]`, 0, 2},
		{"non-object item dropped", `{"statements":["nonsense",{"subject":"a","predicate":"b","object":"c"}]}`, 1, 1},
		{"empty list", `{"statements":[]}`, 0, 0},
		{"null statements", `{"statements":null}`, 0, 0},
		{"code fence", "```json\n[{\"subject\":\"a\",\"predicate\":\"b\",\"object\":\"c\"}]\n```", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, discarded, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Len(t, drafts, tt.want)
			assert.Equal(t, tt.discarded, discarded)
		})
	}

	t.Run("defaults and loose types", func(t *testing.T) {
		drafts, _, err := Parse(`[{"subject":" Holmes ","predicate":"say","object_":"Precisely.","modality":"assertion, past"}]`)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "Holmes", drafts[0].Subject)
		assert.Equal(t, "Precisely.", drafts[0].Object)
		assert.Equal(t, []string{"assertion", "past"}, drafts[0].Modality)
		assert.Empty(t, drafts[0].Sentence)
	})

	t.Run("intransitive", func(t *testing.T) {
		drafts, discarded, err := Parse(`[{"subject":"Holmes","predicate":"laughed","object":""}]`)
		require.NoError(t, err)
		assert.Zero(t, discarded)
		require.Len(t, drafts, 1)
		assert.Equal(t, "laughed", drafts[0].Predicate)
		assert.Empty(t, drafts[0].Object)
	})

	t.Run("unexpected top level", func(t *testing.T) {
		_, _, err := Parse(`42`)
		assert.Error(t, err)
	})
}

func TestNormalizePredicate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		implied []types.Modality
	}{
		{"see", "see", nil},
		{"did not see", "see", []types.Modality{types.ModalityNegation}},
		{"didn't see", "see", []types.Modality{types.ModalityNegation}},
		{"never visited", "visited", []types.Modality{types.ModalityNegation}},
		{"could have taken", "taken", []types.Modality{types.ModalityPossibility}},
		{"will meet", "meet", []types.Modality{types.ModalityFuture}},
		{"was in", "be in", nil},
		{"isn't", "be", []types.Modality{types.ModalityNegation}},
		{"has gone to", "gone to", nil},
		{"had dinner with", "have dinner with", nil},
		{"was his brother", "be his brother", nil},
		{"did his duty", "do his duty", nil},
		{"was not his brother", "be his brother", []types.Modality{types.ModalityNegation}},
		{"was seen by", "seen by", nil},
		{"had been hiding in", "hiding in", nil},
		{"does", "do", nil},
		{"Said", "said", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, implied := NormalizePredicate(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.implied, implied)
		})
	}
}

func TestNormalizeDraft(t *testing.T) {
	d := NormalizeDraft(types.StatementDraft{
		Subject: "Watson", Predicate: "did not see", Object: "the man",
		Modality: []string{"Assertion"},
	})
	assert.Equal(t, "see", d.Predicate)
	assert.Equal(t, []string{"negation"}, d.Modality)

	d = NormalizeDraft(types.StatementDraft{Subject: "a", Predicate: "know", Object: "b"})
	assert.Equal(t, []string{"assertion"}, d.Modality)
}

func TestExpandConjunctions(t *testing.T) {
	t.Run("compound subject and object", func(t *testing.T) {
		out := ExpandConjunctions(types.StatementDraft{
			Subject: "Holmes and Watson", Predicate: "visit", Object: "Baker Street & the Yard",
			Modality: []string{"assertion"},
		})
		require.Len(t, out, 4)
		assert.Equal(t, "Holmes", out[0].Subject)
		assert.Equal(t, "Baker Street", out[0].Object)
		assert.Equal(t, "Watson", out[3].Subject)
		assert.Equal(t, "the Yard", out[3].Object)
	})

	t.Run("list with commas", func(t *testing.T) {
		out := ExpandConjunctions(types.StatementDraft{Subject: "Holmes, Watson and Lestrade", Predicate: "enter", Object: "room"})
		assert.Len(t, out, 3)
	})

	t.Run("quoted speech stays whole", func(t *testing.T) {
		out := ExpandConjunctions(types.StatementDraft{Subject: "Holmes", Predicate: "said", Object: `"Come and see."`})
		require.Len(t, out, 1)
		assert.Equal(t, `"Come and see."`, out[0].Object)
	})
}

func TestExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("speech statement with history", func(t *testing.T) {
		llm := nlptest.NewClient(`{"statements":[{"subject":"Sherlock Holmes","predicate":"said","object":"\"Precisely.\"","modality":["assertion"],"sentence":"\"Precisely,\" Holmes replied.","explanation":"Holmes answers Watson."}]}`)
		ex := New(llm, nil, Options{HistoryWindow: 2}, quietLogger())

		drafts, discarded, err := ex.Extract(ctx, `"Precisely," Holmes replied.`,
			[]string{"Did you see him?", "You mean the old fellow who has just gone out?"})
		require.NoError(t, err)
		assert.Zero(t, discarded)
		require.Len(t, drafts, 1)
		assert.Equal(t, "Sherlock Holmes", drafts[0].Subject)
		assert.Equal(t, "said", drafts[0].Predicate)
		assert.Contains(t, drafts[0].Object, "Precisely")
		assert.Contains(t, drafts[0].Modality, "assertion")

		calls := llm.Calls()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0][1].Content, "Did you see him?")
	})

	t.Run("splits conjunctions when enabled", func(t *testing.T) {
		llm := nlptest.NewClient(`[{"subject":"Holmes and Watson","predicate":"did not leave","object":"the room"}]`)
		ex := New(llm, nil, Options{SplitConjunctions: true}, quietLogger())

		drafts, _, err := ex.Extract(ctx, "Holmes and Watson did not leave the room.", nil)
		require.NoError(t, err)
		require.Len(t, drafts, 2)
		for _, d := range drafts {
			assert.Equal(t, "leave", d.Predicate)
			assert.Equal(t, []string{"negation"}, d.Modality)
		}
	})

	t.Run("malformed reply is an empty result", func(t *testing.T) {
		ex := New(nlptest.NewClient(`I could not find anything`), nil, Options{}, quietLogger())
		drafts, discarded, err := ex.Extract(ctx, "It was a dark night.", nil)
		require.NoError(t, err)
		assert.Empty(t, drafts)
		assert.Zero(t, discarded)
	})

	t.Run("pure narration", func(t *testing.T) {
		ex := New(nlptest.NewClient(`{"statements":[]}`), nil, Options{}, quietLogger())
		drafts, _, err := ex.Extract(ctx, "Silence.", nil)
		require.NoError(t, err)
		assert.Empty(t, drafts)
	})

	t.Run("unreachable collaborator is an error", func(t *testing.T) {
		llm := nlptest.NewClient()
		llm.Err = errors.New("dial tcp: connection refused")
		ex := New(llm, nil, Options{}, quietLogger())
		_, _, err := ex.Extract(ctx, "Holmes smoked.", nil)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("blank text skips the call", func(t *testing.T) {
		llm := nlptest.NewClient(`[]`)
		ex := New(llm, nil, Options{}, quietLogger())
		drafts, _, err := ex.Extract(ctx, "   ", nil)
		require.NoError(t, err)
		assert.Empty(t, drafts)
		assert.Empty(t, llm.Calls())
	})
}

func TestHistory(t *testing.T) {
	chunks := []*types.Chunk{
		{Index: 0, Content: "p1\n\np2"},
		{Index: 1, Content: "p3"},
		{Index: 2, Content: "p4\n\np5"},
	}
	assert.Nil(t, History(chunks, 0, 3))
	assert.Equal(t, []string{"p2", "p3"}, History(chunks, 2, 2))
	assert.Equal(t, []string{"p1", "p2", "p3"}, History(chunks, 2, 5))
	assert.Nil(t, History(chunks, 2, 0))
}

func TestToStatements(t *testing.T) {
	next := 7
	alloc := func() int {
		id := next
		next++
		return id
	}
	out := ToStatements([]types.StatementDraft{
		{Subject: "a", Predicate: "b", Object: "c"},
		{Subject: "d", Predicate: "e", Object: "f", Modality: []string{"Question"}},
	}, "doc", 3, alloc)

	require.Len(t, out, 2)
	assert.Equal(t, 7, out[0].ID)
	assert.Equal(t, 8, out[1].ID)
	assert.Equal(t, "doc_8", out[1].Key())
	assert.Equal(t, 3, out[0].ChunkIndex)
	assert.Equal(t, []string{"assertion"}, out[0].Modality)
	assert.Equal(t, []string{"question"}, out[1].Modality)
}
