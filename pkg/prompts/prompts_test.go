package prompts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/types"
)

func TestExtractStatementsPrompt(t *testing.T) {
	lib := NewLibrary()

	t.Run("renders history and text", func(t *testing.T) {
		messages, err := lib.ExtractStatements.Call(map[string]any{
			"text":    `"Precisely," Holmes replied.`,
			"history": []string{"Did you see him?", "You mean the old fellow who has just gone out?"},
		})
		require.NoError(t, err)
		require.Len(t, messages, 2)

		assert.Equal(t, nlp.RoleSystem, messages[0].Role)
		assert.Contains(t, messages[0].Content, "Do not escape unicode characters.")

		assert.Equal(t, nlp.RoleUser, messages[1].Role)
		assert.Contains(t, messages[1].Content, "<HISTORY>")
		assert.Contains(t, messages[1].Content, "Did you see him?")
		assert.Contains(t, messages[1].Content, `<TEXT>
"Precisely," Holmes replied.
</TEXT>`)
	})

	t.Run("no history block without history", func(t *testing.T) {
		messages, err := lib.ExtractStatements.Call(map[string]any{"text": "Holmes smoked."})
		require.NoError(t, err)
		assert.NotContains(t, messages[1].Content, "<HISTORY>")
	})

	t.Run("custom prompt is appended", func(t *testing.T) {
		messages, err := lib.ExtractStatements.Call(map[string]any{
			"text":          "Holmes smoked.",
			"custom_prompt": "Ignore the weather.",
		})
		require.NoError(t, err)
		assert.Contains(t, messages[1].Content, "Ignore the weather.")
	})

	t.Run("empty text is rejected", func(t *testing.T) {
		_, err := lib.ExtractStatements.Call(map[string]any{"text": "  "})
		assert.ErrorIs(t, err, ErrMissingText)
	})
}

func TestResolveEntitiesPrompt(t *testing.T) {
	lib := NewLibrary()
	statements := NewStatementContexts([]*types.Statement{
		{ID: 4, Subject: "the big cat", Predicate: "sleep on", Object: "mat", Modality: []string{"assertion"}},
		{ID: 5, Subject: "it", Predicate: "purr", Object: "loudly", Modality: []string{"assertion"}},
	})

	messages, err := lib.ResolveEntities.Call(map[string]any{
		"statements": statements,
		"categories": "- name: Person\n",
		"text":       "The big cat slept on the mat. It purred loudly.",
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)

	user := messages[1].Content
	assert.Contains(t, user, "<STATEMENTS>")
	assert.Contains(t, user, "id: 4")
	assert.Contains(t, user, "subject: the big cat")
	assert.Contains(t, user, "modality: [assertion]")
	assert.Contains(t, user, "<CATEGORIES>\n- name: Person\n</CATEGORIES>")
	assert.Contains(t, user, "<TEXT>")

	_, err = lib.ResolveEntities.Call(map[string]any{"text": "x"})
	assert.ErrorIs(t, err, ErrMissingStatements)
}

func TestSchemas(t *testing.T) {
	for name, schema := range map[string]any{
		"statements": StatementsSchema(),
		"entities":   EntitiesSchema(),
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := json.Marshal(schema)
			require.NoError(t, err)

			var doc map[string]any
			require.NoError(t, json.Unmarshal(raw, &doc))
			assert.Equal(t, "object", doc["type"])
			props, ok := doc["properties"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, props, name)
			assert.NotContains(t, string(raw), "$ref")
		})
	}
}

func TestToPromptYAML(t *testing.T) {
	out, err := ToPromptYAML(map[string]any{"name": "Sherlock Holmes"})
	require.NoError(t, err)
	assert.Equal(t, "name: Sherlock Holmes", out)

	js, err := ToPromptJSON(map[string]string{"quote": "<é>"}, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"quote":"<é>"}`, js)
}
