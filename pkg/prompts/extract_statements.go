package prompts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// ErrMissingText is returned when a prompt is rendered without source text.
var ErrMissingText = errors.New("prompt context requires non-empty text")

// extractStatementsPrompt renders the statement extraction request.
//
// Context keys: text (string, required), history ([]string, preceding
// paragraphs), custom_prompt (string), logger (*slog.Logger).
func extractStatementsPrompt(context map[string]any) ([]types.Message, error) {
	text := strings.TrimSpace(stringValue(context, "text"))
	if text == "" {
		return nil, ErrMissingText
	}

	sysPrompt := `You are an expert reader of detective fiction who turns narrative text into atomic subject-predicate-object statements for a knowledge graph.`

	var history []string
	if h, ok := context["history"].([]string); ok {
		history = h
	}

	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("<HISTORY>\n")
		b.WriteString(strings.Join(history, "\n\n"))
		b.WriteString("\n</HISTORY>\n")
	}
	fmt.Fprintf(&b, "<TEXT>\n%s\n</TEXT>\n", text)

	b.WriteString(`
Examine the TEXT sentence by sentence and extract ALL statements it makes.
HISTORY holds the paragraphs right before the TEXT. Use it only to resolve who is speaking and what pronouns refer to; do not extract statements from it.

Instructions:
1. Extract every statement of every sentence. If the subject or the object is a conjunction ("Holmes and Watson"), create one statement for each combination.
2. Subject and object are short canonical noun phrases with at most one adjective. Replace pronouns with the person or thing they refer to when the text or HISTORY makes it clear.
3. The predicate is the root of the verb with its preposition. Leave out auxiliary verbs and negations ("did not see" becomes "see").
4. Modality is a list of tags from: assertion, negation, possibility, speculation, question, hypothetical, contradiction, future, past, present. A negated sentence gets "negation". A plain factual sentence gets "assertion".
5. Spoken lines become a statement with predicate "said" and the quoted words as the object.
6. sentence is the verbatim sentence the statement comes from.
7. explanation says why subject, predicate, object and modality were chosen.
8. Narration without any statement yields an empty list.

Return a JSON object of the form {"statements": [...]}.`)

	if custom := stringValue(context, "custom_prompt"); custom != "" {
		b.WriteString("\n\n")
		b.WriteString(custom)
	}

	userPrompt := b.String()
	logPrompts(loggerFrom(context), "extract_statements", sysPrompt, userPrompt)

	return []types.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}
