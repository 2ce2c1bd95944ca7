package prompts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// ErrMissingStatements is returned when resolution is rendered without statements.
var ErrMissingStatements = errors.New("prompt context requires statements")

// StatementContext is the view of a statement shown to the resolver.
type StatementContext struct {
	ID        int      `yaml:"id"`
	Subject   string   `yaml:"subject"`
	Predicate string   `yaml:"predicate"`
	Object    string   `yaml:"object"`
	Modality  []string `yaml:"modality,flow"`
	Sentence  string   `yaml:"sentence"`
}

// NewStatementContexts converts statements to their prompt view.
func NewStatementContexts(statements []*types.Statement) []StatementContext {
	out := make([]StatementContext, 0, len(statements))
	for _, s := range statements {
		out = append(out, StatementContext{
			ID:        s.ID,
			Subject:   s.Subject,
			Predicate: s.Predicate,
			Object:    s.Object,
			Modality:  s.Modality,
			Sentence:  s.Sentence,
		})
	}
	return out
}

// resolveEntitiesPrompt renders the coreference and classification request.
//
// Context keys: statements ([]StatementContext, required), categories
// (string, YAML rendered by the registry), text (string), custom_prompt.
func resolveEntitiesPrompt(context map[string]any) ([]types.Message, error) {
	statements, _ := context["statements"].([]StatementContext)
	if len(statements) == 0 {
		return nil, ErrMissingStatements
	}

	statementsYAML, err := ToPromptYAML(statements)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal statements: %w", err)
	}

	sysPrompt := `You are an expert in coreference resolution and entity classification. You merge every mention of the same real-world entity into one entity with a canonical name.`

	var b strings.Builder
	if text := strings.TrimSpace(stringValue(context, "text")); text != "" {
		fmt.Fprintf(&b, "<TEXT>\n%s\n</TEXT>\n", text)
	}
	fmt.Fprintf(&b, "<STATEMENTS>\n%s\n</STATEMENTS>\n", statementsYAML)
	if categories := strings.TrimSpace(stringValue(context, "categories")); categories != "" {
		fmt.Fprintf(&b, "<CATEGORIES>\n%s\n</CATEGORIES>\n", categories)
	}

	b.WriteString(`
Resolve the subjects and objects of the STATEMENTS to entities. TEXT is the passage the statements come from.

Instructions:
1. Identify every distinct entity mentioned as a subject or object.
2. Merge all references to the same entity. If the statements mention "the big cat" and later "the cat" or "it" for the same animal, return one entity named "big cat" with aliases "the big cat", "the cat" and "it".
3. name is the most specific, fully qualified name ("Dr. John Watson" rather than "Watson" or "he"). Never use a bare pronoun or a vague label as name.
4. aliases lists every surface form used for the entity, pronouns included.
5. category is one of the CATEGORIES names. Use "Entity" when none fits. Put the fields the category lists into attributes; scores are numbers between 0 and 1.
6. description says who or what the entity is according to the statements. explanation says how it was identified and why the name and aliases were chosen.
7. subject_statement_ids and object_statement_ids list the ids of the statements where the entity is subject or object. Only use ids from STATEMENTS. Every entity needs at least one id.

Return a JSON object of the form {"entities": [...]}.`)

	if custom := stringValue(context, "custom_prompt"); custom != "" {
		b.WriteString("\n\n")
		b.WriteString(custom)
	}

	userPrompt := b.String()
	logPrompts(loggerFrom(context), "resolve_entities", sysPrompt, userPrompt)

	return []types.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}
