// Package prompts builds the chat messages sent to the extraction and
// resolution collaborators, and the JSON schemas their replies must follow.
package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// PromptFunction renders messages from a context map.
type PromptFunction func(context map[string]any) ([]types.Message, error)

// PromptVersion is a callable prompt.
type PromptVersion interface {
	Call(context map[string]any) ([]types.Message, error)
}

type promptVersionImpl struct {
	fn PromptFunction
}

// Call executes the prompt function with the given context.
func (p *promptVersionImpl) Call(context map[string]any) ([]types.Message, error) {
	messages, err := p.fn(context)
	if err != nil {
		return nil, err
	}

	// Add unicode preservation instruction to system messages
	for i, msg := range messages {
		if msg.Role == nlp.RoleSystem {
			messages[i].Content += "\nDo not escape unicode characters.\n"
		}
	}
	return messages, nil
}

// NewPromptVersion creates a new PromptVersion from a function.
func NewPromptVersion(fn PromptFunction) PromptVersion {
	return &promptVersionImpl{fn: fn}
}

// Library holds the prompts used by the pipeline stages.
type Library struct {
	ExtractStatements PromptVersion
	ResolveEntities   PromptVersion
}

// NewLibrary returns the default prompt set.
func NewLibrary() *Library {
	return &Library{
		ExtractStatements: NewPromptVersion(extractStatementsPrompt),
		ResolveEntities:   NewPromptVersion(resolveEntitiesPrompt),
	}
}

// StatementsResponse wraps the statement list. Structured output requires an
// object at the top level.
type StatementsResponse struct {
	Statements []types.StatementDraft `json:"statements" jsonschema:"description=Every atomic statement found in the text"`
}

// EntitiesResponse wraps the entity list.
type EntitiesResponse struct {
	Entities []types.EntityDraft `json:"entities" jsonschema:"description=Every distinct entity mentioned by the statements"`
}

// StatementsSchema returns the JSON Schema for StatementsResponse.
func StatementsSchema() *jsonschema.Schema {
	return nlp.GenerateSchema[StatementsResponse]()
}

// EntitiesSchema returns the JSON Schema for EntitiesResponse.
func EntitiesSchema() *jsonschema.Schema {
	return nlp.GenerateSchema[EntitiesResponse]()
}

// ToPromptJSON serializes data to JSON for use in prompts. Non-ASCII text is
// kept as is.
func ToPromptJSON(data any, indent int) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(data); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// ToPromptYAML serializes data to YAML for use in prompts.
func ToPromptYAML(data any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func stringValue(context map[string]any, key string) string {
	v, ok := context[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func loggerFrom(context map[string]any) *slog.Logger {
	if l, ok := context["logger"].(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// logPrompts prints the rendered prompts when DEBUG_LLM_PROMPTS=true.
func logPrompts(logger *slog.Logger, name, sysPrompt, userPrompt string) {
	if os.Getenv("DEBUG_LLM_PROMPTS") != "true" {
		return
	}
	logger.Debug("Generated prompts", "prompt", name)
	fmt.Println("=== SYSTEM PROMPT ===")
	fmt.Println(sysPrompt)
	fmt.Println("=== USER PROMPT ===")
	fmt.Println(userPrompt)
	fmt.Println("=== END PROMPTS ===")
}
