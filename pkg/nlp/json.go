package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/noirgraph/pkg/types"
)

var (
	thinkTags = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// RemoveThinkTags removes <think> tags and everything in between them from a string.
func RemoveThinkTags(input string) string {
	return thinkTags.ReplaceAllString(input, "")
}

// StripCodeFence unwraps a reply wrapped in a single markdown code block.
func StripCodeFence(input string) string {
	input = strings.TrimSpace(input)
	if m := codeFence.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return input
}

// GenerateSchema reflects a closed JSON Schema for T with every definition
// inlined, the shape strict structured output expects.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// UnmarshalFlexible decodes a model reply into out. It tolerates think tags,
// code fences, JSON encoded as a string and malformed JSON that jsonrepair
// can fix.
func UnmarshalFlexible(input string, out any) error {
	input = StripCodeFence(RemoveThinkTags(input))

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("%w: repair failed: %v", ErrInvalidJSON, err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

// ChatJSON asks for structured output and decodes the reply into out.
func ChatJSON(ctx context.Context, client Client, messages []types.Message, schema any, out any) (*types.Response, error) {
	resp, err := client.ChatWithStructuredOutput(ctx, messages, schema)
	if err != nil {
		return nil, err
	}
	if err := UnmarshalFlexible(resp.Content, out); err != nil {
		return resp, err
	}
	return resp, nil
}
