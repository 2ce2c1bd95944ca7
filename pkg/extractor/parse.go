package extractor

import (
	"fmt"
	"strings"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// Parse decodes a collaborator reply into drafts. It accepts {"statements":
// [...]}, a bare array or a single statement object. Missing fields default
// to empty values and drafts without a subject or predicate are dropped and
// counted. The object may be empty for intransitive verbs.
func Parse(raw string) ([]types.StatementDraft, int, error) {
	var decoded any
	if err := nlp.UnmarshalFlexible(raw, &decoded); err != nil {
		return nil, 0, err
	}

	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		if list, ok := v["statements"]; ok {
			arr, ok := list.([]any)
			if !ok && list != nil {
				return nil, 0, fmt.Errorf("%w: statements is %T", nlp.ErrInvalidJSON, list)
			}
			items = arr
		} else if _, ok := v["subject"]; ok {
			items = []any{v}
		}
	case nil:
	default:
		return nil, 0, fmt.Errorf("%w: unexpected top-level %T", nlp.ErrInvalidJSON, decoded)
	}

	drafts := make([]types.StatementDraft, 0, len(items))
	discarded := 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			discarded++
			continue
		}
		d := draftFromMap(obj)
		if d.Empty() {
			discarded++
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts, discarded, nil
}

func draftFromMap(m map[string]any) types.StatementDraft {
	object := asString(m["object"])
	if object == "" {
		object = asString(m["object_"])
	}
	return types.StatementDraft{
		Subject:     asString(m["subject"]),
		Predicate:   asString(m["predicate"]),
		Object:      object,
		Modality:    asStrings(m["modality"]),
		Sentence:    asString(m["sentence"]),
		Explanation: asString(m["explanation"]),
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

// asStrings accepts a list or a comma separated string.
func asStrings(v any) []string {
	switch s := v.(type) {
	case nil:
		return nil
	case string:
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str := asString(item); str != "" {
				out = append(out, str)
			}
		}
		return out
	default:
		return []string{asString(s)}
	}
}
