package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// core keys of an entity object. Anything else at the top level is treated
// as a category attribute.
var coreKeys = map[string]struct{}{
	"name": {}, "canonical_name": {}, "aliases": {}, "type": {}, "type_": {},
	"category": {}, "description": {}, "explanation": {}, "attributes": {},
	"subject_statement_ids": {}, "object_statement_ids": {}, "id": {},
}

// Parse decodes a collaborator reply into entity drafts. It accepts
// {"entities": [...]}, a bare array or a single entity object and never
// fails on missing fields.
func Parse(raw string) ([]types.EntityDraft, error) {
	var decoded any
	if err := nlp.UnmarshalFlexible(raw, &decoded); err != nil {
		return nil, err
	}

	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		if list, ok := v["entities"]; ok {
			arr, ok := list.([]any)
			if !ok && list != nil {
				return nil, fmt.Errorf("%w: entities is %T", nlp.ErrInvalidJSON, list)
			}
			items = arr
		} else if _, ok := v["name"]; ok {
			items = []any{v}
		}
	case nil:
	default:
		return nil, fmt.Errorf("%w: unexpected top-level %T", nlp.ErrInvalidJSON, decoded)
	}

	drafts := make([]types.EntityDraft, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			drafts = append(drafts, draftFromMap(obj))
		}
	}
	return drafts, nil
}

func draftFromMap(m map[string]any) types.EntityDraft {
	d := types.EntityDraft{
		Name:                firstString(m, "name", "canonical_name"),
		Aliases:             asStrings(m["aliases"]),
		Type:                firstString(m, "type", "type_"),
		Category:            firstString(m, "category"),
		Description:         firstString(m, "description"),
		Explanation:         firstString(m, "explanation"),
		SubjectStatementIDs: asInts(m["subject_statement_ids"]),
		ObjectStatementIDs:  asInts(m["object_statement_ids"]),
	}

	attrs := make(map[string]any)
	if nested, ok := m["attributes"].(map[string]any); ok {
		for k, v := range nested {
			attrs[k] = v
		}
	}
	for k, v := range m {
		if _, core := coreKeys[k]; !core {
			attrs[k] = v
		}
	}
	if len(attrs) > 0 {
		d.Attributes = attrs
	}
	return d
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case nil:
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		default:
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return ""
}

func asStrings(v any) []string {
	switch s := v.(type) {
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
			if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
				out = append(out, strings.TrimSpace(str))
			}
		}
		return out
	}
	return nil
}

// asInts accepts numbers and numeric strings, skipping anything else.
func asInts(v any) []int {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil
		}
		list = []any{v}
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		switch n := item.(type) {
		case float64:
			if n == float64(int(n)) {
				out = append(out, int(n))
			}
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				out = append(out, i)
			}
		}
	}
	return out
}
