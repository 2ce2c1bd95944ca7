package driver

import (
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// TypeConversionError represents an error during type conversion from database types.
type TypeConversionError struct {
	Expected string
	Actual   string
	Field    string
}

func (e *TypeConversionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("type conversion error for field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
	}
	return fmt.Sprintf("type conversion error: expected %s, got %s", e.Expected, e.Actual)
}

// NewTypeConversionError creates a new TypeConversionError.
func NewTypeConversionError(expected, actual, field string) *TypeConversionError {
	return &TypeConversionError{
		Expected: expected,
		Actual:   actual,
		Field:    field,
	}
}

// AsRecordSlice safely converts an interface{} to []*db.Record.
func AsRecordSlice(v any) ([]*db.Record, bool) {
	if v == nil {
		return nil, false
	}
	records, ok := v.([]*db.Record)
	return records, ok
}

// AsDBNode safely converts an interface{} to dbtype.Node.
func AsDBNode(v any) (dbtype.Node, bool) {
	if v == nil {
		return dbtype.Node{}, false
	}
	node, ok := v.(dbtype.Node)
	return node, ok
}

// AsString safely converts an interface{} to string.
func AsString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// AsInt64 converts the integer types the driver and the in-memory store
// produce to int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

// AsFloat64 safely converts an interface{} to float64.
func AsFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	return 0, false
}

// AsStringSlice accepts []string or a []any of strings, which is how Bolt
// returns list properties.
func AsStringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

// AsFloat32Slice converts a list of floats to an embedding.
func AsFloat32Slice(v any) ([]float32, bool) {
	switch s := v.(type) {
	case []float32:
		return s, true
	case []float64:
		out := make([]float32, len(s))
		for i, f := range s {
			out[i] = float32(f)
		}
		return out, true
	case []any:
		out := make([]float32, 0, len(s))
		for _, item := range s {
			f, ok := AsFloat64(item)
			if !ok {
				return nil, false
			}
			out = append(out, float32(f))
		}
		return out, true
	}
	return nil, false
}

// AsIntSlice converts a list of integers to []int.
func AsIntSlice(v any) ([]int, bool) {
	switch s := v.(type) {
	case []int:
		return s, true
	case []int64:
		out := make([]int, len(s))
		for i, n := range s {
			out[i] = int(n)
		}
		return out, true
	case []any:
		out := make([]int, 0, len(s))
		for _, item := range s {
			n, ok := AsInt64(item)
			if !ok {
				return nil, false
			}
			out = append(out, int(n))
		}
		return out, true
	}
	return nil, false
}

// MustRecordSlice converts an interface{} to []*db.Record or returns an error.
func MustRecordSlice(v any, field string) ([]*db.Record, error) {
	records, ok := AsRecordSlice(v)
	if !ok {
		return nil, NewTypeConversionError("[]*db.Record", fmt.Sprintf("%T", v), field)
	}
	return records, nil
}

// MustDBNode converts an interface{} to dbtype.Node or returns an error.
func MustDBNode(v any, field string) (dbtype.Node, error) {
	node, ok := AsDBNode(v)
	if !ok {
		return dbtype.Node{}, NewTypeConversionError("dbtype.Node", fmt.Sprintf("%T", v), field)
	}
	return node, nil
}

// MustString converts an interface{} to string or returns an error.
func MustString(v any, field string) (string, error) {
	s, ok := AsString(v)
	if !ok {
		return "", NewTypeConversionError("string", fmt.Sprintf("%T", v), field)
	}
	return s, nil
}

// propString reads an optional string property.
func propString(props map[string]any, key string) string {
	s, _ := AsString(props[key])
	return s
}

func propInt(props map[string]any, key string) int {
	n, _ := AsInt64(props[key])
	return int(n)
}

func propStrings(props map[string]any, key string) []string {
	s, _ := AsStringSlice(props[key])
	return s
}

func propVector(props map[string]any, key string) []float32 {
	v, _ := AsFloat32Slice(props[key])
	return v
}

func propInts(props map[string]any, key string) []int {
	v, _ := AsIntSlice(props[key])
	return v
}

// toPropertyValue maps an attribute value onto something a graph property can
// hold: primitives and homogeneous lists pass through, anything else is
// stored as JSON text.
func toPropertyValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, int, int32, int64, float32, float64:
		return x
	case []string, []int64, []float64:
		return x
	case []any:
		if s, ok := AsStringSlice(x); ok {
			return s
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// vectorParam stores an empty embedding as null so the node is left out of
// the vector index instead of failing the dimension check.
func vectorParam(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return v
}
