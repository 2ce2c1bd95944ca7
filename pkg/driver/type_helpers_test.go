package driver

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeConversionError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *TypeConversionError
		expected string
	}{
		{
			name:     "with field",
			err:      &TypeConversionError{Expected: "string", Actual: "int64", Field: "chunk_id"},
			expected: `type conversion error for field "chunk_id": expected string, got int64`,
		},
		{
			name:     "without field",
			err:      &TypeConversionError{Expected: "dbtype.Node", Actual: "nil"},
			expected: "type conversion error: expected dbtype.Node, got nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAsStringSlice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  any
		want   []string
		wantOK bool
	}{
		{"string slice", []string{"a", "b"}, []string{"a", "b"}, true},
		{"bolt list", []any{"a", "b"}, []string{"a", "b"}, true},
		{"mixed list", []any{"a", 1}, nil, false},
		{"nil", nil, nil, false},
		{"scalar", "a", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := AsStringSlice(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAsFloat32Slice(t *testing.T) {
	t.Parallel()

	got, ok := AsFloat32Slice([]any{0.5, float64(1)})
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, 1}, got)

	got, ok = AsFloat32Slice([]float64{0.25})
	require.True(t, ok)
	assert.Equal(t, []float32{0.25}, got)

	_, ok = AsFloat32Slice([]any{"x"})
	assert.False(t, ok)
}

func TestAsIntSlice(t *testing.T) {
	t.Parallel()

	got, ok := AsIntSlice([]any{int64(3), int64(4)})
	require.True(t, ok)
	assert.Equal(t, []int{3, 4}, got)

	_, ok = AsIntSlice([]any{1.5})
	assert.False(t, ok)
}

func TestMustDBNode(t *testing.T) {
	t.Parallel()

	node := dbtype.Node{Labels: []string{"Chunk"}, Props: map[string]any{"chunk_id": "d_0"}}
	got, err := MustDBNode(node, "c")
	require.NoError(t, err)
	assert.Equal(t, "d_0", got.Props["chunk_id"])

	_, err = MustDBNode("not a node", "c")
	var convErr *TypeConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "c", convErr.Field)
}

func TestToPropertyValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x", toPropertyValue("x"))
	assert.Equal(t, true, toPropertyValue(true))
	assert.Equal(t, []string{"a"}, toPropertyValue([]any{"a"}))
	assert.JSONEq(t, `{"k":1}`, toPropertyValue(map[string]any{"k": 1}).(string))
	assert.Nil(t, toPropertyValue(nil))
	assert.Nil(t, vectorParam(nil))
}
