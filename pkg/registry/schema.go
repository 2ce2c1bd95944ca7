package registry

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldKind is the value type of a schema field.
type FieldKind string

const (
	KindString   FieldKind = "string"
	KindInt      FieldKind = "int"
	KindFloat    FieldKind = "float"
	KindBool     FieldKind = "bool"
	KindDateTime FieldKind = "datetime"
)

// FieldSpec describes one category-specific attribute or edge property.
type FieldSpec struct {
	Name        string    `yaml:"name" json:"name" validate:"required"`
	Kind        FieldKind `yaml:"kind,omitempty" json:"kind,omitempty" validate:"omitempty,oneof=string int float bool datetime"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	// Enum restricts a string field to the listed values.
	Enum []string `yaml:"enum,omitempty" json:"enum,omitempty"`
	// Score marks a float field normalized to [0, 1].
	Score bool `yaml:"score,omitempty" json:"score,omitempty"`
}

// CategorySchema is an entity category with its attribute fields.
type CategorySchema struct {
	Name        string      `yaml:"name" json:"name" validate:"required"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty" validate:"dive"`
}

// Field looks up a field by name.
func (c CategorySchema) Field(name string) (FieldSpec, bool) {
	return findField(c.Fields, name)
}

// EdgeTypeSchema is a typed relation between entities with its properties.
type EdgeTypeSchema struct {
	Name        string      `yaml:"name" json:"name" validate:"required"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty" validate:"dive"`
}

// ScoreFields lists the properties constrained to [0, 1].
func (e EdgeTypeSchema) ScoreFields() []string {
	var names []string
	for _, f := range e.Fields {
		if f.Score {
			names = append(names, f.Name)
		}
	}
	return names
}

func findField(fields []FieldSpec, name string) (FieldSpec, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// CheckScore returns ErrScoreOutOfRange unless v is within [0, 1].
func CheckScore(field string, v float64) error {
	if math.IsNaN(v) || validate.Var(v, "gte=0,lte=1") != nil {
		return invalid(field, v, ErrScoreOutOfRange)
	}
	return nil
}

// coerce checks value against the field and returns it in canonical form.
// JSON numbers arrive as float64, so ints are accepted when integral.
func (f FieldSpec) coerce(path string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	kind := f.Kind
	if kind == "" {
		kind = KindString
		if f.Score {
			kind = KindFloat
		}
	}

	switch kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, invalid(path, value, ErrInvalidValue)
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, s) {
			return nil, invalid(path, value, fmt.Errorf("%w: must be one of %v", ErrInvalidValue, f.Enum))
		}
		return s, nil
	case KindInt:
		n, ok := toFloat(value)
		if !ok || n != math.Trunc(n) {
			return nil, invalid(path, value, ErrInvalidValue)
		}
		return int64(n), nil
	case KindFloat:
		n, ok := toFloat(value)
		if !ok {
			return nil, invalid(path, value, ErrInvalidValue)
		}
		if f.Score {
			if err := CheckScore(path, n); err != nil {
				return nil, err
			}
		}
		return n, nil
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, invalid(path, value, ErrInvalidValue)
		}
		return b, nil
	case KindDateTime:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			// Narratives rarely give exact timestamps, so free text is kept.
			return v, nil
		default:
			return nil, invalid(path, value, ErrInvalidValue)
		}
	default:
		return nil, invalid(path, kind, ErrInvalidSchema)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}
