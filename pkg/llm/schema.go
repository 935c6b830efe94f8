package llm

import "fmt"

// FieldType is the scalar type a Schema field is validated against.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldFloat  FieldType = "float"
)

// Field describes one required (or optional) field of a Schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// Schema validates and (optionally) normalizes a chat-completion's parsed
// JSON content into the shape a component expects.
type Schema interface {
	// Name identifies the schema for error messages and logging.
	Name() string
	// Fields lists the fields enumerated in the injected system prompt.
	Fields() []Field
	// Validate checks raw against the schema's rules and returns the
	// (possibly normalized) object, or an error if raw does not satisfy it.
	Validate(raw map[string]any) (map[string]any, error)
}

// validateScalarFields checks that every required field in fields is
// present in raw with the expected scalar type. It does not mutate raw.
func validateScalarFields(fields []Field, raw map[string]any) error {
	for _, f := range fields {
		v, ok := raw[f.Name]
		if !ok {
			if f.Required {
				return fmt.Errorf("missing required field %q", f.Name)
			}
			continue
		}
		switch f.Type {
		case FieldString:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("field %q must be a string", f.Name)
			}
		case FieldFloat:
			if _, ok := v.(float64); !ok {
				return fmt.Errorf("field %q must be a number", f.Name)
			}
		}
	}
	return nil
}
