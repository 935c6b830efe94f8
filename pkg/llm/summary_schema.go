package llm

import (
	"fmt"
	"strings"
)

// CallSummarySchema is the structured output contract for the end-of-call
// summary (spec.md §4.4, used to populate Session.Summary/Disposition).
type CallSummarySchema struct{}

var _ Schema = CallSummarySchema{}

func (CallSummarySchema) Name() string { return "call_summary" }

func (CallSummarySchema) Fields() []Field {
	return []Field{
		{Name: "summary", Type: FieldString, Required: true},
		{Name: "disposition", Type: FieldString, Required: true},
	}
}

var validDispositions = map[string]bool{
	"Booked": true,
	"Lead":   true,
	"Spam":   true,
}

// Validate accepts "summary" as either a string or a list of strings; a
// list is normalized into newline-joined "- <line>" bullets, since models
// asked for a free-form recap sometimes return one regardless of the
// injected system prompt's field description.
func (s CallSummarySchema) Validate(raw map[string]any) (map[string]any, error) {
	disposition, ok := raw["disposition"].(string)
	if !ok {
		return nil, fmt.Errorf("field %q must be a string", "disposition")
	}
	if !validDispositions[disposition] {
		return nil, fmt.Errorf("field %q must be one of Booked, Lead, Spam, got %q", "disposition", disposition)
	}

	summary, err := normalizeSummary(raw["summary"])
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"summary":     summary,
		"disposition": disposition,
	}, nil
}

func normalizeSummary(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []any:
		lines := make([]string, 0, len(val))
		for _, item := range val {
			line, ok := item.(string)
			if !ok {
				return "", fmt.Errorf("field %q list items must be strings", "summary")
			}
			lines = append(lines, "- "+line)
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "", fmt.Errorf("field %q must be a string or a list of strings", "summary")
	}
}
