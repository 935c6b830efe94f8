package llm

import "fmt"

// GuidanceSchema is the structured output contract for live in-call
// guidance suggestions (spec.md §4.4, server.guidance_update payload).
type GuidanceSchema struct{}

var _ Schema = GuidanceSchema{}

func (GuidanceSchema) Name() string { return "guidance" }

func (GuidanceSchema) Fields() []Field {
	return []Field{
		{Name: "suggested_reply", Type: FieldString, Required: true},
		{Name: "rationale", Type: FieldString, Required: true},
		{Name: "confidence", Type: FieldFloat, Required: true},
	}
}

func (s GuidanceSchema) Validate(raw map[string]any) (map[string]any, error) {
	if err := validateScalarFields(s.Fields(), raw); err != nil {
		return nil, err
	}
	confidence := raw["confidence"].(float64)
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("field %q must be in [0, 1], got %v", "confidence", confidence)
	}
	return map[string]any{
		"suggested_reply": raw["suggested_reply"],
		"rationale":       raw["rationale"],
		"confidence":      confidence,
	}, nil
}
