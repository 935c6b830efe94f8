package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactString(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		input string
		want  string
	}{
		{
			name:  "email and phone in one string",
			mode:  ModeBasic,
			input: "call me at (415) 555-1212 or bob@x.io",
			want:  "call me at [PHONE] or [EMAIL]",
		},
		{
			name:  "dash separated phone",
			mode:  ModeBasic,
			input: "reach me on 415-555-1212",
			want:  "reach me on [PHONE]",
		},
		{
			name:  "mode off returns input unchanged",
			mode:  ModeOff,
			input: "call me at (415) 555-1212 or bob@x.io",
			want:  "call me at (415) 555-1212 or bob@x.io",
		},
		{
			name:  "no PII is unchanged",
			mode:  ModeBasic,
			input: "hello there",
			want:  "hello there",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.mode)
			assert.Equal(t, tt.want, r.RedactString(tt.input))
		})
	}
}

func TestRedactIdempotent(t *testing.T) {
	r := New(ModeBasic)
	input := "call me at (415) 555-1212 or bob@x.io"
	once := r.RedactString(input)
	twice := r.RedactString(once)
	assert.Equal(t, once, twice)
}

func TestRedactPayloadPreservesStructure(t *testing.T) {
	r := New(ModeBasic)
	payload := map[string]any{
		"speaker": "agent",
		"text":    "email me at a@b.com",
		"meta": map[string]any{
			"phone": "415-555-1212",
			"count": 3,
		},
		"tags": []any{"a@b.com", "keep"},
	}

	out := r.RedactPayload(payload)

	assert.Equal(t, "agent", out["speaker"])
	assert.Equal(t, "email me at [EMAIL]", out["text"])

	meta := out["meta"].(map[string]any)
	assert.Equal(t, "[PHONE]", meta["phone"])
	assert.Equal(t, 3, meta["count"])

	tags := out["tags"].([]any)
	assert.Equal(t, "[EMAIL]", tags[0])
	assert.Equal(t, "keep", tags[1])
}

func TestRedactPayloadOffModeUnchanged(t *testing.T) {
	r := New(ModeOff)
	payload := map[string]any{"text": "bob@x.io"}
	out := r.RedactPayload(payload)
	assert.Equal(t, payload["text"], out["text"])
}
