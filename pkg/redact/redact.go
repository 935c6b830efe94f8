// Package redact applies PII substitution over structured payloads (C2).
package redact

import (
	"regexp"
)

// Mode selects whether redaction runs at all.
type Mode string

const (
	ModeOff   Mode = "off"
	ModeBasic Mode = "basic"
)

// compiledPattern holds a pre-compiled regex pattern with its replacement,
// mirroring the shape of a masking-service pattern entry: name, compiled
// regex, replacement token.
type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// builtinPatterns are compiled once at package init. Order matters: emails
// are substituted before phone numbers so an email-like token embedded next
// to digits isn't mistaken for a phone number.
var builtinPatterns = []compiledPattern{
	{
		name:        "email",
		regex:       regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`),
		replacement: "[EMAIL]",
	},
	{
		name:        "phone_na",
		regex:       regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]\d{4}|\d{3}[-.\s]\d{3}[-.\s]\d{4}`),
		replacement: "[PHONE]",
	},
}

// Redactor walks a structured payload and substitutes PII-like substrings
// within every string leaf. It is stateless and safe for concurrent use.
type Redactor struct {
	mode Mode
}

// New creates a Redactor for the given mode. Only ModeOff disables
// redaction; an unrecognized mode redacts exactly like ModeBasic.
func New(mode Mode) *Redactor {
	return &Redactor{mode: mode}
}

// RedactString applies all builtin substitutions to a single string.
// Redaction is deterministic and idempotent: RedactString(RedactString(x)) == RedactString(x).
func (r *Redactor) RedactString(s string) string {
	if r.mode == ModeOff {
		return s
	}
	for _, p := range builtinPatterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// RedactPayload walks a structured payload (nested maps/slices produced by
// encoding/json unmarshaling into map[string]any) and returns a copy with
// every string leaf redacted; the input is not modified. Structure and key
// order are preserved (Go maps have no
// intrinsic order, but the values themselves are unchanged in shape — only
// string leaves are rewritten). Non-string leaves are untouched.
func (r *Redactor) RedactPayload(payload map[string]any) map[string]any {
	if r.mode == ModeOff || payload == nil {
		return payload
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = r.redactValue(v)
	}
	return out
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.RedactString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = r.redactValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = r.redactValue(vv)
		}
		return out
	default:
		return v
	}
}
