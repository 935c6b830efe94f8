package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callpath/backbone/pkg/models"
)

type fakeLoader struct {
	rules []models.Rule
}

func (f *fakeLoader) ActiveRulesForTenant(ctx context.Context, tenant *string) ([]models.Rule, error) {
	return f.rules, nil
}

func TestEvaluateProhibitedClaim(t *testing.T) {
	loader := &fakeLoader{rules: []models.Rule{
		{
			ID:      "guarantee_same_day",
			Kind:    models.RuleProhibitedClaim,
			Enabled: true,
			Config: models.RuleConfig{
				Patterns: []string{"guarantee.*today"},
				Severity: "critical",
				Message:  "Prohibited same-day guarantee claim",
			},
		},
	}}
	e := New(loader)

	out, err := e.Evaluate(context.Background(), nil, "I guarantee someone today")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.EventRuleAlert, out[0].Type)
	assert.Equal(t, "critical", out[0].Payload["severity"])
	assert.Equal(t, "guarantee_same_day", out[0].Payload["rule_id"])
}

func TestEvaluateRequiredQuestion(t *testing.T) {
	loader := &fakeLoader{rules: []models.Rule{
		{
			ID:      "confirm_address",
			Kind:    models.RuleRequiredQuestion,
			Enabled: true,
			Config: models.RuleConfig{
				SatisfyPatterns: []string{"what.?s your address"},
				Question:        "Did you confirm the address?",
			},
		},
	}}
	e := New(loader)

	out, err := e.Evaluate(context.Background(), nil, "so what's your address")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.EventRequiredQuestionStatus, out[0].Type)
	assert.Equal(t, true, out[0].Payload["satisfied"])
}

func TestEvaluateFirstPatternWins(t *testing.T) {
	loader := &fakeLoader{rules: []models.Rule{
		{
			ID:   "emergency_urgency",
			Kind: models.RuleKeywordAlert,
			Enabled: true,
			Config: models.RuleConfig{
				Patterns: []string{"emergency", "urgent", "flooding"},
				Severity: "high",
			},
		},
	}}
	e := New(loader)

	out, err := e.Evaluate(context.Background(), nil, "there is flooding")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "flooding", out[0].Payload["matched_pattern"])
}

func TestEvaluateMalformedPatternSkipped(t *testing.T) {
	loader := &fakeLoader{rules: []models.Rule{
		{
			ID:      "broken",
			Kind:    models.RuleKeywordAlert,
			Enabled: true,
			Config: models.RuleConfig{
				Patterns: []string{"(unterminated", "urgent"},
				Severity: "low",
			},
		},
	}}
	e := New(loader)

	out, err := e.Evaluate(context.Background(), nil, "this is urgent")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "urgent", out[0].Payload["matched_pattern"])
}

func TestEvaluateDisabledRuleSkipped(t *testing.T) {
	loader := &fakeLoader{rules: []models.Rule{
		{
			ID:      "disabled",
			Kind:    models.RuleKeywordAlert,
			Enabled: false,
			Config: models.RuleConfig{
				Patterns: []string{"anything"},
				Severity: "low",
			},
		},
	}}
	e := New(loader)

	out, err := e.Evaluate(context.Background(), nil, "anything")
	require.NoError(t, err)
	assert.Empty(t, out)
}
