package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callpath/backbone/pkg/models"
	"github.com/callpath/backbone/pkg/store"
	testdb "github.com/callpath/backbone/test/database"
)

func TestRuleStoreActiveRulesForTenantReturnsGlobalAndTenantScoped(t *testing.T) {
	ctx := context.Background()
	client := testdb.NewTestClient(t)
	ruleStore := store.NewRuleStore(client.Pool)

	globalRulesetID := uuid.New().String()
	_, err := client.Pool.Exec(ctx,
		`INSERT INTO rulesets (id, status, version) VALUES ($1, 'active', 1)`, globalRulesetID)
	require.NoError(t, err)

	cfg, err := json.Marshal(models.RuleConfig{Patterns: []string{"lawsuit"}, Severity: "high", Message: "legal threat"})
	require.NoError(t, err)
	_, err = client.Pool.Exec(ctx,
		`INSERT INTO rules (id, ruleset_id, kind, config, enabled) VALUES ($1, $2, $3, $4, true)`,
		uuid.New().String(), globalRulesetID, string(models.RuleKeywordAlert), cfg)
	require.NoError(t, err)

	tenant := "acme"
	tenantRulesetID := uuid.New().String()
	_, err = client.Pool.Exec(ctx,
		`INSERT INTO rulesets (id, tenant_id, status, version) VALUES ($1, $2, 'active', 1)`, tenantRulesetID, tenant)
	require.NoError(t, err)
	tenantCfg, err := json.Marshal(models.RuleConfig{Patterns: []string{"refund"}, Severity: "medium", Message: "refund mentioned"})
	require.NoError(t, err)
	_, err = client.Pool.Exec(ctx,
		`INSERT INTO rules (id, ruleset_id, kind, config, enabled) VALUES ($1, $2, $3, $4, true)`,
		uuid.New().String(), tenantRulesetID, string(models.RuleKeywordAlert), tenantCfg)
	require.NoError(t, err)

	otherTenant := "other"
	otherRulesetID := uuid.New().String()
	_, err = client.Pool.Exec(ctx,
		`INSERT INTO rulesets (id, tenant_id, status, version) VALUES ($1, $2, 'active', 1)`, otherRulesetID, otherTenant)
	require.NoError(t, err)
	otherCfg, err := json.Marshal(models.RuleConfig{Patterns: []string{"cancel"}, Severity: "low", Message: "not ours"})
	require.NoError(t, err)
	_, err = client.Pool.Exec(ctx,
		`INSERT INTO rules (id, ruleset_id, kind, config, enabled) VALUES ($1, $2, $3, $4, true)`,
		uuid.New().String(), otherRulesetID, string(models.RuleKeywordAlert), otherCfg)
	require.NoError(t, err)

	rules, err := ruleStore.ActiveRulesForTenant(ctx, &tenant)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	var messages []string
	for _, r := range rules {
		messages = append(messages, r.Config.Message)
	}
	assert.ElementsMatch(t, []string{"legal threat", "refund mentioned"}, messages)
}

func TestRuleStoreSkipsDisabledRules(t *testing.T) {
	ctx := context.Background()
	client := testdb.NewTestClient(t)
	ruleStore := store.NewRuleStore(client.Pool)

	rulesetID := uuid.New().String()
	_, err := client.Pool.Exec(ctx,
		`INSERT INTO rulesets (id, status, version) VALUES ($1, 'active', 1)`, rulesetID)
	require.NoError(t, err)

	cfg, err := json.Marshal(models.RuleConfig{Patterns: []string{"x"}, Severity: "low", Message: "disabled"})
	require.NoError(t, err)
	_, err = client.Pool.Exec(ctx,
		`INSERT INTO rules (id, ruleset_id, kind, config, enabled) VALUES ($1, $2, $3, $4, false)`,
		uuid.New().String(), rulesetID, string(models.RuleKeywordAlert), cfg)
	require.NoError(t, err)

	rules, err := ruleStore.ActiveRulesForTenant(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
