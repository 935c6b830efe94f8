package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callpath/backbone/pkg/models"
)

// RuleStore loads RuleSets and Rules for the rule engine (C3). Rules are
// configuration, not events; this store is read-only from the engine's
// point of view and may be cached at the caller's discretion (spec.md §3).
type RuleStore struct {
	pool *pgxpool.Pool
}

// NewRuleStore wraps a connection pool as a RuleStore.
func NewRuleStore(pool *pgxpool.Pool) *RuleStore {
	return &RuleStore{pool: pool}
}

// ActiveRulesForTenant returns every enabled rule belonging to an active
// ruleset whose scope is either global (all tags null) or matches the given
// tenant. Matching other tags is reserved but not required (spec.md §4.3).
func (s *RuleStore) ActiveRulesForTenant(ctx context.Context, tenant *string) ([]models.Rule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.ruleset_id, r.kind, r.config, r.enabled
		 FROM rules r
		 JOIN rulesets rs ON rs.id = r.ruleset_id
		 WHERE rs.status = 'active'
		   AND r.enabled = true
		   AND (
		        (rs.tenant_id IS NULL AND rs.org_id IS NULL AND rs.location_id IS NULL AND rs.campaign_id IS NULL)
		        OR ($1::text IS NOT NULL AND rs.tenant_id = $1)
		   )`,
		tenant,
	)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		var (
			rule       models.Rule
			kind       string
			configJSON []byte
		)
		if err := rows.Scan(&rule.ID, &rule.RuleSetID, &kind, &configJSON, &rule.Enabled); err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}
		rule.Kind = models.RuleKind(kind)
		if err := json.Unmarshal(configJSON, &rule.Config); err != nil {
			return nil, fmt.Errorf("decode rule config for %s: %w", rule.ID, err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
