// Package rules implements the stateless rule-matching engine (C3).
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/callpath/backbone/pkg/models"
)

// RuleLoader loads active rules for a tenant scope. Implemented by
// store.RuleStore; declared here so the engine doesn't depend on the
// persistence package directly.
type RuleLoader interface {
	ActiveRulesForTenant(ctx context.Context, tenant *string) ([]models.Rule, error)
}

// Engine evaluates transcript text against loaded rules and synthesizes
// server events. It is stateless across calls: deduplicating "satisfied"
// emissions within a session is left to upstream consumers (spec.md §4.3).
type Engine struct {
	loader RuleLoader
}

// New creates a rule Engine backed by the given loader.
func New(loader RuleLoader) *Engine {
	return &Engine{loader: loader}
}

// Synthesized is one event produced by rule evaluation, ready to be
// persisted (C1) and fanned out (C6).
type Synthesized struct {
	Type    models.EventType
	Payload map[string]any
}

// Evaluate loads all rules scoped to the session's tenant (or global) and
// scans text against each enabled rule in config order. Matching is
// case-insensitive regex; a malformed pattern is silently skipped and
// evaluation continues with the next one.
func (e *Engine) Evaluate(ctx context.Context, tenant *string, text string) ([]Synthesized, error) {
	rules, err := e.loader.ActiveRulesForTenant(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("load active rules: %w", err)
	}

	var out []Synthesized
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		switch rule.Kind {
		case models.RuleKeywordAlert, models.RuleProhibitedClaim:
			if syn, ok := matchFirst(rule, rule.Config.Patterns, text); ok {
				out = append(out, Synthesized{
					Type: models.EventRuleAlert,
					Payload: map[string]any{
						"rule_id":         rule.ID,
						"kind":            string(rule.Kind),
						"severity":        rule.Config.Severity,
						"message":         rule.Config.Message,
						"matched_pattern": syn,
					},
				})
			}
		case models.RuleRequiredQuestion:
			if _, ok := matchFirst(rule, rule.Config.SatisfyPatterns, text); ok {
				out = append(out, Synthesized{
					Type: models.EventRequiredQuestionStatus,
					Payload: map[string]any{
						"rule_id":   rule.ID,
						"satisfied": true,
						"question":  rule.Config.Question,
					},
				})
			}
		default:
			slog.Warn("Unknown rule kind, skipping", "rule_id", rule.ID, "kind", rule.Kind)
		}
	}
	return out, nil
}

// matchFirst scans patterns in order and returns the first one that matches
// text case-insensitively, along with whether any pattern matched.
// Malformed regexes are logged and skipped.
func matchFirst(rule models.Rule, patterns []string, text string) (string, bool) {
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			slog.Warn("Malformed rule pattern, skipping", "rule_id", rule.ID, "pattern", pattern, "error", err)
			continue
		}
		if re.MatchString(text) {
			return pattern, true
		}
	}
	return "", false
}
