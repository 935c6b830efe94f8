package models

// RuleSetStatus is the lifecycle state of a RuleSet.
type RuleSetStatus string

const (
	RuleSetActive   RuleSetStatus = "active"
	RuleSetInactive RuleSetStatus = "inactive"
)

// RuleKind is the closed set of rule kinds the engine understands.
type RuleKind string

const (
	RuleKeywordAlert     RuleKind = "keyword_alert"
	RuleProhibitedClaim  RuleKind = "prohibited_claim"
	RuleRequiredQuestion RuleKind = "required_question"
)

// RuleSet carries the scope tags, status and version of a group of rules.
type RuleSet struct {
	ID      string
	Scope   ScopeTags
	Status  RuleSetStatus
	Version int
}

// Rule belongs to a RuleSet and has a kind plus a structured config.
type Rule struct {
	ID        string
	RuleSetID string
	Kind      RuleKind
	Enabled   bool
	Config    RuleConfig
}

// RuleConfig is the union of fields used by the three rule kinds. Only the
// fields relevant to Kind are populated; this mirrors how the config jsonb
// column is shaped per kind.
type RuleConfig struct {
	// keyword_alert / prohibited_claim
	Patterns []string `json:"patterns,omitempty"`
	Severity string   `json:"severity,omitempty"`
	Message  string   `json:"message,omitempty"`

	// required_question
	SatisfyPatterns []string `json:"satisfy_patterns,omitempty"`
	Question        string   `json:"question,omitempty"`
}
