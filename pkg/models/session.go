package models

import "time"

// SessionStatus is the lifecycle state of a call session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Disposition is the terminal classification of a completed call.
type Disposition string

const (
	DispositionBooked Disposition = "Booked"
	DispositionLead   Disposition = "Lead"
	DispositionSpam   Disposition = "Spam"
)

// ScopeTags are the optional tenancy tags a Session or RuleSet may carry.
// Nil fields mean "unscoped" / global.
type ScopeTags struct {
	Tenant   *string `json:"tenant,omitempty"`
	Org      *string `json:"org,omitempty"`
	Location *string `json:"location,omitempty"`
	Campaign *string `json:"campaign,omitempty"`
}

// Session is a single call instance with its own event log and subscribers.
type Session struct {
	ID          string        `json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	Status      SessionStatus `json:"status"`
	Scope       ScopeTags     `json:"scope"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	Summary     *string       `json:"summary,omitempty"`
	Disposition *Disposition  `json:"disposition,omitempty"`
}

// CreateSessionRequest is the payload for POST /sessions.
type CreateSessionRequest struct {
	Scope ScopeTags `json:"scope"`
}

// EndSessionResponse is returned by POST /sessions/{id}/end.
type EndSessionResponse struct {
	Summary     string      `json:"summary"`
	Disposition Disposition `json:"disposition"`
}
