package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/callpath/backbone/pkg/models"
	"github.com/callpath/backbone/pkg/redact"
	"github.com/callpath/backbone/pkg/rules"
	"github.com/callpath/backbone/pkg/store"
)

// EventAppender persists an event under the session's serialization
// primitive. Implemented by store.EventStore.
type EventAppender interface {
	Append(ctx context.Context, sessionID, eventID string, typ models.EventType, payload map[string]any) (serverSeq int64, fresh bool, err error)
	QueryAfter(ctx context.Context, sessionID string, cursor int64) ([]models.StoredEvent, error)
}

// SessionChecker reports whether a session exists and is active.
// Implemented by store.SessionStore.
type SessionChecker interface {
	IsActive(ctx context.Context, id string) (bool, error)
}

// RuleEvaluator evaluates transcript text against active rules.
// Implemented by rules.Engine.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, tenant *string, text string) ([]rules.Synthesized, error)
}

// GuidanceScheduler debounces transcript activity per session.
// Implemented by guidance.Scheduler.
type GuidanceScheduler interface {
	Notify(ctx context.Context, sessionID string)
	CancelSession(sessionID string)
}

// Pipeline drives the per-connection state machine described in C7: it
// wires the registry, event store, redactor, rule engine, and guidance
// scheduler together for a single WebSocket connection.
type Pipeline struct {
	registry *Registry
	events   EventAppender
	sessions SessionChecker
	redactor *redact.Redactor
	rules    RuleEvaluator
	guidance GuidanceScheduler
	tenantOf func(ctx context.Context, sessionID string) *string
}

// NewPipeline builds a Pipeline. tenantOf resolves a session's tenant
// scope for rule lookup; it may return nil for global-only rules.
func NewPipeline(registry *Registry, events EventAppender, sessions SessionChecker, redactor *redact.Redactor, ruleEngine RuleEvaluator, guidance GuidanceScheduler, tenantOf func(ctx context.Context, sessionID string) *string) *Pipeline {
	return &Pipeline{
		registry: registry,
		events:   events,
		sessions: sessions,
		redactor: redactor,
		rules:    ruleEngine,
		guidance: guidance,
		tenantOf: tenantOf,
	}
}

// SetGuidance wires the guidance scheduler after construction, breaking the
// Pipeline/Scheduler construction cycle: the scheduler's Publisher is the
// Pipeline itself, so one side must be built before the other exists.
func (p *Pipeline) SetGuidance(guidance GuidanceScheduler) {
	p.guidance = guidance
}

// Accept reports whether sessionID refers to an active session, per the
// session pipeline's accept-time check (§4.7). The caller (the ws HTTP
// handler) must close the connection with code 1008 if this returns false.
func (p *Pipeline) Accept(ctx context.Context, sessionID string) (bool, error) {
	return p.sessions.IsActive(ctx, sessionID)
}

// Run registers a connection already verified to belong to an active
// session (via Accept) and blocks processing inbound frames until the
// connection closes. It unregisters the connection and, if no subscribers
// remain, cancels the session's guidance timer before returning.
func (p *Pipeline) Run(ctx context.Context, sessionID string, conn *websocket.Conn) {
	sub := p.registry.Register(ctx, sessionID, conn)
	defer func() {
		p.registry.Unregister(sessionID, sub)
		if p.registry.SubscriberCount(sessionID) == 0 {
			p.guidance.CancelSession(sessionID)
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Invalid envelope, skipping", "session_id", sessionID, "error", err)
			continue
		}

		if err := p.dispatch(ctx, sessionID, sub, &env); err != nil {
			slog.Warn("Pipeline dispatch failed, closing connection", "session_id", sessionID, "error", err)
			if errors.Is(err, store.ErrSessionInactive) || errors.Is(err, store.ErrNotFound) {
				conn.Close(websocket.StatusPolicyViolation, "Session not found or inactive")
			} else {
				conn.Close(websocket.StatusInternalError, "pipeline error")
			}
			return
		}
	}
}

func (p *Pipeline) dispatch(ctx context.Context, sessionID string, sub *Subscriber, env *models.Envelope) error {
	switch env.Type {
	case models.EventPong:
		p.registry.Touch(sessionID, sub)
		return nil

	case models.EventResume:
		cursor, ok := resumeCursor(env.Payload)
		if !ok {
			slog.Warn("Invalid resume payload, ignoring", "session_id", sessionID)
			return nil
		}
		return Replay(ctx, p.events, sub, sessionID, cursor)

	case models.EventTranscriptSegment, models.EventTranscriptFinal:
		return p.handleTranscript(ctx, sessionID, sub, env)

	default:
		slog.Warn("Unknown envelope type, ignoring", "session_id", sessionID, "type", env.Type)
		return nil
	}
}

func (p *Pipeline) handleTranscript(ctx context.Context, sessionID string, sub *Subscriber, env *models.Envelope) error {
	redacted := p.redactor.RedactPayload(env.Payload)

	assignedSeq, fresh, err := p.events.Append(ctx, sessionID, env.EventID, env.Type, redacted)
	if err != nil {
		if errors.Is(err, store.ErrSessionInactive) || errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("append rejected: %w", err)
		}
		return fmt.Errorf("append transcript event: %w", err)
	}

	if fresh {
		p.fanoutEnvelope(sessionID, env.EventID, env.Type, assignedSeq, redacted)

		tenant := p.tenantOf(ctx, sessionID)
		text, _ := redacted["text"].(string)
		synthesized, err := p.rules.Evaluate(ctx, tenant, text)
		if err != nil {
			slog.Warn("Rule evaluation failed", "session_id", sessionID, "error", err)
		}
		for _, syn := range synthesized {
			p.publishSynthesizedLocked(ctx, sessionID, syn.Type, syn.Payload)
		}

		p.guidance.Notify(ctx, sessionID)
	}

	return p.sendAck(ctx, sub, env, assignedSeq)
}

// PublishSynthesized persists and fans out an event not originating from a
// client frame (rule alerts, guidance updates). It satisfies
// guidance.Publisher.
func (p *Pipeline) PublishSynthesized(ctx context.Context, sessionID string, typ models.EventType, payload map[string]any) error {
	eventID := uuid.New().String()
	seq, fresh, err := p.events.Append(ctx, sessionID, eventID, typ, payload)
	if err != nil {
		return fmt.Errorf("append synthesized event: %w", err)
	}
	if fresh {
		p.fanoutEnvelope(sessionID, eventID, typ, seq, payload)
	}
	return nil
}

func (p *Pipeline) publishSynthesizedLocked(ctx context.Context, sessionID string, typ models.EventType, payload map[string]any) {
	if err := p.PublishSynthesized(ctx, sessionID, typ, payload); err != nil {
		slog.Warn("Failed to publish synthesized event", "session_id", sessionID, "type", typ, "error", err)
	}
}

func (p *Pipeline) fanoutEnvelope(sessionID, eventID string, typ models.EventType, serverSeq int64, payload map[string]any) {
	out := models.Envelope{
		EventID:       eventID,
		SessionID:     sessionID,
		Type:          typ,
		TsCreated:     time.Now().UTC(),
		SchemaVersion: models.SchemaVersion,
		Payload:       payload,
		ServerSeq:     &serverSeq,
	}
	data, err := json.Marshal(out)
	if err != nil {
		slog.Warn("Failed to marshal envelope for fanout", "session_id", sessionID, "error", err)
		return
	}
	p.registry.Fanout(sessionID, data)
}

func (p *Pipeline) sendAck(ctx context.Context, sub *Subscriber, env *models.Envelope, assignedSeq int64) error {
	ack := models.Envelope{
		EventID:       env.EventID,
		SessionID:     env.SessionID,
		Type:          models.EventAck,
		TsCreated:     time.Now().UTC(),
		SchemaVersion: models.SchemaVersion,
		Payload:       map[string]any{"acknowledged": true},
		ClientSeq:     env.ClientSeq,
		ServerSeq:     &assignedSeq,
	}
	data, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("marshal ack: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, p.registry.writeTimeout)
	defer cancel()
	if err := sub.Conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send ack: %w", err)
	}
	return nil
}

func resumeCursor(payload map[string]any) (int64, bool) {
	raw, ok := payload["last_server_seq"]
	if !ok {
		return 0, false
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
