package models

import "time"

// EventType is the closed set of event types in the wire protocol.
type EventType string

const (
	// Client -> server.
	EventTranscriptSegment EventType = "client.transcript_segment"
	EventTranscriptFinal   EventType = "client.transcript_final"
	EventResume            EventType = "client.resume"

	// Server -> client.
	EventAck                    EventType = "server.ack"
	EventRuleAlert              EventType = "server.rule_alert"
	EventRequiredQuestionStatus EventType = "server.required_question_status"
	EventGuidanceUpdate         EventType = "server.guidance_update"

	// System.
	EventPing EventType = "system.ping"
	EventPong EventType = "system.pong"
)

const SchemaVersion = "1.0"

// Envelope is the wire frame carried by every client/server event, per
// spec.md §6.
type Envelope struct {
	EventID       string         `json:"event_id"`
	SessionID     string         `json:"session_id"`
	Type          EventType      `json:"type"`
	TsCreated     time.Time      `json:"ts_created"`
	SchemaVersion string         `json:"schema_version"`
	Payload       map[string]any `json:"payload"`
	ClientSeq     *int64         `json:"client_seq"`
	ServerSeq     *int64         `json:"server_seq"`
}

// StoredEvent is an event as persisted by the event store.
type StoredEvent struct {
	SessionID string
	EventID   string
	ServerSeq int64
	Type      EventType
	Payload   map[string]any
	CreatedAt time.Time
}

// ToEnvelope renders a stored event back into the wire envelope shape,
// with a normalized UTC timestamp as required for resume replay (C8).
func (e *StoredEvent) ToEnvelope() Envelope {
	seq := e.ServerSeq
	return Envelope{
		EventID:       e.EventID,
		SessionID:     e.SessionID,
		Type:          e.Type,
		TsCreated:     e.CreatedAt.UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       e.Payload,
		ServerSeq:     &seq,
	}
}

// TranscriptPayload is the structured shape of transcript event payloads.
// Unknown keys still pass through via the underlying map on Envelope;
// this type is used only to extract the fields the pipeline needs.
type TranscriptPayload struct {
	Speaker      string `json:"speaker"`
	Text         string `json:"text"`
	TimestampMs  *int64 `json:"timestamp_ms,omitempty"`
	IsFinal      *bool  `json:"is_final,omitempty"`
}
