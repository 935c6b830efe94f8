package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callpath/backbone/pkg/models"
)

const uniqueViolation = "23505"

// EventStore implements the append-only, totally-ordered event log (C1).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore wraps a connection pool as an EventStore.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append stores one event under the session's serialization primitive,
// assigning a dense monotonic server_seq. A retry bearing the same
// (session_id, event_id) returns the previously-assigned server_seq without
// storing a duplicate row; fresh reports whether this call actually inserted
// a new row (false on an idempotent replay).
func (s *EventStore) Append(ctx context.Context, sessionID, eventID string, typ models.EventType, payload map[string]any) (serverSeq int64, fresh bool, err error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, false, fmt.Errorf("marshal payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Per-session serialization primitive: an advisory lock scoped to this
	// transaction, released automatically on commit or rollback. Held across
	// the max-read + insert + commit so no two appends to the same session
	// race on server_seq (spec §4.1). Different sessions hash to (almost
	// certainly) different lock keys and proceed in parallel.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`, sessionID); err != nil {
		return 0, false, fmt.Errorf("acquire session lock: %w", err)
	}

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM call_sessions WHERE id = $1`, sessionID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup session: %w", err)
	}
	if status != string(models.SessionActive) {
		return 0, false, ErrSessionInactive
	}

	var maxSeq int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(server_seq), 0) FROM call_events WHERE session_id = $1`, sessionID).Scan(&maxSeq); err != nil {
		return 0, false, fmt.Errorf("read max server_seq: %w", err)
	}
	next := maxSeq + 1

	_, err = tx.Exec(ctx,
		`INSERT INTO call_events (session_id, event_id, server_seq, type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, eventID, next, string(typ), payloadJSON, time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Concurrent retry of the same event_id already committed under
			// a different transaction. Abandon this attempt and return what
			// was actually stored instead of erroring or double-inserting.
			_ = tx.Rollback(ctx)
			existing, lookupErr := s.lookupSeq(ctx, sessionID, eventID)
			if lookupErr != nil {
				return 0, false, lookupErr
			}
			return existing, false, nil
		}
		return 0, false, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit append: %w", err)
	}
	return next, true, nil
}

func (s *EventStore) lookupSeq(ctx context.Context, sessionID, eventID string) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx,
		`SELECT server_seq FROM call_events WHERE session_id = $1 AND event_id = $2`,
		sessionID, eventID,
	).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("event %s on session %s vanished after conflict: %w", eventID, sessionID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup existing event_id: %w", err)
	}
	return seq, nil
}

// QueryAfter returns events for a session with server_seq > cursor, in
// ascending order (used by resume/replay, C8).
func (s *EventStore) QueryAfter(ctx context.Context, sessionID string, cursor int64) ([]models.StoredEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, server_seq, type, payload, created_at
		 FROM call_events
		 WHERE session_id = $1 AND server_seq > $2
		 ORDER BY server_seq ASC`,
		sessionID, cursor,
	)
	if err != nil {
		return nil, fmt.Errorf("query events after cursor: %w", err)
	}
	defer rows.Close()
	return scanEvents(sessionID, rows)
}

// RecentTranscriptSegments returns the most recent N client.transcript_segment
// events for a session, in ascending server_seq order (used by the
// guidance scheduler, C5).
func (s *EventStore) RecentTranscriptSegments(ctx context.Context, sessionID string, limit int) ([]models.StoredEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, server_seq, type, payload, created_at
		 FROM call_events
		 WHERE session_id = $1 AND type = $2
		 ORDER BY server_seq DESC
		 LIMIT $3`,
		sessionID, string(models.EventTranscriptSegment), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent transcript segments: %w", err)
	}
	defer rows.Close()

	out, err := scanEvents(sessionID, rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AllTranscriptText returns every stored transcript event's text in
// server_seq order, formatted as "Speaker: text" lines (used by end-of-call
// summary, C10).
func (s *EventStore) AllTranscriptText(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM call_events
		 WHERE session_id = $1 AND type IN ($2, $3)
		 ORDER BY server_seq ASC`,
		sessionID, string(models.EventTranscriptSegment), string(models.EventTranscriptFinal),
	)
	if err != nil {
		return nil, fmt.Errorf("query transcript text: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan transcript payload: %w", err)
		}
		var decoded models.TranscriptPayload
		if err := json.Unmarshal(payload, &decoded); err != nil {
			continue
		}
		if decoded.Text == "" {
			continue
		}
		speaker := decoded.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, decoded.Text))
	}
	return lines, rows.Err()
}

func scanEvents(sessionID string, rows pgx.Rows) ([]models.StoredEvent, error) {
	var out []models.StoredEvent
	for rows.Next() {
		var (
			eventID   string
			seq       int64
			typ       string
			payload   []byte
			createdAt time.Time
		)
		if err := rows.Scan(&eventID, &seq, &typ, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		out = append(out, models.StoredEvent{
			SessionID: sessionID,
			EventID:   eventID,
			ServerSeq: seq,
			Type:      models.EventType(typ),
			Payload:   decoded,
			CreatedAt: createdAt,
		})
	}
	return out, rows.Err()
}
