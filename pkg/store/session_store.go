package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callpath/backbone/pkg/models"
)

// SessionStore persists Session rows and drives the active -> completed
// transition (§3, §4.10).
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore wraps a connection pool as a SessionStore.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Create allocates a new session with the given scope tags and returns it.
func (s *SessionStore) Create(ctx context.Context, scope models.ScopeTags) (*models.Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_sessions (id, created_at, status, tenant_id, org_id, location_id, campaign_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, now, string(models.SessionActive), scope.Tenant, scope.Org, scope.Location, scope.Campaign,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &models.Session{
		ID:        id,
		CreatedAt: now,
		Status:    models.SessionActive,
		Scope:     scope,
	}, nil
}

// Get fetches a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	// Session ids are UUIDs; anything else cannot name a stored session.
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, created_at, status, tenant_id, org_id, location_id, campaign_id,
		        ended_at, summary, disposition
		 FROM call_sessions WHERE id = $1`,
		id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// IsActive reports whether a session exists and is status=active, per the
// session pipeline's accept-time check (§4.7).
func (s *SessionStore) IsActive(ctx context.Context, id string) (bool, error) {
	sess, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sess.Status == models.SessionActive, nil
}

// End atomically sets status=completed, ended_at, summary and disposition.
// If the session is already completed, ErrAlreadyCompleted is returned
// along with the existing summary/disposition so the caller can answer the
// "second call returns the same values" contract without re-invoking the
// LLM (spec.md §4.10, S6).
func (s *SessionStore) End(ctx context.Context, id string, summary string, disposition models.Disposition) (*models.Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT id, created_at, status, tenant_id, org_id, location_id, campaign_id,
		        ended_at, summary, disposition
		 FROM call_sessions WHERE id = $1 FOR UPDATE`,
		id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session for end: %w", err)
	}
	if sess.Status == models.SessionCompleted {
		return sess, ErrAlreadyCompleted
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE call_sessions SET status = $1, ended_at = $2, summary = $3, disposition = $4 WHERE id = $5`,
		string(models.SessionCompleted), now, summary, string(disposition), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update session on end: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit end: %w", err)
	}

	sess.Status = models.SessionCompleted
	sess.EndedAt = &now
	sess.Summary = &summary
	sess.Disposition = &disposition
	return sess, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		sess        models.Session
		status      string
		tenant      *string
		org         *string
		location    *string
		campaign    *string
		endedAt     *time.Time
		summary     *string
		disposition *string
	)
	if err := row.Scan(&sess.ID, &sess.CreatedAt, &status, &tenant, &org, &location, &campaign,
		&endedAt, &summary, &disposition); err != nil {
		return nil, err
	}
	sess.Status = models.SessionStatus(status)
	sess.Scope = models.ScopeTags{Tenant: tenant, Org: org, Location: location, Campaign: campaign}
	sess.EndedAt = endedAt
	sess.Summary = summary
	if disposition != nil {
		d := models.Disposition(*disposition)
		sess.Disposition = &d
	}
	return &sess, nil
}
