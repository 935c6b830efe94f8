// Package hub implements the subscriber registry, session pipeline, and
// resume handler that together drive the realtime WebSocket channel
// (C6, C7, C8).
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/callpath/backbone/pkg/models"
)

// heartbeatInterval is how often a subscribed connection receives a
// system.ping. The heartbeat timer self-terminates once a session has no
// more subscribers.
const heartbeatInterval = 30 * time.Second

// Subscriber is a single registered WebSocket connection.
type Subscriber struct {
	ID       string
	Conn     *websocket.Conn
	ctx      context.Context
	lastSeen time.Time
}

// Registry maintains session_id → set<connection> plus per-connection
// last-seen timestamps, and drives the per-session heartbeat (C6).
type Registry struct {
	mu           sync.RWMutex
	subscribers  map[string]map[string]*Subscriber // session_id -> conn_id -> Subscriber
	heartbeats   map[string]bool                   // session_id -> heartbeat running
	writeTimeout time.Duration
}

// NewRegistry creates an empty Registry.
func NewRegistry(writeTimeout time.Duration) *Registry {
	return &Registry{
		subscribers:  make(map[string]map[string]*Subscriber),
		heartbeats:   make(map[string]bool),
		writeTimeout: writeTimeout,
	}
}

// Register adds conn as a subscriber of sessionID and, if this is the
// session's first subscriber, starts its heartbeat loop.
func (r *Registry) Register(ctx context.Context, sessionID string, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{ID: uuid.New().String(), Conn: conn, ctx: ctx, lastSeen: time.Now()}

	r.mu.Lock()
	subs, ok := r.subscribers[sessionID]
	if !ok {
		subs = make(map[string]*Subscriber)
		r.subscribers[sessionID] = subs
	}
	subs[sub.ID] = sub
	needsHeartbeat := !r.heartbeats[sessionID]
	if needsHeartbeat {
		r.heartbeats[sessionID] = true
	}
	r.mu.Unlock()

	if needsHeartbeat {
		go r.runHeartbeat(sessionID)
	}
	return sub
}

// Unregister removes conn from sessionID's subscriber set.
func (r *Registry) Unregister(sessionID string, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.subscribers[sessionID]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(r.subscribers, sessionID)
		}
	}
}

// Touch records heartbeat activity (a system.pong) for a subscriber.
func (r *Registry) Touch(sessionID string, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.subscribers[sessionID]; ok {
		if s, ok := subs[sub.ID]; ok {
			s.lastSeen = time.Now()
		}
	}
}

// SubscriberCount returns how many connections are currently subscribed to
// sessionID.
func (r *Registry) SubscriberCount(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers[sessionID])
}

// Fanout sends message to every current subscriber of sessionID. A send
// failure marks that connection stale and removes it; no error escapes
// Fanout.
func (r *Registry) Fanout(sessionID string, message []byte) {
	r.mu.RLock()
	subs, ok := r.subscribers[sessionID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	snapshot := make([]*Subscriber, 0, len(subs))
	for _, s := range subs {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	for _, sub := range snapshot {
		if err := r.send(sub, message); err != nil {
			slog.Warn("Fanout send failed, removing stale subscriber",
				"session_id", sessionID, "connection_id", sub.ID, "error", err)
			r.Unregister(sessionID, sub)
		}
	}
}

// send writes message to a single subscriber's connection with a write
// timeout.
func (r *Registry) send(sub *Subscriber, message []byte) error {
	ctx, cancel := context.WithTimeout(sub.ctx, r.writeTimeout)
	defer cancel()
	return sub.Conn.Write(ctx, websocket.MessageText, message)
}

// runHeartbeat pings every subscriber of sessionID every heartbeatInterval
// until the session has no subscribers left, then exits.
func (r *Registry) runHeartbeat(sessionID string) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ping, _ := json.Marshal(models.Envelope{
		EventID:       uuid.New().String(),
		SessionID:     sessionID,
		Type:          models.EventPing,
		TsCreated:     time.Now().UTC(),
		SchemaVersion: models.SchemaVersion,
		Payload:       map[string]any{},
	})

	for range ticker.C {
		r.mu.RLock()
		remaining := len(r.subscribers[sessionID])
		r.mu.RUnlock()
		if remaining == 0 {
			r.mu.Lock()
			// Recheck under the write lock: a Register may have landed
			// between the RLock read above and here, in which case this
			// session has a subscriber again and must keep its heartbeat.
			if len(r.subscribers[sessionID]) == 0 {
				delete(r.heartbeats, sessionID)
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
			continue
		}
		r.Fanout(sessionID, ping)
	}
}
