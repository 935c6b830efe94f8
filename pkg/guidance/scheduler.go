// Package guidance implements the debounced live-call guidance scheduler
// (C5): a burst of transcript segments collapses into a single LLM call
// per quiet period.
package guidance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/callpath/backbone/pkg/llm"
	"github.com/callpath/backbone/pkg/models"
)

// DebounceWindow is how long the scheduler waits after the most recent
// transcript segment before generating guidance (spec.md §4.5).
const DebounceWindow = 1500 * time.Millisecond

// TranscriptWindow is how many of the most recent transcript segments are
// sent to the model as context.
const TranscriptWindow = 20

// TranscriptSource loads the recent transcript context for a session.
// Implemented by store.EventStore.
type TranscriptSource interface {
	RecentTranscriptSegments(ctx context.Context, sessionID string, limit int) ([]models.StoredEvent, error)
}

// Publisher persists and fans out a synthesized guidance event.
// Implemented by hub.Pipeline.
type Publisher interface {
	PublishSynthesized(ctx context.Context, sessionID string, typ models.EventType, payload map[string]any) error
}

// Scheduler debounces transcript activity per session and, after a quiet
// period, asks the LLM client for a guidance suggestion.
type Scheduler struct {
	source    TranscriptSource
	llmClient *llm.Client
	publisher Publisher

	mu      sync.Mutex
	timers  map[string]*time.Timer
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Scheduler. publisher may be nil in tests that only need
// to observe debounce behavior; generate then skips publishing.
func New(source TranscriptSource, llmClient *llm.Client, publisher Publisher) *Scheduler {
	return &Scheduler{
		source:    source,
		llmClient: llmClient,
		publisher: publisher,
		timers:    make(map[string]*time.Timer),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Notify records transcript activity for a session, (re)arming its
// debounce timer. Each call cancels any pending timer for the session and
// starts a fresh one, so a burst of segments yields exactly one guidance
// generation DebounceWindow after the last one.
func (s *Scheduler) Notify(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[sessionID]; ok {
		// Stop returning true means the pending AfterFunc callback is
		// cancelled and will never call wg.Done() itself; pay it here so
		// Wait doesn't deadlock on a re-armed timer.
		if t.Stop() {
			s.wg.Done()
		}
	}
	if cancel, ok := s.cancels[sessionID]; ok {
		cancel()
	}

	genCtx, cancel := context.WithCancel(detach(ctx))
	s.cancels[sessionID] = cancel

	s.wg.Add(1)
	s.timers[sessionID] = time.AfterFunc(DebounceWindow, func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.generate(genCtx, sessionID); err != nil {
			slog.Warn("Guidance generation failed", "session_id", sessionID, "error", err)
		}
	})
}

// CancelSession stops any pending timer for a session, e.g. when the
// session ends before its debounce window elapses.
func (s *Scheduler) CancelSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[sessionID]; ok {
		// Stop returning true means the AfterFunc callback will never run,
		// so its wg.Done() must be paid here instead.
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, sessionID)
	}
	if cancel, ok := s.cancels[sessionID]; ok {
		cancel()
		delete(s.cancels, sessionID)
	}
}

// Wait blocks until every armed debounce timer has fired or been stopped
// and every in-flight generation has finished. Used by graceful shutdown to
// avoid orphaning an LLM call mid-request.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) generate(ctx context.Context, sessionID string) error {
	segments, err := s.source.RecentTranscriptSegments(ctx, sessionID, TranscriptWindow)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return nil
	}

	messages := buildMessages(segments)
	result, err := s.llmClient.Complete(ctx, messages, llm.GuidanceSchema{})
	if err != nil {
		return err
	}

	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishSynthesized(ctx, sessionID, models.EventGuidanceUpdate, result)
}

func buildMessages(segments []models.StoredEvent) []llm.Message {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		speaker, _ := seg.Payload["speaker"].(string)
		text, _ := seg.Payload["text"].(string)
		if text == "" {
			continue
		}
		if speaker == "" {
			speaker = "Unknown"
		}
		lines = append(lines, speaker+": "+text)
	}

	prompt := "You are assisting a call agent in real time. Given the recent transcript below, suggest what the agent should say next.\n\nTranscript:\n"
	for _, l := range lines {
		prompt += l + "\n"
	}

	return []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}
}

// detach returns a context that carries no deadline from ctx, since the
// debounce timer outlives the request that triggered Notify.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
