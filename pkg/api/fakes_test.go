package api

import (
	"context"
	"errors"
	"net/url"

	"github.com/coder/websocket"

	"github.com/callpath/backbone/pkg/llm"
	"github.com/callpath/backbone/pkg/models"
)

// fakeSessionService is a hand-rolled SessionService for handler tests.
type fakeSessionService struct {
	createFn func(ctx context.Context, scope models.ScopeTags) (*models.Session, error)
	getFn    func(ctx context.Context, id string) (*models.Session, error)
	endFn    func(ctx context.Context, id string, summary string, disposition models.Disposition) (*models.Session, error)
}

func (f *fakeSessionService) Create(ctx context.Context, scope models.ScopeTags) (*models.Session, error) {
	return f.createFn(ctx, scope)
}

func (f *fakeSessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	return f.getFn(ctx, id)
}

func (f *fakeSessionService) End(ctx context.Context, id string, summary string, disposition models.Disposition) (*models.Session, error) {
	return f.endFn(ctx, id, summary, disposition)
}

// fakeTranscriptReader is a hand-rolled TranscriptReader.
type fakeTranscriptReader struct {
	lines []string
	err   error
}

func (f *fakeTranscriptReader) AllTranscriptText(ctx context.Context, sessionID string) ([]string, error) {
	return f.lines, f.err
}

// fakePipeline is a hand-rolled SessionPipeline.
type fakePipeline struct {
	accept    bool
	acceptErr error
	ran       bool
}

func (f *fakePipeline) Accept(ctx context.Context, sessionID string) (bool, error) {
	return f.accept, f.acceptErr
}

func (f *fakePipeline) Run(ctx context.Context, sessionID string, conn *websocket.Conn) {
	f.ran = true
	conn.Close(websocket.StatusNormalClosure, "")
}

// fakeGuidanceWaiter is a hand-rolled GuidanceWaiter.
type fakeGuidanceWaiter struct {
	waited bool
}

func (f *fakeGuidanceWaiter) Wait() {
	f.waited = true
}

// fakeCompleter is a hand-rolled Completer.
type fakeCompleter struct {
	result map[string]any
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message, schema llm.Schema) (map[string]any, error) {
	return f.result, f.err
}

// fakeTelephonyAdapter is a hand-rolled TelephonyAdapter.
type fakeTelephonyAdapter struct {
	verifyResult bool
	twiml        string
}

func (f *fakeTelephonyAdapter) VerifySignature(requestURL string, form url.Values, signature string) bool {
	return f.verifyResult
}

func (f *fakeTelephonyAdapter) ConnectTwiML(sessionID string) string {
	return f.twiml
}

// fakeDBHealthChecker is a hand-rolled DBHealthChecker.
type fakeDBHealthChecker struct {
	status any
	err    error
}

func (f *fakeDBHealthChecker) Health(ctx context.Context) (any, error) {
	return f.status, f.err
}

var errBoom = errors.New("boom")
