// Package api provides the HTTP and WebSocket surface of the backbone:
// the session CRUD API (C10), the telephony webhook (C9), the
// /ws/session/{id} upgrade route driving the session pipeline (C7), and
// the health endpoint.
package api

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/callpath/backbone/pkg/llm"
	"github.com/callpath/backbone/pkg/models"
)

// SessionService is the subset of store.SessionStore the API depends on.
type SessionService interface {
	Create(ctx context.Context, scope models.ScopeTags) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	End(ctx context.Context, id string, summary string, disposition models.Disposition) (*models.Session, error)
}

// TranscriptReader is the subset of store.EventStore the API depends on.
type TranscriptReader interface {
	AllTranscriptText(ctx context.Context, sessionID string) ([]string, error)
}

// SessionPipeline is the subset of hub.Pipeline the ws handler depends on.
type SessionPipeline interface {
	Accept(ctx context.Context, sessionID string) (bool, error)
	Run(ctx context.Context, sessionID string, conn *websocket.Conn)
}

// GuidanceWaiter lets Shutdown drain in-flight guidance generation.
type GuidanceWaiter interface {
	Wait()
}

// Completer generates structured completions. Implemented by llm.Client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, schema llm.Schema) (map[string]any, error)
}

// TelephonyAdapter verifies webhook signatures and renders call-control
// markup. Implemented by telephony.Adapter.
type TelephonyAdapter interface {
	VerifySignature(requestURL string, form url.Values, signature string) bool
	ConnectTwiML(sessionID string) string
}

// DBHealthChecker reports database connectivity for the health endpoint.
type DBHealthChecker interface {
	Health(ctx context.Context) (any, error)
}

// Server is the backbone's HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	db        DBHealthChecker
	sessions  SessionService
	events    TranscriptReader
	pipeline  SessionPipeline
	guidance  GuidanceWaiter
	llmClient Completer
	telephony TelephonyAdapter
}

// NewServer wires every component into an Echo v5 router.
func NewServer(
	db DBHealthChecker,
	sessions SessionService,
	events TranscriptReader,
	pipeline SessionPipeline,
	scheduler GuidanceWaiter,
	llmClient Completer,
	adapter TelephonyAdapter,
) *Server {
	e := echo.New()

	s := &Server{
		echo:      e,
		db:        db,
		sessions:  sessions,
		events:    events,
		pipeline:  pipeline,
		guidance:  scheduler,
		llmClient: llmClient,
		telephony: adapter,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every route.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())
	s.echo.Use(traceID())

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/sessions", s.createSessionHandler)
	s.echo.GET("/sessions/:id", s.getSessionHandler)
	s.echo.POST("/sessions/:id/end", s.endSessionHandler)

	s.echo.GET("/ws/session/:id", s.wsHandler)

	s.echo.POST("/twilio/voice/inbound", s.twilioInboundHandler)
	s.echo.POST("/twilio/voice/status", s.twilioStatusHandler)
	s.echo.GET("/twilio/session/:id", s.getSessionHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, such
// as one bound to a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server and waits for any
// in-flight guidance generation to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.guidance.Wait()
	return nil
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := s.db.Health(reqCtx)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"db":     dbHealth,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "healthy",
		"db":     dbHealth,
	})
}
