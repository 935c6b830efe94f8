package api

import (
	"errors"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/callpath/backbone/pkg/llm"
	"github.com/callpath/backbone/pkg/models"
	"github.com/callpath/backbone/pkg/store"
)

// createSessionHandler handles POST /sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req models.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sess, err := s.sessions.Create(c.Request().Context(), req.Scope)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// getSessionHandler handles GET /sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sess, err := s.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// endSessionHandler handles POST /sessions/:id/end (spec.md §4.10).
func (s *Server) endSessionHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	if sess.Summary != nil && sess.Disposition != nil {
		return c.JSON(http.StatusOK, models.EndSessionResponse{
			Summary:     *sess.Summary,
			Disposition: *sess.Disposition,
		})
	}

	lines, err := s.events.AllTranscriptText(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	if len(lines) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "session has no transcript to summarize")
	}

	prompt := "Summarize this call transcript and classify its disposition.\n\nTranscript:\n" + strings.Join(lines, "\n")
	result, err := s.llmClient.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.CallSummarySchema{})
	if err != nil {
		return mapServiceError(err)
	}

	summary, _ := result["summary"].(string)
	disposition := models.Disposition(result["disposition"].(string))

	updated, err := s.sessions.End(ctx, sessionID, summary, disposition)
	if errors.Is(err, store.ErrAlreadyCompleted) {
		// Concurrent end-of-call request won the race; return what it stored.
		return c.JSON(http.StatusOK, models.EndSessionResponse{
			Summary:     *updated.Summary,
			Disposition: *updated.Disposition,
		})
	}
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, models.EndSessionResponse{
		Summary:     *updated.Summary,
		Disposition: *updated.Disposition,
	})
}
