package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades GET /ws/session/:id to a WebSocket connection and
// hands it to the session pipeline (C7). Rejects with close code 1008 if
// the session doesn't exist or isn't active.
func (s *Server) wsHandler(c *echo.Context) error {
	sessionID := c.Param("id")

	active, err := s.pipeline.Accept(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Origin validation is out of scope for this exercise; authentication
		// and authorization are assumed enforced upstream (spec.md §1).
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	if !active {
		conn.Close(websocket.StatusPolicyViolation, "Session not found or inactive")
		return nil
	}

	s.pipeline.Run(c.Request().Context(), sessionID, conn)
	return nil
}
