package api

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/require"
)

func newWSTestServer(t *testing.T, pipeline *fakePipeline) *httptest.Server {
	t.Helper()
	e := echo.New()
	s := &Server{echo: e, pipeline: pipeline}
	e.GET("/ws/session/:id", s.wsHandler)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server
}

func TestWSHandlerClosesWithPolicyViolationWhenSessionNotActive(t *testing.T) {
	pipeline := &fakePipeline{accept: false}
	server := newWSTestServer(t, pipeline)

	url := "ws" + server.URL[len("http"):] + "/ws/session/sess-1"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	_, _, readErr := conn.Read(ctx)
	require.Error(t, readErr)
	require.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(readErr))
}

func TestWSHandlerRunsPipelineWhenSessionActive(t *testing.T) {
	pipeline := &fakePipeline{accept: true}
	server := newWSTestServer(t, pipeline)

	url := "ws" + server.URL[len("http"):] + "/ws/session/sess-1"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, _, _ = conn.Read(ctx)
	require.True(t, pipeline.ran)
}
