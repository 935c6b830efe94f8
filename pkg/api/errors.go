package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/callpath/backbone/pkg/llm"
	"github.com/callpath/backbone/pkg/store"
)

// mapServiceError maps store/llm sentinel errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, store.ErrSessionInactive) {
		return echo.NewHTTPError(http.StatusConflict, "session is not active")
	}
	if errors.Is(err, store.ErrAlreadyCompleted) {
		return echo.NewHTTPError(http.StatusConflict, "session already completed")
	}
	if errors.Is(err, llm.ErrGeneration) {
		return echo.NewHTTPError(http.StatusBadGateway, "assistant generation failed")
	}

	slog.Error("Unexpected error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
