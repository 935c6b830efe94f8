package api

import (
	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
)

// traceIDHeader is echoed on every response, carrying the request's own
// value if present or a freshly minted one otherwise (spec.md §6).
const traceIDHeader = "X-Trace-Id"

// securityHeaders sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// traceID ensures every response carries an X-Trace-Id header, echoing the
// request's own value or minting a new one.
func traceID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			id := c.Request().Header.Get(traceIDHeader)
			if id == "" {
				id = uuid.New().String()
			}
			c.Response().Header().Set(traceIDHeader, id)
			return next(c)
		}
	}
}
