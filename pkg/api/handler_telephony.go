package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/callpath/backbone/pkg/models"
)

// twilioInboundHandler handles POST /twilio/voice/inbound (spec.md §4.9).
func (s *Server) twilioInboundHandler(c *echo.Context) error {
	req := c.Request()
	if err := req.ParseForm(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}

	signature := req.Header.Get("X-Twilio-Signature")
	requestURL := s.requestURL(req)
	if !s.telephony.VerifySignature(requestURL, req.Form, signature) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
	}

	sess, err := s.sessions.Create(req.Context(), models.ScopeTags{})
	if err != nil {
		return mapServiceError(err)
	}

	return c.XMLBlob(http.StatusOK, []byte(s.telephony.ConnectTwiML(sess.ID)))
}

// twilioStatusHandler handles POST /twilio/voice/status, acknowledging
// carrier call-status callbacks.
func (s *Server) twilioStatusHandler(c *echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// requestURL reconstructs the absolute URL of the inbound request, as
// needed to recompute the carrier's signature.
func (s *Server) requestURL(req *http.Request) string {
	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI()
}
