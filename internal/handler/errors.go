package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-forwarder/internal/metrics"
	"edge-forwarder/internal/model"
)

// NewErrorHandler returns an echo.HTTPErrorHandler that renders errors
// raised outside ForwardHandler (router, rate limiter, recovered panics) as
// valid=false envelopes.
func NewErrorHandler(logger *slog.Logger, m *metrics.Metrics) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}

		var message string
		switch code {
		case http.StatusMethodNotAllowed:
			m.ObserveOutcome(model.OutcomeMethodNotAllowed)
			// Replaces the router's list of every registered method.
			c.Response().Header().Set(echo.HeaderAllow, allowedMethods)
			message = model.MessageMethodNotAllowed
		case http.StatusRequestEntityTooLarge:
			m.ObserveOutcome(model.OutcomePayloadTooLarge)
			message = model.MessagePayloadTooLarge
		case http.StatusTooManyRequests:
			message = model.MessageTooManyRequests
		case http.StatusInternalServerError:
			message = model.MessageInternalError
		default:
			message = http.StatusText(code)
		}

		if code >= http.StatusInternalServerError {
			logger.Error("request failed", "err", err, "path", c.Request().URL.Path)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = writeJSON(c, code, model.NewErrorEnvelope(message))
		}
		if err != nil {
			logger.Error("writing error response", "err", err)
		}
	}
}
