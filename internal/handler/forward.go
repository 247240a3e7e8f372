package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-forwarder/internal/config"
	"edge-forwarder/internal/metrics"
	"edge-forwarder/internal/model"
	"edge-forwarder/internal/service"
)

const (
	allowedMethods        = "POST, OPTIONS"
	preflightAllowHeaders = "Content-Type, Accept-Language"
)

var errBodyTooLarge = errors.New("request body exceeds limit")

// ForwardHandler applies the inbound branch policy and relays accepted
// requests to the backend.
type ForwardHandler struct {
	service *service.ForwardService
	maxBody int64
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewForwardHandler creates a ForwardHandler. The metrics parameter is optional.
func NewForwardHandler(svc *service.ForwardService, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ForwardHandler {
	return &ForwardHandler{
		service: svc,
		maxBody: cfg.Server.BodyMaxBytes,
		logger:  logger.With("component", "forward_handler"),
		metrics: m,
	}
}

// Handle answers preflights, rejects other methods and oversized bodies, and
// forwards everything else. Exactly one response is written per call.
func (h *ForwardHandler) Handle(c echo.Context) error {
	req := c.Request()

	switch req.Method {
	case http.MethodOptions:
		h.metrics.ObserveOutcome(model.OutcomePreflight)
		hdr := c.Response().Header()
		hdr.Set(echo.HeaderAccessControlAllowMethods, allowedMethods)
		hdr.Set(echo.HeaderAccessControlAllowHeaders, preflightAllowHeaders)
		return c.NoContent(http.StatusNoContent)
	case http.MethodPost:
	default:
		h.metrics.ObserveOutcome(model.OutcomeMethodNotAllowed)
		c.Response().Header().Set(echo.HeaderAllow, allowedMethods)
		return writeJSON(c, http.StatusMethodNotAllowed, model.NewErrorEnvelope(model.MessageMethodNotAllowed))
	}

	body, err := readBody(req, h.maxBody)
	if errors.Is(err, errBodyTooLarge) {
		h.metrics.ObserveOutcome(model.OutcomePayloadTooLarge)
		return writeJSON(c, http.StatusRequestEntityTooLarge, model.NewErrorEnvelope(model.MessagePayloadTooLarge))
	}
	if err != nil {
		h.logger.Warn("reading request body", "err", err)
		return writeJSON(c, http.StatusBadRequest, model.NewErrorEnvelope(model.MessageBadRequest))
	}

	fr := &model.ForwardRequest{
		AcceptLanguage: req.Header.Get("Accept-Language"),
		UserAgent:      req.Header.Get("User-Agent"),
		Body:           body,
	}

	resp, err := h.service.Forward(req.Context(), fr)
	if err != nil {
		return h.writeUnavailable(c, err)
	}

	outcome := service.Classify(resp)
	h.metrics.ObserveOutcome(outcome)

	if outcome == model.OutcomeUnexpectedResponse {
		h.logger.Warn("backend returned a non-JSON body",
			"upstream_status", resp.StatusCode,
			"bytes", len(resp.Body),
		)
		return writeJSON(c, resp.StatusCode, model.NewUnexpectedResponseEnvelope(resp.StatusCode, resp.Body))
	}
	return writeRaw(c, resp.StatusCode, resp.Body)
}

func (h *ForwardHandler) writeUnavailable(c echo.Context, err error) error {
	h.metrics.ObserveOutcome(model.OutcomeUpstreamUnavailable)

	detail := err.Error()
	var ue *service.UpstreamError
	if errors.As(err, &ue) {
		detail = ue.Detail()
	}
	h.logger.Error("backend call failed", "err", detail)

	return writeJSON(c, http.StatusBadGateway, model.NewUnavailableEnvelope(detail))
}

// readBody reads at most limit bytes of the request body. A body of exactly
// limit bytes is accepted; one byte more yields errBodyTooLarge.
func readBody(req *http.Request, limit int64) ([]byte, error) {
	if req.ContentLength > limit {
		return nil, errBodyTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(req.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}
