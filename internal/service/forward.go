// Package service implements the core forwarding logic.
package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"edge-forwarder/internal/client"
	"edge-forwarder/internal/config"
	"edge-forwarder/internal/metrics"
	"edge-forwarder/internal/model"
	"edge-forwarder/internal/signer"
)

// ErrUpstreamUnavailable matches every failure to complete the backend call.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// UpstreamError reports a backend call that could not complete.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "upstream unavailable: " + e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUpstreamUnavailable) hold for every UpstreamError.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// Detail is the transport failure text shown to callers. The request URL that
// net/http prefixes to transport errors is dropped so the backend location is
// not echoed back.
func (e *UpstreamError) Detail() string {
	var urlErr *url.Error
	if errors.As(e.Err, &urlErr) {
		return urlErr.Err.Error()
	}
	return e.Err.Error()
}

const (
	defaultLanguage  = "en"
	defaultUserAgent = "frontend-proxy"
	proxyFromValue   = "frontend"
)

// leadingSpace is the set of bytes skipped before sniffing the first body byte.
const leadingSpace = " \t\n\r\x00\x0b"

// ForwardService relays validated inbound requests to the backend.
type ForwardService struct {
	client     *client.BackendClient
	signer     *signer.Signer
	backendURL string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewForwardService creates a ForwardService. The metrics parameter is optional.
func NewForwardService(c *client.BackendClient, s *signer.Signer, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ForwardService {
	return &ForwardService{
		client:     c,
		signer:     s,
		backendURL: cfg.Backend.URL,
		logger:     logger.With("component", "forward_service"),
		metrics:    m,
	}
}

// Forward posts fr to the backend and returns the complete response.
// Any failure to obtain a response is returned as an *UpstreamError.
func (s *ForwardService) Forward(ctx context.Context, fr *model.ForwardRequest) (*model.BackendResponse, error) {
	header := s.buildHeaders(fr)
	if s.signer.Apply(header) && s.metrics != nil {
		s.metrics.SignedRequests.Inc()
	}

	s.logger.Debug("forwarding request",
		"backend", s.backendURL,
		"bytes", len(fr.Body),
		"client_lang", header.Get("X-Client-Lang"),
	)

	resp, err := s.client.Post(ctx, s.backendURL, header, fr.Body)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	return resp, nil
}

// buildHeaders derives the outbound header set. Nothing from the inbound
// request is copied except Accept-Language and User-Agent.
func (s *ForwardService) buildHeaders(fr *model.ForwardRequest) http.Header {
	lang := fr.AcceptLanguage
	if lang == "" {
		lang = defaultLanguage
	}
	ua := fr.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept-Language", lang)
	h.Set("User-Agent", ua)
	h.Set("X-Proxy-From", proxyFromValue)
	h.Set("X-Client-Lang", clientLang(lang))
	return h
}

// clientLang returns the first comma-separated segment of an Accept-Language value.
func clientLang(acceptLanguage string) string {
	first, _, _ := strings.Cut(acceptLanguage, ",")
	if first == "" {
		return defaultLanguage
	}
	return first
}

// Classify decides whether resp can be passed through verbatim.
func Classify(resp *model.BackendResponse) model.Outcome {
	if LooksLikeJSON(resp.Body) {
		return model.OutcomePassThrough
	}
	return model.OutcomeUnexpectedResponse
}

// LooksLikeJSON reports whether body, after leading whitespace, starts with
// '{' or '['. It is a sniff, not a parse: a truncated or semantically invalid
// document that starts correctly passes.
func LooksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimLeft(body, leadingSpace)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{' || trimmed[0] == '['
}
