// Package client provides the outbound HTTP client for the backend service.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"edge-forwarder/internal/config"
	"edge-forwarder/internal/metrics"
	"edge-forwarder/internal/model"
	"edge-forwarder/internal/signer"
)

// BackendClient posts forwarded requests to the backend. It makes exactly one
// attempt per call.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with connection pooling and the
// configured timeout. The timeout covers reading the response body.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Backend.IdleConnections,
		MaxIdleConnsPerHost: cfg.Backend.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		// Backend bytes are relayed as received.
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Backend.Timeout(),
			// Redirects are returned to the caller as-is, never followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Post sends body to url with header and returns the fully read response.
// The provided context controls the lifetime of the call: when it is canceled
// (e.g. the inbound client disconnects), the backend call is canceled too.
func (c *BackendClient) Post(ctx context.Context, url string, header http.Header, body []byte) (*model.BackendResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	req.Header = header

	c.logger.Debug("backend request",
		"bytes_in", len(body),
		"signed", header.Get(signer.HeaderSignature) != "",
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(start, "error", 0)
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(start, "error", 0)
		return nil, fmt.Errorf("read backend response: %w", err)
	}
	c.observe(start, "response", resp.StatusCode)

	return &model.BackendResponse{
		StatusCode: resp.StatusCode,
		Body:       data,
	}, nil
}

func (c *BackendClient) observe(start time.Time, result string, status int) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	if status != 0 {
		c.metrics.UpstreamResponses.WithLabelValues(strconv.Itoa(status)).Inc()
	}
}
