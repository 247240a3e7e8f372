package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"edge-forwarder/internal/config"
	"edge-forwarder/internal/metrics"
)

func testConfig(timeoutSeconds int) *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{
			TimeoutSeconds:  timeoutSeconds,
			IdleConnections: 10,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackendClient_Post(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("X-Proxy-From") != "frontend" {
			t.Errorf("X-Proxy-From = %q, want %q", r.Header.Get("X-Proxy-From"), "frontend")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"email":"a@b.c"}` {
			t.Errorf("body = %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer srv.Close()

	m := metrics.New()
	c := NewBackendClient(testConfig(10), discardLogger(), m)

	header := http.Header{"X-Proxy-From": {"frontend"}}
	resp, err := c.Post(context.Background(), srv.URL, header, []byte(`{"email":"a@b.c"}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if string(resp.Body) != `{"valid":true}` {
		t.Errorf("Body = %q, want %q", resp.Body, `{"valid":true}`)
	}
	if got := testutil.ToFloat64(m.UpstreamResponses.WithLabelValues("201")); got != 1 {
		t.Errorf("upstream responses{201} = %v, want 1", got)
	}
}

func TestBackendClient_Post_Unreachable(t *testing.T) {
	c := NewBackendClient(testConfig(1), discardLogger(), nil)

	_, err := c.Post(context.Background(), "http://127.0.0.1:1/validate", http.Header{}, nil)
	if err == nil {
		t.Fatal("Post() expected error for unreachable host, got nil")
	}
}

func TestBackendClient_Post_EmptyURL(t *testing.T) {
	c := NewBackendClient(testConfig(1), discardLogger(), nil)

	_, err := c.Post(context.Background(), "", http.Header{}, []byte(`{}`))
	if err == nil {
		t.Fatal("Post() expected error for empty URL, got nil")
	}
}

func TestBackendClient_Post_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewBackendClient(testConfig(1), discardLogger(), nil)

	start := time.Now()
	_, err := c.Post(context.Background(), srv.URL, http.Header{}, nil)
	if err == nil {
		t.Fatal("Post() expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Post() took %v, want it bounded by the 1s timeout", elapsed)
	}
}

func TestBackendClient_Post_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewBackendClient(testConfig(30), discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.Post(ctx, srv.URL, http.Header{}, nil)
	if err == nil {
		t.Fatal("Post() expected error for canceled context, got nil")
	}
}

func TestBackendClient_Post_DoesNotFollowRedirects(t *testing.T) {
	var followed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/elsewhere" {
			followed = true
			return
		}
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	c := NewBackendClient(testConfig(10), discardLogger(), nil)

	resp, err := c.Post(context.Background(), srv.URL+"/validate", http.Header{}, []byte(`{}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if followed {
		t.Error("redirect was followed")
	}
}

func TestBackendClient_Post_RelaysEncodedBodyUnchanged(t *testing.T) {
	raw := []byte{0x1f, 0x8b, 0x08, 0x00, 'x', 'y'}

	var acceptEncoding []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acceptEncoding = r.Header.Values("Accept-Encoding")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	c := NewBackendClient(testConfig(5), discardLogger(), nil)
	resp, err := c.Post(context.Background(), srv.URL, http.Header{}, nil)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	if len(acceptEncoding) != 0 {
		t.Errorf("Accept-Encoding = %q, want none", acceptEncoding)
	}
	if string(resp.Body) != string(raw) {
		t.Errorf("Body = %q, want %q", resp.Body, raw)
	}
}
