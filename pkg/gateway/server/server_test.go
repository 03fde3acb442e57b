package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vozcredit/voz-gateway/pkg/gateway/config"
)

func testConfig() config.Config {
	return config.Config{
		Addr:                          ":8080",
		STTProvider:                   config.STTOpenAI,
		DialogueProvider:              config.DialogueOpenAI,
		TTSProvider:                   config.TTSOpenAI,
		OpenAIAPIKey:                  "sk-test",
		AudioFormat:                   "mp3",
		Language:                      "es",
		Voice:                         "nova",
		SpeechSpeed:                   1.15,
		SampleRate:                    16000,
		MaxHistory:                    18,
		InterpretMaxRetries:           2,
		InterpretBaseDelay:            time.Millisecond,
		TurnTimeout:                   2 * time.Second,
		CompletionGrace:               time.Millisecond,
		LiveMaxMessageBytes:           4 << 20,
		LiveMaxSessionDuration:        30 * time.Second,
		LiveWSPingInterval:            20 * time.Second,
		LiveWSWriteTimeout:            2 * time.Second,
		LiveHandshakeTimeout:          2 * time.Second,
		ReadHeaderTimeout:             10 * time.Second,
		ShutdownGracePeriod:           time.Second,
		UpstreamConnectTimeout:        time.Second,
		UpstreamResponseHeaderTimeout: time.Second,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(context.Background(), testConfig(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz", "/statusz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestServerLiveRequiresUpgrade(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/v1/live")
	if err != nil {
		t.Fatalf("GET /v1/live: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a plain GET", resp.StatusCode)
	}
}

func TestServerDraining(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	s.SetDraining()

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503 while draining", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/v1/live")
	if err != nil {
		t.Fatalf("GET /v1/live: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 529 {
		t.Errorf("live status = %d, want 529 while draining", resp.StatusCode)
	}
}

func TestServerUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServerRequestIDHeader(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if id := resp.Header.Get("X-Request-ID"); !strings.HasPrefix(id, "req_") {
		t.Errorf("X-Request-ID = %q, want req_ prefix", id)
	}
}
