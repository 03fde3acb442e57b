// Package server assembles the gateway: providers, metrics, session
// tracking, and the HTTP surface.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vozcredit/voz-gateway/pkg/gateway/config"
	"github.com/vozcredit/voz-gateway/pkg/gateway/handlers"
	"github.com/vozcredit/voz-gateway/pkg/gateway/live/sessions"
	"github.com/vozcredit/voz-gateway/pkg/gateway/metrics"
	"github.com/vozcredit/voz-gateway/pkg/gateway/mw"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	router chi.Router

	metrics   *metrics.Metrics
	tracker   *sessions.Tracker
	pipeline  pipeline
	draining  atomic.Bool
	startTime time.Time
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    chi.NewRouter(),
		metrics:   metrics.New(""),
		tracker:   sessions.NewTracker(),
		startTime: time.Now(),
	}

	p, err := buildPipeline(ctx, cfg, httpClient, s.metrics)
	if err != nil {
		return nil, err
	}
	s.pipeline = p

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Method(http.MethodGet, "/healthz", handlers.HealthHandler{})
	s.router.Method(http.MethodGet, "/readyz", handlers.ReadyHandler{
		Config:   s.cfg,
		Draining: s.Draining,
	})
	s.router.Method(http.MethodGet, "/statusz", handlers.StatusHandler{
		StartTime: s.startTime,
		Sessions:  s.tracker,
	})
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Method(http.MethodGet, "/v1/live", handlers.LiveHandler{
		Config:   s.cfg,
		Logger:   s.logger,
		Metrics:  s.metrics,
		STT:      s.pipeline.stt,
		Dialogue: s.pipeline.dialogue,
		TTS:      s.pipeline.tts,
		Sessions: s.tracker,
		Draining: s.Draining,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips the server into drain mode: readiness goes down and new
// live sessions are refused, while running sessions continue.
func (s *Server) SetDraining() {
	s.draining.Store(true)
}

func (s *Server) Draining() bool {
	return s.draining.Load()
}

// WarnLiveSessionsDraining logs how many sessions shutdown is waiting on.
func (s *Server) WarnLiveSessionsDraining() {
	if n := s.tracker.Count(); n > 0 {
		s.logger.Warn("waiting for live sessions to finish", "active_sessions", n)
	}
}

// WaitLiveSessions blocks until every live session ends or ctx expires. It
// reports whether all sessions finished.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.tracker.Wait(ctx)
}

// CancelLiveSessions force-closes every running live session.
func (s *Server) CancelLiveSessions() {
	s.tracker.CancelAll()
}
