// Package handlers holds the gateway HTTP endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vozcredit/voz-gateway/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config   config.Config
	Draining func() bool
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK               bool     `json:"ok"`
		STTProvider      string   `json:"stt_provider"`
		DialogueProvider string   `json:"dialogue_provider"`
		TTSProvider      string   `json:"tts_provider"`
		Draining         bool     `json:"draining"`
		Issues           []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.STTProvider {
	case config.STTOpenAI, config.STTGoogle:
	default:
		issues = append(issues, "invalid stt provider")
	}
	switch h.Config.DialogueProvider {
	case config.DialogueOpenAI, config.DialogueGemini:
	default:
		issues = append(issues, "invalid dialogue provider")
	}
	switch h.Config.TTSProvider {
	case config.TTSOpenAI, config.TTSElevenLabs:
	default:
		issues = append(issues, "invalid tts provider")
	}
	if h.Config.SampleRate <= 0 {
		issues = append(issues, "sample rate must be > 0")
	}
	if h.Config.TurnTimeout <= 0 {
		issues = append(issues, "turn timeout must be > 0")
	}
	if h.Config.LiveMaxMessageBytes <= 0 {
		issues = append(issues, "live max message bytes must be > 0")
	}

	draining := h.Draining != nil && h.Draining()

	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:               ok,
		STTProvider:      h.Config.STTProvider,
		DialogueProvider: h.Config.DialogueProvider,
		TTSProvider:      h.Config.TTSProvider,
		Draining:         draining,
		Issues:           issues,
	})
}
