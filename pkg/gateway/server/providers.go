package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
	dlggemini "github.com/vozcredit/voz-gateway/pkg/core/dialogue/gemini"
	dlgopenai "github.com/vozcredit/voz-gateway/pkg/core/dialogue/openai"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/stt"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/tts"
	"github.com/vozcredit/voz-gateway/pkg/gateway/config"
	"github.com/vozcredit/voz-gateway/pkg/gateway/metrics"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// pipeline holds the three providers behind one live session.
type pipeline struct {
	stt      stt.Provider
	dialogue dialogue.Provider
	tts      tts.Provider
}

func buildPipeline(ctx context.Context, cfg config.Config, httpClient *http.Client, m *metrics.Metrics) (pipeline, error) {
	var p pipeline

	openAIBase := cfg.OpenAIBaseURL
	if openAIBase == "" {
		openAIBase = openAIDefaultBaseURL
	}

	switch cfg.STTProvider {
	case config.STTOpenAI:
		p.stt = stt.NewOpenAIWithClient(cfg.OpenAIAPIKey, openAIBase, httpClient)
	case config.STTGoogle:
		provider, err := stt.NewGoogle(ctx)
		if err != nil {
			return pipeline{}, fmt.Errorf("google stt: %w", err)
		}
		p.stt = provider
	default:
		return pipeline{}, fmt.Errorf("unknown stt provider %q", cfg.STTProvider)
	}

	switch cfg.DialogueProvider {
	case config.DialogueOpenAI:
		p.dialogue = dlgopenai.New(cfg.OpenAIAPIKey,
			dlgopenai.WithBaseURL(openAIBase),
			dlgopenai.WithModel(cfg.DialogueModel),
			dlgopenai.WithHTTPClient(httpClient))
	case config.DialogueGemini:
		provider, err := dlggemini.New(ctx, cfg.GeminiAPIKey, dlggemini.WithModel(cfg.DialogueModel))
		if err != nil {
			return pipeline{}, fmt.Errorf("gemini dialogue: %w", err)
		}
		p.dialogue = provider
	default:
		return pipeline{}, fmt.Errorf("unknown dialogue provider %q", cfg.DialogueProvider)
	}

	switch cfg.TTSProvider {
	case config.TTSOpenAI:
		p.tts = tts.NewOpenAIWithClient(cfg.OpenAIAPIKey, openAIBase, httpClient).WithModel(cfg.TTSModel)
	case config.TTSElevenLabs:
		p.tts = tts.NewElevenLabs(cfg.ElevenLabsAPIKey).WithModelID(cfg.TTSModel)
	default:
		return pipeline{}, fmt.Errorf("unknown tts provider %q", cfg.TTSProvider)
	}

	if m != nil {
		p.stt = meteredSTT{inner: p.stt, metrics: m}
		p.dialogue = meteredDialogue{inner: p.dialogue, metrics: m}
		p.tts = meteredTTS{inner: p.tts, metrics: m}
	}
	return p, nil
}

func requestStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// meteredSTT counts transcription requests per provider and outcome.
type meteredSTT struct {
	inner   stt.Provider
	metrics *metrics.Metrics
}

func (m meteredSTT) Name() string { return m.inner.Name() }

func (m meteredSTT) Transcribe(ctx context.Context, audio io.Reader, opts stt.TranscribeOptions) (*stt.Transcript, error) {
	tr, err := m.inner.Transcribe(ctx, audio, opts)
	m.metrics.RecordProviderRequest(m.inner.Name(), "transcribe", requestStatus(err))
	return tr, err
}

type meteredDialogue struct {
	inner   dialogue.Provider
	metrics *metrics.Metrics
}

func (m meteredDialogue) Name() string { return m.inner.Name() }

func (m meteredDialogue) Interpret(ctx context.Context, req *dialogue.TurnRequest) (*dialogue.TurnResult, error) {
	result, err := m.inner.Interpret(ctx, req)
	m.metrics.RecordProviderRequest(m.inner.Name(), "interpret", requestStatus(err))
	return result, err
}

type meteredTTS struct {
	inner   tts.Provider
	metrics *metrics.Metrics
}

func (m meteredTTS) Name() string { return m.inner.Name() }

func (m meteredTTS) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	syn, err := m.inner.Synthesize(ctx, text, opts)
	m.metrics.RecordProviderRequest(m.inner.Name(), "synthesize", requestStatus(err))
	return syn, err
}
