package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vozcredit/voz-gateway/pkg/core"
)

const elevenLabsDefaultBaseURL = "https://api.elevenlabs.io/v1"

// ElevenLabsProvider implements the TTS Provider interface using the
// ElevenLabs text-to-speech API.
type ElevenLabsProvider struct {
	apiKey     string
	baseURL    string
	modelID    string
	httpClient *http.Client
}

// NewElevenLabs creates a new ElevenLabs TTS provider.
func NewElevenLabs(apiKey string) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    elevenLabsDefaultBaseURL,
		modelID:    "eleven_multilingual_v2",
		httpClient: &http.Client{},
	}
}

// NewElevenLabsWithClient creates a provider with a custom endpoint and
// HTTP client, used by tests.
func NewElevenLabsWithClient(apiKey, baseURL string, client *http.Client) *ElevenLabsProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		modelID:    "eleven_multilingual_v2",
		httpClient: client,
	}
}

// WithModelID overrides the synthesis model. Empty keeps the default.
func (e *ElevenLabsProvider) WithModelID(modelID string) *ElevenLabsProvider {
	if modelID != "" {
		e.modelID = modelID
	}
	return e
}

// Name returns the provider identifier.
func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

type elevenLabsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	LanguageCode  string         `json:"language_code,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Speed float64 `json:"speed,omitempty"`
}

// Synthesize converts text to audio.
func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if opts.Voice == "" {
		return nil, core.NewInvalidRequestErrorWithParam("elevenlabs requires a voice id", "voice")
	}

	reqBody := elevenLabsRequest{
		Text:         text,
		ModelID:      e.modelID,
		LanguageCode: opts.Language,
	}
	if opts.Speed > 0 {
		reqBody.VoiceSettings = &voiceSettings{Speed: opts.Speed}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	format := opts.Format
	if format == "" {
		format = "mp3"
	}
	outputFormat := "mp3_44100_128"
	if format == "wav" {
		outputFormat = "pcm_24000"
	}

	reqURL := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		strings.TrimRight(e.baseURL, "/"), url.PathEscape(opts.Voice), outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, core.NewProviderError("elevenlabs", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, core.NewAPIError(fmt.Sprintf("elevenlabs error %d: %s", resp.StatusCode, string(errBody)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return &Synthesis{Audio: audio, Format: format}, nil
}
