package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vozcredit/voz-gateway/pkg/core"
)

const (
	// DefaultTTSModel is the OpenAI synthesis model.
	DefaultTTSModel = "tts-1"

	// DefaultVoice is the voice used for the credit agent.
	DefaultVoice = "nova"

	// DefaultSpeed keeps replies brisk without sounding rushed.
	DefaultSpeed = 1.15
)

// OpenAIProvider implements the TTS Provider interface using the OpenAI
// audio speech API.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		model:      DefaultTTSModel,
		httpClient: &http.Client{},
	}
}

// NewOpenAIWithClient creates a provider with a custom endpoint and HTTP
// client, used by tests.
func NewOpenAIWithClient(apiKey, baseURL string, client *http.Client) *OpenAIProvider {
	return &OpenAIProvider{apiKey: apiKey, baseURL: baseURL, model: DefaultTTSModel, httpClient: client}
}

// WithModel overrides the synthesis model. Empty keeps the default.
func (p *OpenAIProvider) WithModel(model string) *OpenAIProvider {
	if model != "" {
		p.model = model
	}
	return p
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type speechRequest struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize converts text to audio.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	voice := opts.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	format := opts.Format
	if format == "" {
		format = "mp3"
	}

	body, err := json.Marshal(speechRequest{
		Model:          p.model,
		Voice:          voice,
		Input:          text,
		ResponseFormat: format,
		Speed:          opts.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.baseURL, "/")+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, core.NewProviderError("openai", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, core.NewAPIError(fmt.Sprintf("openai tts error %d: %s", resp.StatusCode, string(errBody)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return &Synthesis{Audio: audio, Format: format}, nil
}
