package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/vozcredit/voz-gateway/pkg/core"
)

// DefaultWhisperModel is the OpenAI transcription model.
const DefaultWhisperModel = "whisper-1"

// OpenAIProvider implements the STT Provider interface using the OpenAI
// audio transcriptions API.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates a new OpenAI STT provider.
func NewOpenAI(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{},
	}
}

// NewOpenAIWithClient creates a provider with a custom endpoint and HTTP
// client, used by tests.
func NewOpenAIWithClient(apiKey, baseURL string, client *http.Client) *OpenAIProvider {
	return &OpenAIProvider{apiKey: apiKey, baseURL: baseURL, httpClient: client}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Transcribe uploads the audio as multipart form data and returns the text.
func (p *OpenAIProvider) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	audioData, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	ext := opts.Format
	if ext == "" {
		ext = "wav"
	}
	fw, err := mw.CreateFormFile("file", "audio."+ext)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audioData); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultWhisperModel
	}
	if err := mw.WriteField("model", model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if opts.Language != "" {
		if err := mw.WriteField("language", opts.Language); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if opts.Prompt != "" {
		if err := mw.WriteField("prompt", opts.Prompt); err != nil {
			return nil, fmt.Errorf("write prompt field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.baseURL, "/")+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, core.NewProviderError("openai", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, core.NewAPIError(fmt.Sprintf("openai stt error %d: %s", resp.StatusCode, string(body)))
	}

	var out struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	t := &Transcript{Text: out.Text, Language: out.Language, Duration: out.Duration}
	if t.Language == "" {
		t.Language = opts.Language
	}
	return t, nil
}
