// Package openai implements the dialogue provider on the OpenAI Chat
// Completions API with strict JSON-schema structured output.
package openai

import (
	"context"
	"net/http"

	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the chat model used for interpretation.
	DefaultModel = "gpt-4o"
)

// Provider implements dialogue.Provider against OpenAI.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL (for testing or proxying).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithModel sets a custom chat model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

// New creates a new OpenAI dialogue provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// Interpret sends one turn to the chat completions endpoint and decodes the
// structured verdict.
func (p *Provider) Interpret(ctx context.Context, req *dialogue.TurnRequest) (*dialogue.TurnResult, error) {
	body, err := p.doRequest(ctx, p.buildRequest(req))
	if err != nil {
		return nil, err
	}
	return parseResponse(body)
}
