// Package gemini implements the dialogue provider on the Gemini API with a
// JSON response schema mirroring the OpenAI structured-output shape.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/vozcredit/voz-gateway/pkg/core"
	"github.com/vozcredit/voz-gateway/pkg/core/conversation"
	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
	"github.com/vozcredit/voz-gateway/pkg/core/form"
)

// DefaultModel is the Gemini model used for interpretation.
const DefaultModel = "gemini-2.0-flash"

// Provider implements dialogue.Provider against the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// Option configures the provider.
type Option func(*Provider)

// WithModel sets a custom model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// New creates a Gemini dialogue provider. An empty apiKey falls back to the
// GEMINI_API_KEY environment variable resolved by the SDK.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p := &Provider{client: client, model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// verdictSchema mirrors the structured-output contract: seven nullable
// slots always present plus message and isComplete.
func verdictSchema() *genai.Schema {
	slots := make(map[string]*genai.Schema, len(form.Keys))
	for _, key := range form.Keys {
		slots[key] = &genai.Schema{Type: genai.TypeString, Nullable: genai.Ptr(true)}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"message": {Type: genai.TypeString},
			"extractedFields": {
				Type:       genai.TypeObject,
				Properties: slots,
				Required:   append([]string(nil), form.Keys...),
			},
			"isComplete": {Type: genai.TypeBoolean},
		},
		Required: []string{"message", "extractedFields", "isComplete"},
	}
}

// Interpret sends one turn to Gemini and decodes the structured verdict.
func (p *Provider) Interpret(ctx context.Context, req *dialogue.TurnRequest) (*dialogue.TurnResult, error) {
	contents := buildContents(req)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(dialogue.BuildSystemPrompt(req.Fields), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    verdictSchema(),
	})
	if err != nil {
		return nil, core.NewProviderError("gemini", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, core.NewAPIError("gemini response has no text")
	}

	var verdict struct {
		Message         string      `json:"message"`
		ExtractedFields form.Fields `json:"extractedFields"`
		IsComplete      bool        `json:"isComplete"`
	}
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return nil, core.NewAPIError(fmt.Sprintf("gemini structured output is not valid JSON: %v", err))
	}

	return &dialogue.TurnResult{
		Reply:     verdict.Message,
		Extracted: verdict.ExtractedFields,
		Complete:  verdict.IsComplete,
	}, nil
}

func buildContents(req *dialogue.TurnRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	if req.Utterance != "" {
		contents = append(contents, genai.NewContentFromText(req.Utterance, genai.RoleUser))
	}
	if len(contents) == 0 {
		// Gemini requires at least one content entry; the greeting turn
		// opens with an empty user nudge.
		contents = append(contents, genai.NewContentFromText("Hola", genai.RoleUser))
	}
	return contents
}
