package openai

import (
	"encoding/json"

	"github.com/vozcredit/voz-gateway/pkg/core/conversation"
	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
)

// chatRequest is the OpenAI Chat Completions request shape.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat requests structured output.
type responseFormat struct {
	Type       string      `json:"type"` // "json_schema", "json_object", "text"
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// turnResultSchema pins the verdict shape: all seven slots always present
// and nullable, no extra keys.
const turnResultSchema = `{
  "type": "object",
  "properties": {
    "message": {
      "type": "string",
      "description": "Natural language response to speak to the user"
    },
    "extractedFields": {
      "type": "object",
      "properties": {
        "nombreCompleto": {"type": ["string", "null"]},
        "direccion": {"type": ["string", "null"]},
        "montoCredito": {"type": ["string", "null"]},
        "ingresoMensual": {"type": ["string", "null"]},
        "gastoMensual": {"type": ["string", "null"]},
        "numeroCelular": {"type": ["string", "null"]},
        "cedula": {"type": ["string", "null"]}
      },
      "required": [
        "nombreCompleto",
        "direccion",
        "montoCredito",
        "ingresoMensual",
        "gastoMensual",
        "numeroCelular",
        "cedula"
      ],
      "additionalProperties": false
    },
    "isComplete": {"type": "boolean"}
  },
  "required": ["message", "extractedFields", "isComplete"],
  "additionalProperties": false
}`

func (p *Provider) buildRequest(req *dialogue.TurnRequest) *chatRequest {
	messages := make([]chatMessage, 0, len(req.History)+2)
	messages = append(messages, chatMessage{
		Role:    "system",
		Content: dialogue.BuildSystemPrompt(req.Fields),
	})
	for _, m := range req.History {
		role := "user"
		if m.Role == conversation.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Content})
	}
	if req.Utterance != "" {
		messages = append(messages, chatMessage{Role: "user", Content: req.Utterance})
	}

	return &chatRequest{
		Model:    p.model,
		Messages: messages,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   "agent_response",
				Strict: true,
				Schema: json.RawMessage(turnResultSchema),
			},
		},
	}
}
