package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vozcredit/voz-gateway/pkg/core"
	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
	"github.com/vozcredit/voz-gateway/pkg/core/form"
)

// chatResponse is the subset of the chat completions response we consume.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// agentVerdict is the wire shape produced under turnResultSchema.
type agentVerdict struct {
	Message         string      `json:"message"`
	ExtractedFields form.Fields `json:"extractedFields"`
	IsComplete      bool        `json:"isComplete"`
}

func parseResponse(body []byte) (*dialogue.TurnResult, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewAPIError("openai response has no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, core.NewAPIError("openai refused structured output: " + choice.Message.Refusal)
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return nil, core.NewAPIError("openai response has empty content")
	}

	var verdict agentVerdict
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return nil, core.NewAPIError(fmt.Sprintf("openai structured output is not valid JSON: %v", err))
	}

	return &dialogue.TurnResult{
		Reply:     verdict.Message,
		Extracted: verdict.ExtractedFields,
		Complete:  verdict.IsComplete,
	}, nil
}
