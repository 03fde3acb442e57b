package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vozcredit/voz-gateway/pkg/core"
)

func (p *Provider) doRequest(ctx context.Context, req *chatRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatCompletionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewProviderError("openai", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, parseError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}

func (p *Provider) chatCompletionsURL() string {
	return strings.TrimRight(p.baseURL, "/") + "/chat/completions"
}

// openaiError is the error envelope returned by the API.
type openaiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Param   string `json:"param"`
	} `json:"error"`
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	message := strings.TrimSpace(string(body))
	var oe openaiError
	if err := json.Unmarshal(body, &oe); err == nil && oe.Error.Message != "" {
		message = oe.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return core.NewInvalidRequestErrorWithParam(message, oe.Error.Param)
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.NewAuthenticationError(message)
	case http.StatusNotFound:
		return core.NewNotFoundError(message)
	case http.StatusTooManyRequests:
		retryAfter := 0
		if v := resp.Header.Get("Retry-After"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				retryAfter = n
			}
		}
		return core.NewRateLimitError(message, retryAfter)
	case http.StatusServiceUnavailable:
		return core.NewOverloadedError(message)
	default:
		return core.NewAPIError(fmt.Sprintf("openai error %d: %s", resp.StatusCode, message))
	}
}
