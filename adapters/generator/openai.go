// Package generator adapts the external text-generation backend. The core
// hands over a rendered persona prompt and the conversation window; anything
// smarter than a single bounded completion call lives on the other side of
// this boundary.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/layer-3/rangda/core"
	"github.com/layer-3/rangda/ports"
)

// chatMessage is the wire shape of an OpenAI-compatible chat message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// OpenAIClient implements ports.Generator against any OpenAI-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIClient creates a generation client. timeout bounds each request.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Generate produces a single completion for the persona prompt and window.
func (c *OpenAIClient) Generate(ctx context.Context, systemPrompt string, window []core.Message, mods core.Modifiers) (string, error) {
	messages := make([]chatMessage, 0, len(window)+1)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})

	for _, m := range window {
		switch m.Type {
		case core.MessageTypeUser:
			messages = append(messages, chatMessage{Role: "user", Content: m.Content})
		case core.MessageTypeAssistant:
			messages = append(messages, chatMessage{Role: "assistant", Content: m.Content})
		case core.MessageTypeSwitch:
			// Persona switches are surfaced to the model as context, so the
			// new persona knows a hand-over happened mid-conversation.
			messages = append(messages, chatMessage{
				Role:    "system",
				Content: fmt.Sprintf("The active persona changed from #%s to #%s at this point.", m.From, m.To),
			})
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: mods.Temperature,
		MaxTokens:   maxTokensFor(mods.Verbosity),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation backend: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation backend returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("generation backend error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("generation backend returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// maxTokensFor scales the completion budget with the persona's verbosity.
func maxTokensFor(verbosity float64) int {
	return 256 + int(verbosity*768)
}

var _ ports.Generator = (*OpenAIClient)(nil)
