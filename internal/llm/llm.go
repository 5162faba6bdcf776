package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider is the interface for LLM providers.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	IsConfigured() bool
}

// Request describes a single completion call.
type Request struct {
	System      string
	User        string
	Parts       []ContentPart // multimodal content; used instead of User when set
	Model       string
	Temperature float64
	MaxTokens   int
}

// ContentPart is one element of a multimodal user message.
type ContentPart struct {
	Text     string
	ImageURL string // data: or https: URL; when set, Text is ignored
}

// OpenRouterProvider talks to the OpenRouter chat completions API.
type OpenRouterProvider struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenRouterProvider creates a new OpenRouter provider. The key is taken
// as a value, not read from ambient process state, so callers decide where
// credentials come from.
func NewOpenRouterProvider(baseURL, apiKey string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenRouterProvider) IsConfigured() bool {
	return o.apiKey != ""
}

// Complete sends a chat completion request and returns the raw text payload.
func (o *OpenRouterProvider) Complete(ctx context.Context, req Request) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OpenRouter API key not configured")
	}

	messages := []map[string]any{}
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	if len(req.Parts) > 0 {
		content := make([]map[string]any, 0, len(req.Parts))
		for _, part := range req.Parts {
			if part.ImageURL != "" {
				content = append(content, map[string]any{
					"type":      "image_url",
					"image_url": map[string]string{"url": part.ImageURL},
				})
			} else {
				content = append(content, map[string]any{"type": "text", "text": part.Text})
			}
		}
		messages = append(messages, map[string]any{"role": "user", "content": content})
	} else {
		messages = append(messages, map[string]any{"role": "user", "content": req.User})
	}

	body := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("OpenRouter API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenRouter API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenRouter response")
	}

	return result.Choices[0].Message.Content, nil
}
