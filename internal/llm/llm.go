// Package llm is a thin client for the chat-completion service used by the
// classifier and the copy enhancer. The service is a black box: it takes a
// versioned instruction template plus a JSON event payload and returns free
// text that callers expect to parse as JSON. Anything that deviates from
// that contract is an error for the caller's fallback policy to absorb.
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

const (
	defaultTimeout = 60 * time.Second
	defaultModel   = "gpt-4o-mini"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// Model names the completion model. Empty means defaultModel.
	Model string
	// Timeout bounds a single completion call. Zero means defaultTimeout.
	Timeout time.Duration
}

// Client calls the chat-completion API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      model,
	}, nil
}

// Prompt is one completion request: a versioned instruction template and the
// event payload serialized as the user message.
type Prompt struct {
	// Template is the fixed instruction text.
	Template string
	// Version tags the template so responses can be traced to the
	// instruction revision that produced them.
	Version string
	// Payload is serialized to JSON and sent as the user message.
	Payload any
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends a prompt and returns the raw response text.
func (c *Client) Complete(ctx context.Context, p Prompt) (string, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf("%s\n\n[template %s]", p.Template, p.Version)},
			{Role: "user", Content: string(payload)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling completion API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion API returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
