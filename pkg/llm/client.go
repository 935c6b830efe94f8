// Package llm talks to an OpenRouter-compatible chat-completions endpoint
// and validates responses against a structured Schema (C4).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one turn of a chat-completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client wraps HTTP calls to the chat-completions endpoint, with a primary
// model and an optional fallback used when the primary call fails.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	primaryModel  string
	fallbackModel string
}

// Config configures a Client from spec.md §6 environment variables.
type Config struct {
	BaseURL       string
	APIKey        string
	PrimaryModel  string
	FallbackModel string
	Timeout       time.Duration
}

// NewClient builds a Client configured with the given primary and fallback
// models. BaseURL defaults to OpenRouter's chat-completions endpoint.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		primaryModel:  cfg.PrimaryModel,
		fallbackModel: cfg.FallbackModel,
	}
}

// Close releases the client's idle HTTP connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete requests a structured completion validated against schema. It
// injects a leading system message enumerating the schema's required
// fields unless one of the supplied messages already mentions JSON, then
// tries the primary model and, on any failure, the fallback model (if
// configured) before giving up with ErrGeneration (spec.md §4.4).
func (c *Client) Complete(ctx context.Context, messages []Message, schema Schema) (map[string]any, error) {
	prompted := withSchemaPrompt(messages, schema)

	raw, err := c.complete(ctx, c.primaryModel, prompted)
	if err != nil && c.fallbackModel != "" {
		raw, err = c.complete(ctx, c.fallbackModel, prompted)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	validated, err := schema.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: schema %s: %v", ErrGeneration, schema.Name(), err)
	}
	return validated, nil
}

func (c *Client) complete(ctx context.Context, model string, messages []Message) (map[string]any, error) {
	if model == "" {
		return nil, fmt.Errorf("no model configured")
	}

	body, err := json.Marshal(chatRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    0,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request model %s: %w", model, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model %s returned status %d: %s", model, resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("model %s returned no choices", model)
	}
	content := parsed.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("model %s returned empty content", model)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("content is not a JSON object: %w", err)
	}
	return raw, nil
}

// withSchemaPrompt prepends a system message describing schema's required
// fields, unless an existing message already mentions JSON (the caller
// has already given the model output-format instructions of its own).
func withSchemaPrompt(messages []Message, schema Schema) []Message {
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m.Content), "json") {
			return messages
		}
	}

	var b strings.Builder
	b.WriteString("Respond with a single JSON object with exactly these fields:\n")
	for _, f := range schema.Fields() {
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "- %s (%s, %s)\n", f.Name, f.Type, req)
	}

	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: b.String()})
	out = append(out, messages...)
	return out
}
