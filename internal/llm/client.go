// Package llm implements the text-generation collaborator against an
// OpenRouter-compatible chat completions API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const BaseURL = "https://openrouter.ai/api/v1"

// message is a chat message in OpenRouter/OpenAI format.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for chat completions.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"` // "json_schema"
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

// chatResponse is the response from chat completions.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
			Role    string          `json:"role"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls an OpenRouter-compatible API.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: BaseURL,
		HTTP:    http.DefaultClient,
	}
}

// GenerateText sends the prompts and returns the assistant reply content.
func (c *Client) GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	body := chatRequest{
		Model: c.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	return c.complete(ctx, body)
}

// GenerateStructured asks for JSON conforming to schema and unmarshals the
// reply into out.
func (c *Client) GenerateStructured(ctx context.Context, systemPrompt, prompt string, schema map[string]interface{}, out interface{}) error {
	body := chatRequest{
		Model: c.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: "result", Strict: true, Schema: schema},
		},
	}
	content, err := c.complete(ctx, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("llm: structured reply is not valid JSON: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, body chatRequest) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("llm: API key not set")
	}
	if c.Model == "" {
		return "", fmt.Errorf("llm: model not set")
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	base := c.BaseURL
	if base == "" {
		base = BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("llm: decoding response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm: API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response (status %d)", resp.StatusCode)
	}
	return parseContent(parsed.Choices[0].Message.Content), nil
}

// parseContent parses API content that may be a string, null, or an array of
// parts (e.g. [{"type":"text","text":"..."}]).
func parseContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		return b.String()
	}
	return ""
}
