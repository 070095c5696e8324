// Package llm is a small client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a request when no HTTPClient is supplied.
const DefaultTimeout = 60 * time.Second

// ErrEmptyResponse is returned when the API answers without any choice.
var ErrEmptyResponse = errors.New("llm: empty response")

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64

	HTTPClient *http.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends one system and one user message and returns the reply text.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	return c.chat(ctx, system, user, nil)
}

// ChatJSON asks for a JSON object reply and decodes it into out.
func (c *Client) ChatJSON(ctx context.Context, system, user string, out any) error {
	text, err := c.chat(ctx, system, user, &responseFormat{Type: "json_object"})
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}

func (c *Client) chat(ctx context.Context, system, user string, format *responseFormat) (string, error) {
	if c.BaseURL == "" || c.Model == "" {
		return "", fmt.Errorf("llm: base URL and model required")
	}
	messages := []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}}
	payload, err := c.send(ctx, chatRequest{
		Model:          c.Model,
		Messages:       messages,
		Temperature:    c.Temperature,
		ResponseFormat: format,
	})
	if err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) send(ctx context.Context, body chatRequest) (*chatResponse, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	var payload chatResponse
	decodeErr := json.Unmarshal(raw, &payload)
	if payload.Error != nil {
		return nil, fmt.Errorf("llm error (status %d): %s", resp.StatusCode, payload.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm: unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("llm: decode response: %w", decodeErr)
	}
	return &payload, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// DecodeJSON decodes the first JSON value found in text. Models often wrap
// JSON in markdown fences or lead with prose; both are tolerated.
func DecodeJSON(text string, out any) error {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return fmt.Errorf("llm: no JSON in reply: %q", truncate(text, 80))
	}
	dec := json.NewDecoder(strings.NewReader(s[start:]))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("llm: decode reply: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
