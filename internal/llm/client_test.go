package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func reply(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestChat(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		APIKey:  "sk-test",
		Model:   "gpt-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
					t.Fatalf("unexpected auth header %q", got)
				}
				var body chatRequest
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				if body.Model != "gpt-test" || len(body.Messages) != 2 || body.Messages[1].Content != "user prompt" {
					t.Fatalf("unexpected request %+v", body)
				}
				if body.ResponseFormat != nil {
					t.Fatalf("plain chat should not request a format")
				}
				return reply(200, `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`)
			}),
		},
	}
	out, err := client.Chat(context.Background(), "system", "user prompt")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "hi" {
		t.Fatalf("unexpected chat output %s", out)
	}
}

func TestChatJSON(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		Model:   "gpt-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				body, _ := io.ReadAll(req.Body)
				if !strings.Contains(string(body), `"json_object"`) {
					t.Fatalf("expected json response format in %s", body)
				}
				return reply(200, `{"choices":[{"message":{"content":"{\"score\": 7}"}}]}`)
			}),
		},
	}
	var out struct {
		Score int `json:"score"`
	}
	if err := client.ChatJSON(context.Background(), "s", "u", &out); err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if out.Score != 7 {
		t.Fatalf("score = %d", out.Score)
	}
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
	}{
		{"api error", reply(200, `{"error":{"message":"bad"}}`)},
		{"status", reply(503, `upstream unavailable`)},
		{"garbage", reply(200, `not json`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{
				BaseURL: "https://api.test/v1/chat/completions",
				Model:   "gpt-test",
				HTTPClient: &http.Client{Transport: roundTrip(func(*http.Request) *http.Response {
					return tt.resp
				})},
			}
			if _, err := client.Chat(context.Background(), "s", "u"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestChatEmpty(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		Model:   "gpt-test",
		HTTPClient: &http.Client{Transport: roundTrip(func(*http.Request) *http.Response {
			return reply(200, `{"choices":[]}`)
		})},
	}
	if _, err := client.Chat(context.Background(), "s", "u"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestChatRequiresConfig(t *testing.T) {
	if _, err := (&Client{}).Chat(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bare", `{"keywords":["a"]}`},
		{"fenced", "```json\n{\"keywords\":[\"a\"]}\n```"},
		{"prose", "Here you go:\n{\"keywords\":[\"a\"]} thanks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Keywords []string `json:"keywords"`
			}
			if err := DecodeJSON(tt.in, &out); err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if len(out.Keywords) != 1 || out.Keywords[0] != "a" {
				t.Fatalf("unexpected %+v", out)
			}
		})
	}
	var v map[string]any
	if err := DecodeJSON("no json here", &v); err == nil {
		t.Fatal("expected error for reply without JSON")
	}
}
