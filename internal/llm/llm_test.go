package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewGeminiClient(context.Background(), "test-key", "gemini-1.5-flash-latest", ts.URL+"/")
	if err != nil {
		t.Fatalf("creating gemini client: %v", err)
	}
	return client
}

func TestGeminiClient_Complete(t *testing.T) {
	tests := []struct {
		name          string
		response      string
		wantText      string
		wantBlocked   string
		wantEmpty     bool
		wantTruncated bool
	}{
		{
			name:     "text parts concatenated",
			response: `{"candidates":[{"content":{"parts":[{"text":"Pad Thai\n"},{"text":"Green Curry"}]},"finishReason":"STOP"}]}`,
			wantText: "Pad Thai\nGreen Curry",
		},
		{
			name:        "prompt blocked",
			response:    `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantBlocked: "SAFETY",
		},
		{
			name:        "candidate stopped for safety",
			response:    `{"candidates":[{"finishReason":"SAFETY"}]}`,
			wantBlocked: "SAFETY",
		},
		{
			name:      "no candidates",
			response:  `{"candidates":[]}`,
			wantEmpty: true,
		},
		{
			name:          "stopped at token limit",
			response:      `{"candidates":[{"content":{"parts":[{"text":"Pad Thai\nGreen Cu"}]},"finishReason":"MAX_TOKENS"}]}`,
			wantTruncated: true,
		},
		{
			name:     "thought parts skipped",
			response: `{"candidates":[{"content":{"parts":[{"text":"thinking...","thought":true},{"text":"Pho"}]},"finishReason":"STOP"}]}`,
			wantText: "Pho",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotBody map[string]any
			client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_ = json.NewDecoder(r.Body).Decode(&gotBody)
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.response))
			})

			got, err := client.Complete(context.Background(), Request{Prompt: "hello", Temperature: 0.1, MaxTokens: 4096})

			if !strings.HasSuffix(gotPath, "/v1beta/models/gemini-1.5-flash-latest:generateContent") {
				t.Errorf("unexpected request path %s", gotPath)
			}
			cfg, ok := gotBody["generationConfig"].(map[string]any)
			if !ok || cfg["temperature"] != 0.1 {
				t.Errorf("expected temperature 0.1 in generationConfig, got %v", gotBody["generationConfig"])
			}
			if ok && cfg["maxOutputTokens"] != float64(4096) {
				t.Errorf("expected maxOutputTokens 4096, got %v", cfg["maxOutputTokens"])
			}

			switch {
			case tt.wantTruncated:
				if !errors.Is(err, ErrTruncated) {
					t.Fatalf("expected ErrTruncated, got %v", err)
				}
			case tt.wantBlocked != "":
				var blocked *BlockedError
				if !errors.As(err, &blocked) {
					t.Fatalf("expected BlockedError, got %v", err)
				}
				if blocked.Reason != tt.wantBlocked {
					t.Errorf("expected reason %s, got %s", tt.wantBlocked, blocked.Reason)
				}
			case tt.wantEmpty:
				if !errors.Is(err, ErrEmptyResponse) {
					t.Fatalf("expected ErrEmptyResponse, got %v", err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Text != tt.wantText {
					t.Errorf("expected %q, got %q", tt.wantText, got.Text)
				}
			}
		})
	}
}

func TestGeminiClient_HTTPError(t *testing.T) {
	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"bad key"}}`, http.StatusForbidden)
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "hello"})
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		t.Error("transport errors must not be reported as blocked")
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	tests := []struct {
		name          string
		finishReason  string
		content       string
		wantBlocked   bool
		wantEmpty     bool
		wantTruncated bool
	}{
		{name: "text", finishReason: "stop", content: "pad thai plated"},
		{name: "content filter", finishReason: "content_filter", wantBlocked: true},
		{name: "blank content", finishReason: "stop", content: "  ", wantEmpty: true},
		{name: "cut at token limit", finishReason: "length", content: "Pad Thai\nGreen Cu", wantTruncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				if body["max_tokens"] != float64(4096) {
					t.Errorf("expected max_tokens 4096, got %v", body["max_tokens"])
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"id":     "chatcmpl-1",
					"object": "chat.completion",
					"model":  "gpt-4o-mini",
					"choices": []map[string]any{{
						"index":         0,
						"finish_reason": tt.finishReason,
						"message":       map[string]any{"role": "assistant", "content": tt.content},
					}},
				})
			}))
			defer ts.Close()

			client := NewOpenAIClientWithBaseURL("test-key", "gpt-4o-mini", ts.URL+"/v1")
			got, err := client.Complete(context.Background(), Request{Prompt: "hi", Temperature: 0.2, MaxTokens: 4096})

			switch {
			case tt.wantTruncated:
				if !errors.Is(err, ErrTruncated) {
					t.Fatalf("expected ErrTruncated, got %v", err)
				}
			case tt.wantBlocked:
				var blocked *BlockedError
				if !errors.As(err, &blocked) {
					t.Fatalf("expected BlockedError, got %v", err)
				}
			case tt.wantEmpty:
				if !errors.Is(err, ErrEmptyResponse) {
					t.Fatalf("expected ErrEmptyResponse, got %v", err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Text != tt.content {
					t.Errorf("expected %q, got %q", tt.content, got.Text)
				}
			}
		})
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	tests := []struct {
		name          string
		stopReason    string
		text          string
		wantBlocked   bool
		wantEmpty     bool
		wantTruncated bool
	}{
		{name: "text", stopReason: "end_turn", text: "Pho\nBanh Mi"},
		{name: "refusal", stopReason: "refusal", wantBlocked: true},
		{name: "blank text", stopReason: "end_turn", text: " ", wantEmpty: true},
		{name: "cut at token limit", stopReason: "max_tokens", text: "Pho\nBan", wantTruncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMaxTokens any
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/messages" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				gotMaxTokens = body["max_tokens"]

				content := []map[string]any{}
				if tt.text != "" {
					content = append(content, map[string]any{"type": "text", "text": tt.text})
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"id":            "msg_1",
					"type":          "message",
					"role":          "assistant",
					"model":         "claude-3-5-haiku-latest",
					"content":       content,
					"stop_reason":   tt.stopReason,
					"stop_sequence": nil,
					"usage":         map[string]any{"input_tokens": 10, "output_tokens": 5},
				})
			}))
			defer ts.Close()

			client := NewAnthropicClient("test-key", "claude-3-5-haiku-latest",
				option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
			got, err := client.Complete(context.Background(), Request{Prompt: "hi"})

			if gotMaxTokens != float64(defaultMaxTokens) {
				t.Errorf("expected default max_tokens %d, got %v", defaultMaxTokens, gotMaxTokens)
			}

			switch {
			case tt.wantTruncated:
				if !errors.Is(err, ErrTruncated) {
					t.Fatalf("expected ErrTruncated, got %v", err)
				}
			case tt.wantBlocked:
				var blocked *BlockedError
				if !errors.As(err, &blocked) {
					t.Fatalf("expected BlockedError, got %v", err)
				}
			case tt.wantEmpty:
				if !errors.Is(err, ErrEmptyResponse) {
					t.Fatalf("expected ErrEmptyResponse, got %v", err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Text != tt.text {
					t.Errorf("expected %q, got %q", tt.text, got.Text)
				}
			}
		})
	}
}

func TestPrompts(t *testing.T) {
	filter := FilterPrompt("SOUPS\nPho 12.50")
	if !strings.Contains(filter, "---\nSOUPS\nPho 12.50\n---") {
		t.Errorf("filter prompt does not embed OCR text:\n%s", filter)
	}
	if !strings.HasSuffix(filter, "Dish Names:") {
		t.Error("filter prompt should end with the answer cue")
	}

	query := QueryPrompt("Pad Thai")
	if strings.Count(query, `"Pad Thai"`) != 2 {
		t.Errorf("query prompt should quote the dish twice:\n%s", query)
	}
}
