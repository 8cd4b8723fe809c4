package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/domain"
)

func newTestGenerator(url string) *Generator {
	return NewGenerator(&GeneratorConfig{
		Config: Config{
			APIKey:   "test-key",
			BaseURL:  url,
			Model:    "gemini-2.5-flash",
			Provider: "test",
			Logger:   zap.NewNop(),
		},
		Temperature: 0.3,
		MaxTokens:   512,
	})
}

func chatServer(t *testing.T, content, finishReason string, choices bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", req.Messages)
		}
		if req.MaxTokens != 512 {
			t.Errorf("max_tokens = %d, want 512", req.MaxTokens)
		}

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []any{},
			"usage":   map[string]int{"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
		}
		if choices {
			resp["choices"] = []any{map[string]any{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestGenerator_Generate(t *testing.T) {
	server := chatServer(t, "Bail is conditional release.", "stop", true)
	defer server.Close()

	res, err := newTestGenerator(server.URL).Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Text != "Bail is conditional release." {
		t.Errorf("Text = %q", res.Text)
	}
	if res.PromptTokens != 120 || res.CompletionTokens != 30 || res.TotalTokens != 150 {
		t.Errorf("usage = %+v", res)
	}
}

func TestGenerator_Failures(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		finishReason string
		choices      bool
	}{
		{"no choices", "", "", false},
		{"empty content", "  ", "stop", true},
		{"content filter", "partial", "content_filter", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := chatServer(t, tc.content, tc.finishReason, tc.choices)
			defer server.Close()

			_, err := newTestGenerator(server.URL).Generate(context.Background(), "prompt")
			if !errors.Is(err, domain.ErrGeneration) {
				t.Fatalf("expected ErrGeneration, got %v", err)
			}
		})
	}
}

func TestGenerator_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("expected provider message, got %v", err)
	}
}

func TestGenerator_ContextCanceled(t *testing.T) {
	server := chatServer(t, "late", "stop", true)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestGenerator(server.URL).Generate(ctx, "prompt")
	if !errors.Is(err, domain.ErrGeneration) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrGeneration wrapping context.Canceled, got %v", err)
	}
}

func streamServer(t *testing.T, chunks []string, finishReason string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"choices": []any{map[string]any{"index": 0, "delta": map[string]string{"content": c}}},
			})
			_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		final, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion.chunk",
			"choices": []any{map[string]any{"index": 0, "delta": map[string]string{}, "finish_reason": finishReason}},
		})
		_, _ = fmt.Fprintf(w, "data: %s\n\n", final)
		usage, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion.chunk",
			"choices": []any{},
			"usage":   map[string]int{"prompt_tokens": 50, "completion_tokens": 5, "total_tokens": 55},
		})
		_, _ = fmt.Fprintf(w, "data: %s\n\n", usage)
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestGenerator_GenerateStream(t *testing.T) {
	server := streamServer(t, []string{"Bail ", "is ", "release."}, "stop")
	defer server.Close()

	var deltas []string
	res, err := newTestGenerator(server.URL).GenerateStream(context.Background(), "prompt", func(s string) error {
		deltas = append(deltas, s)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if res.Text != "Bail is release." {
		t.Errorf("Text = %q", res.Text)
	}
	if len(deltas) != 3 {
		t.Errorf("deltas = %v, want 3", deltas)
	}
	if res.TotalTokens != 55 {
		t.Errorf("TotalTokens = %d, want 55", res.TotalTokens)
	}
}

func TestGenerator_GenerateStream_ContentFilter(t *testing.T) {
	server := streamServer(t, []string{"partial"}, "content_filter")
	defer server.Close()

	_, err := newTestGenerator(server.URL).GenerateStream(context.Background(), "prompt", func(string) error { return nil })
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerator_GenerateStream_DeltaErrorAborts(t *testing.T) {
	server := streamServer(t, []string{"a", "b", "c"}, "stop")
	defer server.Close()

	abort := errors.New("client disconnected")
	calls := 0
	_, err := newTestGenerator(server.URL).GenerateStream(context.Background(), "prompt", func(string) error {
		calls++
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("expected abort error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("onDelta called %d times, want 1", calls)
	}
}
