package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}
		if req.MaxTokens != 500 {
			t.Errorf("max_tokens = %d", req.MaxTokens)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "pong"}, "finish_reason": "stop"},
			},
		})
	}))
	defer server.Close()

	c := NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
	})

	got, err := c.Complete(context.Background(), "ping", 500, 0.2)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "pong" {
		t.Errorf("response = %q", got)
	}
}

func TestOpenAIClientSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"rate_limit"}}`))
	}))
	defer server.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL, Model: "m"})
	_, err := c.Complete(context.Background(), "ping", 100, 0)
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("err = %v, want API error message", err)
	}
}

func TestOpenAIClientRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL, Model: "m"})
	if _, err := c.Complete(context.Background(), "ping", 100, 0); err == nil {
		t.Error("empty choices accepted")
	}
}
