package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestOllamaGenerateSuccess(t *testing.T) {
	var captured ollamaChatRequest
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "hello from ollama"},
			"done":    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", 2*time.Second, RetryPolicy{MaxAttempts: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, GenerateRequest{
		Model:       "llama3:latest",
		Messages:    []Message{{Role: "system", Content: "You are a company boss."}, {Role: "user", Content: "hi"}},
		MaxTokens:   16,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Text() != "hello from ollama" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.RequestID == "" {
		t.Fatalf("expected simulated request id")
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("messages not forwarded: %+v", captured.Messages)
	}
	if captured.Stream {
		t.Fatalf("expected non-streaming request")
	}
	if captured.Options["num_predict"] != float64(16) || captured.Options["temperature"] != 0.7 {
		t.Fatalf("unexpected options: %+v", captured.Options)
	}
}

func TestOllamaGenerateErrors(t *testing.T) {
	cases := []struct {
		status int
		kind   string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusNotFound, "model"},
		{http.StatusInternalServerError, "server"},
	}
	for _, tc := range cases {
		srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "nope"})
		}))
		c := NewOllamaClient(srv.URL, 2*time.Second, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})
		_, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest", Messages: []Message{{Role: "user", Content: "hi"}}})
		srv.Close()
		if Kind(err) != tc.kind {
			t.Fatalf("status %d: kind %q, want %q (%v)", tc.status, Kind(err), tc.kind, err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "nope" {
			t.Fatalf("status %d: expected decoded message, got %v", tc.status, err)
		}
	}
}

func TestOllamaGenerateEmptyMessages(t *testing.T) {
	c := NewOllamaClient("", time.Second, RetryPolicy{})
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest"})
	if err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("expected 'messages cannot be empty' error, got: %v", err)
	}
}

func TestNewRuntime(t *testing.T) {
	for _, p := range []string{ProviderOpenRouter, ProviderOllama, ProviderLocal} {
		rt, err := NewRuntime(p, RuntimeConfig{APIKey: "k"})
		if err != nil || rt == nil {
			t.Fatalf("provider %s: %v", p, err)
		}
	}
	if _, ok := mustRuntime(t, ProviderOllama).(*OllamaClient); !ok {
		t.Fatalf("ollama provider should build an OllamaClient")
	}
	if _, err := NewRuntime("nope", RuntimeConfig{}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func mustRuntime(t *testing.T, p string) Runtime {
	t.Helper()
	rt, err := NewRuntime(p, RuntimeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return rt
}
