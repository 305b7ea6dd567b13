package perception

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestChatClient(t *testing.T, handler http.HandlerFunc) *ChatClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultGroqConfig("gsk-test")
	cfg.BaseURL = server.URL
	client := NewChatClient(cfg)
	client.retryBase = time.Millisecond
	return client
}

func TestChatClient_CompleteWithSystem(t *testing.T) {
	client := newTestChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gsk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "llama-3.3-70b-versatile" {
			t.Errorf("model = %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "write a memo" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  \\documentclass{article}  "}}]}`))
	})

	got, err := client.CompleteWithSystem(context.Background(), "You output LaTeX.", "write a memo")
	if err != nil {
		t.Fatalf("CompleteWithSystem: %v", err)
	}
	if got != `\documentclass{article}` {
		t.Errorf("got %q", got)
	}
}

func TestChatClient_OmitsEmptySystemPrompt(t *testing.T) {
	client := newTestChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected single user message, got %+v", req.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	if _, err := client.Complete(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
}

func TestChatClient_RetriesRateLimit(t *testing.T) {
	var calls int32
	client := newTestChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
	})

	got, err := client.Complete(context.Background(), "x")
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if got != "done" || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestChatClient_MaxRetriesExceeded(t *testing.T) {
	var calls int32
	client := newTestChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Complete(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
		t.Fatalf("expected max retries error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 4 {
		t.Errorf("expected 1 + 3 retries, got %d calls", calls)
	}
}

func TestChatClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	client := newTestChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	})

	_, err := client.Complete(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("4xx should not be retried, got %d calls", calls)
	}
}

func TestChatClient_EmptyChoices(t *testing.T) {
	client := newTestChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	if _, err := client.Complete(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestChatClient_NoAPIKey(t *testing.T) {
	client := NewChatClient(ChatConfig{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Complete(context.Background(), "x"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestLLMFunc(t *testing.T) {
	var gotSystem string
	f := LLMFunc(func(_ context.Context, system, user string) (string, error) {
		gotSystem = system
		return strings.ToUpper(user), nil
	})
	out, _ := f.CompleteWithSystem(context.Background(), "sys", "abc")
	if out != "ABC" || gotSystem != "sys" {
		t.Errorf("got %q / %q", out, gotSystem)
	}
}
