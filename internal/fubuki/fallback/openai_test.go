package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIComplete(t *testing.T) {
	var gotReq oaiRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(oaiResponse{
			Choices: []oaiChoice{{Message: oaiMessage{Role: "assistant", Content: "Moonlight"}}},
		})
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"})

	reply, err := p.Complete(context.Background(), CompletionRequest{
		System:  "system instruction",
		History: []Message{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "reply"}},
		Input:   "that oscar movie",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "Moonlight" {
		t.Errorf("reply = %q, want Moonlight", reply)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}

	// system, two history turns, current input — in that order.
	if len(gotReq.Messages) != 4 {
		t.Fatalf("sent %d messages, want 4", len(gotReq.Messages))
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, want := range wantRoles {
		if gotReq.Messages[i].Role != want {
			t.Errorf("Messages[%d].Role = %q, want %q", i, gotReq.Messages[i].Role, want)
		}
	}
	if gotReq.Messages[3].Content != "that oscar movie" {
		t.Errorf("final message = %q", gotReq.Messages[3].Content)
	}
}

func TestOpenAICompleteRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL})

	_, err := p.Complete(context.Background(), CompletionRequest{Input: "x"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestOpenAICompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL})

	_, err := p.Complete(context.Background(), CompletionRequest{Input: "x"})
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	// A server error is not a rate limit; it must not trigger canned replies.
	if errors.Is(err, ErrRateLimited) {
		t.Fatal("HTTP 500 must not be classified as rate limiting")
	}
}

func TestOpenAICompleteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL, Timeout: 20 * time.Millisecond})

	_, err := p.Complete(context.Background(), CompletionRequest{Input: "x"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatal("a timeout must not be classified as rate limiting")
	}
}

func TestOpenAICompleteAPIErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL})

	_, err := p.Complete(context.Background(), CompletionRequest{Input: "x"})
	if err == nil {
		t.Fatal("expected API error")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatal("an error body must not be classified as rate limiting")
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(oaiResponse{})
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL})

	if _, err := p.Complete(context.Background(), CompletionRequest{Input: "x"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
