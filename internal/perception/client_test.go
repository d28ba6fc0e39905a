package perception

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientProviderSelection(t *testing.T) {
	c, err := NewClient(Config{Provider: "gemini", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient gemini failed: %v", err)
	}
	if _, ok := c.(*GeminiClient); !ok {
		t.Errorf("expected *GeminiClient, got %T", c)
	}

	c, err = NewClient(Config{Provider: "openai", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient openai failed: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Errorf("expected *OpenAIClient, got %T", c)
	}

	if _, err := NewClient(Config{Provider: "llama.cpp", APIKey: "k"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewClient(Config{Provider: "gemini"}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestGeminiCompleteParsesCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in URL")
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "score this deal" {
			t.Errorf("unexpected request contents: %+v", req.Contents)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"totalScore\""},{"text":": 1.6}"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClientWithConfig(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gemini-1.5-flash",
		Timeout: 5 * time.Second,
	})

	got, err := c.Complete(context.Background(), "score this deal")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != `{"totalScore": 1.6}` {
		t.Errorf("parts not concatenated: %q", got)
	}
}

func TestGeminiCompleteSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	c := NewGeminiClientWithConfig(GeminiConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := c.Complete(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestGeminiCompleteHonorsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewGeminiClientWithConfig(GeminiConfig{APIKey: "k", BaseURL: srv.URL, Timeout: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Complete(ctx, "p"); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestOpenAICompleteRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("system prompt not first: %+v", req.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"GO"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})

	got, err := c.CompleteWithSystem(context.Background(), "you are an analyst", "verdict?")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if got != "GO" {
		t.Errorf("got %q, want GO", got)
	}
}
