package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAICompleteStructured(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		format, ok := req["response_format"].(map[string]interface{})
		if !ok || format["type"] != "json_object" {
			t.Fatalf("expected json_object response format, got %v", req["response_format"])
		}
		if req["stream"] == true {
			t.Fatalf("expected non-streaming request")
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"title\":\"Q3 spend review\"}"}}]}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{APIURL: server.URL, APIKey: "test-key", Model: "gpt-test"})

	out, err := provider.CompleteStructured(context.Background(), []Message{
		{Role: "user", Content: "name this conversation"},
	})
	if err != nil {
		t.Fatalf("complete structured: %v", err)
	}

	var parsed struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if parsed.Title != "Q3 spend review" {
		t.Fatalf("unexpected title %q", parsed.Title)
	}
}

func TestOpenAICreateThread(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("OpenAI-Beta") != "assistants=v2" {
			t.Fatalf("expected assistants beta header")
		}
		fmt.Fprint(w, `{"id":"thread_abc123","object":"thread"}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{APIURL: server.URL, APIKey: "test-key", Model: "gpt-test"})

	ref, err := provider.CreateThread(context.Background())
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if ref != "thread_abc123" {
		t.Fatalf("unexpected thread ref %q", ref)
	}
}

func TestOpenAICreateThread_Error(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{APIURL: server.URL, Model: "gpt-test"})

	if _, err := provider.CreateThread(context.Background()); err == nil {
		t.Fatal("expected error on unauthorized")
	}
}
