package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPing_OpenAIModels(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ping := Ping(Config{Provider: "openai", APIURL: server.URL, APIKey: "test-key"})
	if err := ping(context.Background()); err != nil {
		t.Fatalf("ping returned error: %v", err)
	}
	if gotPath != "/models" {
		t.Errorf("path = %q, want /models", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestPing_ServerErrorIsUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ping := Ping(Config{Provider: "openai", APIURL: server.URL})
	if err := ping(context.Background()); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}

func TestPing_OllamaStripsV1(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ping := Ping(Config{Provider: "ollama", APIURL: server.URL + "/v1"})
	if err := ping(context.Background()); err != nil {
		t.Fatalf("ping returned error: %v", err)
	}
	if gotPath != "/api/tags" {
		t.Errorf("path = %q, want /api/tags", gotPath)
	}
}
