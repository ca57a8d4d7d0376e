package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIEmbedder_EmptyText(t *testing.T) {
	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"})
	vec, err := e.Embed(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Embed('') error: %v", err)
	}
	if vec != nil {
		t.Errorf("expected nil for empty text, got %v", vec)
	}
}

func TestOpenAIEmbedder_SuccessfulEmbedding(t *testing.T) {
	want := []float32{0.1, 0.2, 0.3}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key-123" {
			t.Errorf("unexpected Authorization header: %s", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "text-embedding-3-small" {
			t.Errorf("unexpected model: %v", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": want},
			},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "test-key-123", BaseURL: srv.URL})
	vec, err := e.Embed(context.Background(), "likes green tea")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != len(want) {
		t.Fatalf("embedding length %d, want %d", len(vec), len(want))
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("embedding[%d] = %f, want %f", i, vec[i], want[i])
		}
	}
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		payload any
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "invalid api key", "type": "invalid_request_error"}}},
		{"empty data", http.StatusOK, map[string]any{"object": "list", "data": []any{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(tc.payload)
			}))
			defer srv.Close()

			e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "key", BaseURL: srv.URL})
			if _, err := e.Embed(context.Background(), "test"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
