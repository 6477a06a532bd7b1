package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOllamaStub(t *testing.T, status int) (*httptest.Server, *[]string) {
	t.Helper()
	var inputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"model not found"}`))
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		inputs = append(inputs, req.Input...)

		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			embeddings[i] = []float32{float32(i), 0.5, 0.25}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      req.Model,
			"embeddings": embeddings,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &inputs
}

func TestOllamaEmbedding_Embed(t *testing.T) {
	srv, inputs := newOllamaStub(t, http.StatusOK)

	svc, err := NewOllamaEmbedding(srv.URL, "custom-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Close()

	if svc.Dimensions() != 0 {
		t.Errorf("expected unknown dimensions before first call, got %d", svc.Dimensions())
	}

	vectors, err := svc.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[1][0] != 1 {
		t.Errorf("expected second vector to keep its order, got %v", vectors[1])
	}
	if len(*inputs) != 2 {
		t.Errorf("expected 2 inputs sent, got %d", len(*inputs))
	}
	if svc.Dimensions() != 3 {
		t.Errorf("expected dimensions learnt from response, got %d", svc.Dimensions())
	}
}

func TestOllamaEmbedding_EmptyInput(t *testing.T) {
	svc, err := NewOllamaEmbedding("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vectors, err := svc.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Errorf("expected nil, nil for empty input; got %v, %v", vectors, err)
	}
}

func TestOllamaEmbedding_ServerError(t *testing.T) {
	srv, _ := newOllamaStub(t, http.StatusNotFound)

	svc, err := NewOllamaEmbedding(srv.URL, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error from server")
	}
}

func TestOllamaEmbedding_InvalidHost(t *testing.T) {
	if _, err := NewOllamaEmbedding("://bad", ""); err == nil {
		t.Error("expected error for invalid host")
	}
}
