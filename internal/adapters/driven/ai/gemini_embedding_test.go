package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"google.golang.org/api/option"
)

// geminiStub answers batchEmbedContents with one vector per request whose
// first value is the request's position in the batch. drop removes that
// many embeddings from every response.
func geminiStub(t *testing.T, calls *atomic.Int32, drop int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-embedding-001:batchEmbedContents") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		calls.Add(1)

		var req struct {
			Requests []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		type embedding struct {
			Values []float32 `json:"values"`
		}
		n := max(len(req.Requests)-drop, 0)
		embeddings := make([]embedding, n)
		for i := range embeddings {
			embeddings[i] = embedding{Values: []float32{float32(i), 0.25}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStubbedGemini(t *testing.T, srv *httptest.Server) *GeminiEmbedding {
	t.Helper()
	svc, err := NewGeminiEmbedding(context.Background(), "test-key", "", option.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewGeminiEmbedding: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc.(*GeminiEmbedding)
}

func TestNewGeminiEmbedding_RequiresAPIKey(t *testing.T) {
	if _, err := NewGeminiEmbedding(context.Background(), "", ""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestGeminiEmbedding_Dimensions(t *testing.T) {
	testCases := []struct {
		model      string
		dimensions int
	}{
		{"", 3072},
		{"gemini-embedding-001", 3072},
		{"text-embedding-004", 768},
	}
	for _, tc := range testCases {
		svc, err := NewGeminiEmbedding(context.Background(), "test-key", tc.model, option.WithEndpoint("http://127.0.0.1:1"))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.model, err)
		}
		if svc.Dimensions() != tc.dimensions {
			t.Errorf("%s: expected %d, got %d", tc.model, tc.dimensions, svc.Dimensions())
		}
		_ = svc.Close()
	}
}

func TestGeminiEmbedding_Embed_EmptyInput(t *testing.T) {
	var calls atomic.Int32
	svc := newStubbedGemini(t, geminiStub(t, &calls, 0))

	out, err := svc.Embed(context.Background(), nil)
	if err != nil || out != nil {
		t.Errorf("expected nil, nil; got %v, %v", out, err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no requests, got %d", calls.Load())
	}
}

func TestGeminiEmbedding_Embed_Batches(t *testing.T) {
	var calls atomic.Int32
	svc := newStubbedGemini(t, geminiStub(t, &calls, 0))

	texts := make([]string, geminiBatchSize+20)
	for i := range texts {
		texts[i] = "chunk"
	}
	out, err := svc.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(out))
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", calls.Load())
	}
	if out[geminiBatchSize-1][0] != float32(geminiBatchSize-1) {
		t.Errorf("first batch out of order: %v", out[geminiBatchSize-1])
	}
	if out[geminiBatchSize][0] != 0 {
		t.Errorf("second batch not appended in order: %v", out[geminiBatchSize])
	}
}

func TestGeminiEmbedding_Embed_CountMismatch(t *testing.T) {
	var calls atomic.Int32
	svc := newStubbedGemini(t, geminiStub(t, &calls, 1))

	_, err := svc.Embed(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error when the API returns fewer embeddings")
	}
	if !strings.Contains(err.Error(), "2 embeddings for 3 inputs") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGeminiEmbedding_Embed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	svc := newStubbedGemini(t, srv)
	if _, err := svc.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error for rejected request")
	}
}
