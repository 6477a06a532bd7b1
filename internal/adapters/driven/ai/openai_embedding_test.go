package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// openAIStub answers embedding requests with vectors whose first value is
// the input's position within the request.
func openAIStub(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if requests != nil {
			requests.Add(1)
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		// reversed to check reordering by index
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = item{Index: j, Embedding: []float32{float32(j), 0.5}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIEmbedding_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIEmbedding("", "", ""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNewOpenAIEmbedding_Defaults(t *testing.T) {
	svc, err := NewOpenAIEmbedding("sk-test", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emb := svc.(*OpenAIEmbedding)
	if emb.model != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", emb.model)
	}
	if emb.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default base URL, got %s", emb.baseURL)
	}
	if svc.Dimensions() != 1536 {
		t.Errorf("expected 1536 dimensions, got %d", svc.Dimensions())
	}
}

func TestOpenAIEmbedding_Dimensions(t *testing.T) {
	testCases := []struct {
		model      string
		dimensions int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"unknown-model", 1536},
	}
	for _, tc := range testCases {
		svc, _ := NewOpenAIEmbedding("sk-test", tc.model, "")
		if svc.Dimensions() != tc.dimensions {
			t.Errorf("%s: expected %d, got %d", tc.model, tc.dimensions, svc.Dimensions())
		}
		if svc.Model() != tc.model {
			t.Errorf("expected model %s, got %s", tc.model, svc.Model())
		}
	}
}

func TestOpenAIEmbedding_Embed_EmptyInput(t *testing.T) {
	svc, _ := NewOpenAIEmbedding("sk-test", "", "http://127.0.0.1:1")
	out, err := svc.Embed(context.Background(), nil)
	if err != nil || out != nil {
		t.Errorf("expected nil, nil; got %v, %v", out, err)
	}
}

func TestOpenAIEmbedding_Embed_OrdersByIndex(t *testing.T) {
	srv := openAIStub(t, nil)
	svc, _ := NewOpenAIEmbedding("sk-test", "", srv.URL)

	out, err := svc.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range out {
		if v[0] != float32(i) {
			t.Errorf("embedding %d out of order: %v", i, v)
		}
	}
}

func TestOpenAIEmbedding_Embed_Batches(t *testing.T) {
	var requests atomic.Int32
	srv := openAIStub(t, &requests)
	svc, _ := NewOpenAIEmbedding("sk-test", "", srv.URL)

	texts := make([]string, openAIBatchSize+10)
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
	if requests.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", requests.Load())
	}
	if out[openAIBatchSize][0] != 0 {
		t.Errorf("second batch index not offset: %v", out[openAIBatchSize])
	}
}

func TestOpenAIEmbedding_Embed_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "", srv.URL)
	if _, err := svc.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected API error")
	}
}

func TestOpenAIEmbedding_Embed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "", srv.URL)
	if _, err := svc.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error for 500")
	}
}

func TestOpenAIEmbedding_Embed_MissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "", srv.URL)
	if _, err := svc.Embed(context.Background(), []string{"x", "y"}); err == nil {
		t.Error("expected error when an input has no embedding")
	}
}

func TestOpenAIEmbedding_Close(t *testing.T) {
	svc, _ := NewOpenAIEmbedding("sk-test", "", "")
	if err := svc.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
