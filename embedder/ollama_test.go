package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeOllama(t *testing.T, embedding []float32) (*httptest.Server, *[]ollamaEmbedRequest) {
	t.Helper()
	var requests []ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			w.WriteHeader(http.StatusOK)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		requests = append(requests, req)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: embedding})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv, requests := newFakeOllama(t, []float32{0.1, 0.2, 0.3})
	e := NewOllamaEmbedder(
		WithOllamaEndpoint(srv.URL),
		WithOllamaModel("test-model"),
		WithOllamaDimensions(3),
	)

	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("unexpected embedding: %v", vec)
	}
	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	got := (*requests)[0]
	if got.Model != "test-model" || got.Prompt != "hello world" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv, requests := newFakeOllama(t, []float32{1, 2})
	e := NewOllamaEmbedder(WithOllamaEndpoint(srv.URL))

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if len(*requests) != 3 {
		t.Errorf("expected one request per text, got %d", len(*requests))
	}
	if (*requests)[2].Prompt != "three" {
		t.Errorf("requests out of order: %+v", *requests)
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	e := NewOllamaEmbedder(WithOllamaEndpoint(srv.URL))
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error on non-200 status")
	}
}

func TestOllamaEmbedder_EmptyEmbedding(t *testing.T) {
	srv, _ := newFakeOllama(t, nil)
	e := NewOllamaEmbedder(WithOllamaEndpoint(srv.URL))

	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error on empty embedding")
	}
}

func TestOllamaEmbedder_Ping(t *testing.T) {
	srv, _ := newFakeOllama(t, []float32{1})
	e := NewOllamaEmbedder(WithOllamaEndpoint(srv.URL))
	if err := e.Ping(context.Background()); err != nil {
		t.Errorf("Ping against a live server failed: %v", err)
	}

	down := NewOllamaEmbedder(WithOllamaEndpoint("http://127.0.0.1:1"))
	if err := down.Ping(context.Background()); err == nil {
		t.Error("Ping against a dead endpoint should fail")
	}
}

func TestOllamaEmbedder_Defaults(t *testing.T) {
	e := NewOllamaEmbedder()
	if e.endpoint != defaultOllamaEndpoint {
		t.Errorf("endpoint = %s", e.endpoint)
	}
	if e.model != defaultOllamaModel {
		t.Errorf("model = %s", e.model)
	}
	if e.Dimensions() != defaultOllamaDimensions {
		t.Errorf("dimensions = %d", e.Dimensions())
	}

	// Empty and non-positive option values keep the defaults.
	e = NewOllamaEmbedder(WithOllamaEndpoint(""), WithOllamaModel(""), WithOllamaDimensions(0))
	if e.endpoint != defaultOllamaEndpoint || e.model != defaultOllamaModel || e.dimensions != defaultOllamaDimensions {
		t.Error("zero-valued options must not override defaults")
	}
}
