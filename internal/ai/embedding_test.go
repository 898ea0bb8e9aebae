package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedReturnsVector(t *testing.T) {
	var gotAuth string
	var gotPath string
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured = raw
		fmt.Fprint(w, `{"data": [{"embedding": [0.1, 0.2, 0.3]}]}`)
	}))
	defer server.Close()

	client := NewEmbeddingClient(EmbeddingConfig{BaseURL: server.URL, APIKey: "ek", Model: "text-embedding-v3"})
	vector, err := client.Embed(context.Background(), "rights of the accused")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	assert.Equal(t, "Bearer ek", gotAuth)
	assert.Equal(t, "/embeddings", gotPath)

	var req struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}
	require.NoError(t, json.Unmarshal(captured, &req))
	assert.Equal(t, "text-embedding-v3", req.Model)
	assert.Equal(t, "rights of the accused", req.Input)
}

func TestEmbedEmptyInput(t *testing.T) {
	client := NewEmbeddingClient(EmbeddingConfig{BaseURL: "http://127.0.0.1:0", Model: "m"})
	_, err := client.Embed(context.Background(), "   ")
	require.Error(t, err)
}

func TestEmbedHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "bad key"}`)
	}))
	defer server.Close()

	client := NewEmbeddingClient(EmbeddingConfig{BaseURL: server.URL, Model: "m"})
	_, err := client.Embed(context.Background(), "text")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [{"embedding": [0.1]}, {"embedding": [0.2]}]}`)
	}))
	defer server.Close()

	client := NewEmbeddingClient(EmbeddingConfig{BaseURL: server.URL, Model: "m"})
	vectors, err := client.EmbedBatch(context.Background(), []string{"one", "two"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1}, vectors[0])
	assert.Equal(t, []float32{0.2}, vectors[1])
}

func TestEmbedBatchEmptySlice(t *testing.T) {
	client := NewEmbeddingClient(EmbeddingConfig{BaseURL: "http://127.0.0.1:0", Model: "m"})
	vectors, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
