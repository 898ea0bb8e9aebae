package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeminiTestServer(t *testing.T, status int, body string, capture *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			*capture = raw
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestGenerateReturnsText(t *testing.T) {
	var captured []byte
	server := newGeminiTestServer(t, http.StatusOK, `{
		"candidates": [{"content": {"parts": [{"text": "Hello, "}, {"text": "client."}]}, "finishReason": "STOP"}]
	}`, &captured)
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, APIKey: "key", Model: "gemini-pro"})
	text, err := client.Generate(context.Background(), "say hello")

	require.NoError(t, err)
	assert.Equal(t, "Hello, client.", text)

	var req struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		SafetySettings []struct {
			Category  string `json:"category"`
			Threshold string `json:"threshold"`
		} `json:"safetySettings"`
	}
	require.NoError(t, json.Unmarshal(captured, &req))
	require.Len(t, req.Contents, 1)
	require.Len(t, req.Contents[0].Parts, 1)
	assert.Equal(t, "say hello", req.Contents[0].Parts[0].Text)
	require.Len(t, req.SafetySettings, 4)
	for _, setting := range req.SafetySettings {
		assert.Equal(t, "BLOCK_NONE", setting.Threshold)
	}
}

func TestGenerateCustomSafetyThreshold(t *testing.T) {
	var captured []byte
	server := newGeminiTestServer(t, http.StatusOK, `{
		"candidates": [{"content": {"parts": [{"text": "ok"}]}}]
	}`, &captured)
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{
		BaseURL:         server.URL,
		Model:           "gemini-pro",
		SafetyThreshold: "BLOCK_MEDIUM_AND_ABOVE",
	})
	_, err := client.Generate(context.Background(), "hi")
	require.NoError(t, err)

	var req struct {
		SafetySettings []struct {
			Threshold string `json:"threshold"`
		} `json:"safetySettings"`
	}
	require.NoError(t, json.Unmarshal(captured, &req))
	require.Len(t, req.SafetySettings, 4)
	assert.Equal(t, "BLOCK_MEDIUM_AND_ABOVE", req.SafetySettings[0].Threshold)
}

func TestGeneratePromptBlocked(t *testing.T) {
	server := newGeminiTestServer(t, http.StatusOK, `{
		"promptFeedback": {"blockReason": "SAFETY"}
	}`, nil)
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, Model: "gemini-pro"})
	_, err := client.Generate(context.Background(), "blocked prompt")

	assert.True(t, errors.Is(err, ErrBlocked))
}

func TestGenerateCandidateBlocked(t *testing.T) {
	server := newGeminiTestServer(t, http.StatusOK, `{
		"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]
	}`, nil)
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, Model: "gemini-pro"})
	_, err := client.Generate(context.Background(), "blocked answer")

	assert.True(t, errors.Is(err, ErrBlocked))
}

func TestGenerateHTTPError(t *testing.T) {
	server := newGeminiTestServer(t, http.StatusForbidden, `{"error": {"message": "invalid key"}}`, nil)
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, Model: "gemini-pro"})
	_, err := client.Generate(context.Background(), "hi")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBlocked))
	assert.Contains(t, err.Error(), "403")
}

func TestGenerateEmptyCandidates(t *testing.T) {
	server := newGeminiTestServer(t, http.StatusOK, `{"candidates": []}`, nil)
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, Model: "gemini-pro"})
	_, err := client.Generate(context.Background(), "hi")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBlocked))
}
