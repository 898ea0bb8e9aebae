package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrBlocked is returned when the provider refuses to answer for safety
// reasons. Blocking is signaled through response metadata, not an HTTP error.
var ErrBlocked = errors.New("response blocked by content safety filter")

var harmCategories = []string{
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// GeminiConfig holds API settings for the generative model.
type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// SafetyThreshold is applied to every harm category, e.g. BLOCK_NONE or
	// BLOCK_MEDIUM_AND_ABOVE.
	SafetyThreshold string
}

type GeminiClient struct {
	httpClient *http.Client
	cfg        GeminiConfig
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.SafetyThreshold == "" {
		cfg.SafetyThreshold = "BLOCK_NONE"
	}
	return &GeminiClient{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		cfg:        cfg,
	}
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SafetySettings []geminiSafetySetting `json:"safetySettings"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends one prompt and returns the generated text. A safety block
// is reported as ErrBlocked.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		SafetySettings: make([]geminiSafetySetting, 0, len(harmCategories)),
	}
	reqBody.Contents = append(reqBody.Contents, struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}{
		Parts: []struct {
			Text string `json:"text"`
		}{{Text: prompt}},
	})
	for _, category := range harmCategories {
		reqBody.SafetySettings = append(reqBody.SafetySettings, geminiSafetySetting{
			Category:  category,
			Threshold: c.cfg.SafetyThreshold,
		})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}

	if parsed.PromptFeedback.BlockReason != "" {
		return "", ErrBlocked
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("empty llm candidates")
	}
	candidate := parsed.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return "", ErrBlocked
	}
	if len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty llm content parts")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}
