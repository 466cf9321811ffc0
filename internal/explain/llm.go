package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LLMGenerator asks a chat-completion endpoint for an explanation. The
// response is requested as JSON with a single "explanation" field.
type LLMGenerator struct {
	apiURL  string
	apiKey  string
	model   string
	timeout time.Duration
}

// NewLLMGenerator returns a generator against the given chat-completion API.
// Returns nil (no primary) when no endpoint is configured.
func NewLLMGenerator(apiURL, apiKey, model string) *LLMGenerator {
	if apiURL == "" || apiKey == "" {
		return nil
	}
	return &LLMGenerator{
		apiURL:  apiURL,
		apiKey:  apiKey,
		model:   model,
		timeout: 10 * time.Second,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	MaxTokens      int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *LLMGenerator) Generate(ctx context.Context, p Params) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		`Explain in two plain sentences, for a beginner, why a %s option on %s with a $%.2f strike expiring in %d days fits the goal %s. Respond as JSON: {"explanation": "..."}`,
		p.OptionType, p.Asset, p.Strike, p.DaysToExpiry, p.Goal)

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You explain crypto options simply. Never give financial advice."},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
		MaxTokens:      200,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	client := &http.Client{Timeout: g.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("explanation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("explanation API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse explanation response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("explanation response contained no choices")
	}

	var payload struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &payload); err != nil {
		return "", fmt.Errorf("failed to parse explanation payload: %w", err)
	}
	if payload.Explanation == "" {
		return "", fmt.Errorf("explanation payload was empty")
	}

	return payload.Explanation, nil
}
