package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOracleBase  = "https://api.openai.com/v1"
	defaultOracleModel = "gpt-4o-mini"
	defaultTimeout     = 30 * time.Second
)

// Oracle completes a single system-instructions + user-text exchange and
// returns the raw response body. Implementations must be safe for concurrent
// use; tests substitute a stub so classification never needs a live endpoint.
type Oracle interface {
	Complete(ctx context.Context, systemInstructions, userText string) (string, error)
}

// OracleConfig configures the OpenAI-compatible completion oracle.
type OracleConfig struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models or any
	// other OpenAI-compatible endpoint. Defaults to the public OpenAI API.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini
	// (cost-efficient, sufficient for closed-vocabulary classification).
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// openAIOracle implements Oracle using the chat completions API with
// JSON-mode output so the response body is always a single JSON document.
type openAIOracle struct {
	cfg    OracleConfig
	client *http.Client
}

// NewOracle returns an Oracle backed by an OpenAI-compatible chat API.
func NewOracle(cfg OracleConfig) Oracle {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOracleBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultOracleModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &openAIOracle{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiFormat struct {
	Type string `json:"type"` // "json_object"
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// Complete sends one classification exchange to the API and returns the
// model's raw message content.
func (o *openAIOracle) Complete(ctx context.Context, systemInstructions, userText string) (string, error) {
	body := oaiRequest{
		Model: o.cfg.Model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemInstructions},
			{Role: "user", Content: userText},
		},
		MaxTokens:      512,
		ResponseFormat: &oaiFormat{Type: "json_object"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("oracle: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("oracle: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("oracle: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("oracle: read response body: %w", err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", fmt.Errorf("oracle: decode API response: %w", err)
	}

	if oaiResp.Error != nil {
		return "", fmt.Errorf("oracle: API error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}

	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("oracle: no choices returned (HTTP %d)", resp.StatusCode)
	}

	return oaiResp.Choices[0].Message.Content, nil
}
