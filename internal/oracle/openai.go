package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mohammad-safakhou/logsift/config"
	"github.com/mohammad-safakhou/logsift/internal/telemetry"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	config    config.LLMProvider
	models    map[string]config.LLMModel
	client    *http.Client
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewOpenAIClient creates a client for the given provider configuration.
func NewOpenAIClient(cfg config.LLMProvider, tel *telemetry.Telemetry) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		config:    cfg,
		models:    cfg.Models,
		client:    &http.Client{Timeout: timeout},
		telemetry: tel,
		logger:    log.New(log.Writer(), "[ORACLE] ", log.LstdFlags),
	}
}

// Complete sends a single-user-message chat completion request, retrying
// transient failures with exponential backoff. When retries are exhausted
// the returned error wraps ErrDegraded so callers can fall back.
func (c *OpenAIClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	apiKey := c.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("oracle API key not configured: %w", ErrDegraded)
	}

	m, ok := c.models[model]
	if !ok {
		return "", fmt.Errorf("model %s not configured: %w", model, ErrDegraded)
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = m.Name
	}

	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type chatReq struct {
		Model       string    `json:"model"`
		Messages    []chatMsg `json:"messages"`
		Temperature float64   `json:"temperature,omitempty"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}

	body, err := json.Marshal(chatReq{
		Model:       apiModel,
		Messages:    []chatMsg{{Role: "user", Content: prompt}},
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	baseURL := c.config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	retries := c.config.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := c.config.Backoff
	if backoff == 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		content, retryable, err := c.do(req, model, m)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		if attempt < retries {
			wait := backoff * time.Duration(1<<attempt)
			c.logger.Printf("oracle call failed (attempt %d/%d), retrying in %s: %v", attempt+1, retries+1, wait, err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	if c.telemetry != nil {
		c.telemetry.RecordFailure(model)
	}
	return "", fmt.Errorf("%v: %w", lastErr, ErrDegraded)
}

// do performs one request. The second return reports whether the failure
// is worth retrying (network errors, 429 and 5xx responses).
func (c *OpenAIClient) do(req *http.Request, model string, m config.LLMModel) (string, bool, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}

	if c.telemetry != nil {
		cost := float64(out.Usage.PromptTokens)/1000.0*m.CostPer1K +
			float64(out.Usage.CompletionTokens)/1000.0*m.CostPer1KOutput
		c.telemetry.RecordCall(model, int64(out.Usage.PromptTokens), int64(out.Usage.CompletionTokens), cost)
	}

	return out.Choices[0].Message.Content, false, nil
}
