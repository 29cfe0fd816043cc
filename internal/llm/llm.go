// Package llm provides a provider-agnostic client for the external large
// language model used in keyword extraction and natural-language query
// translation. A first-class Mock provider returns a fixed payload so the
// relevance pipeline and its callers are testable without network access.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/logging"
)

// Provider is the recognized set of LLM backends.
type Provider string

const (
	ProviderOpenRouter    Provider = "openrouter"
	ProviderOpenAI        Provider = "openai"
	ProviderAnthropic     Provider = "anthropic"
	ProviderGoogleVertex  Provider = "google_vertex_ai"
	ProviderOllama        Provider = "ollama"
	ProviderMock          Provider = "mock"
)

// Config configures one call to Query.
type Config struct {
	Provider    Provider
	Model       string
	APIKey      string
	Endpoint    string
	Temperature float64
	MaxTokens   int
	// MockResponse is returned verbatim by Query when Provider == ProviderMock.
	// Defaults to a fixed JSON keyword array when empty.
	MockResponse string
}

const defaultMockResponse = `["keyword"]`

// retry policy per spec §5: exponential backoff, base 500ms, factor 2, up
// to 3 attempts, 120s overall deadline.
const (
	retryBase       = 500 * time.Millisecond
	retryFactor     = 2
	maxAttempts     = 3
	overallDeadline = 120 * time.Second
)

// Client issues prompts against a configured provider's HTTP endpoint. Every
// provider except Mock shares the same request shape: a chat-completion
// style POST with prompt/model/temperature/max_tokens, expecting a plain
// text completion back. doRequest sends the same JSON body and (when an API
// key is set) a Bearer Authorization header for every such provider; there
// are no per-provider
// differences in auth header shape or JSON field names.
type Client struct {
	HTTP *http.Client
}

// NewClient returns a Client with a default HTTP client honoring the
// package's overall deadline.
func NewClient() *Client {
	return &Client{HTTP: &http.Client{Timeout: overallDeadline}}
}

// Query sends prompt to the configured provider and returns its raw text
// response. Retries transport failures with exponential backoff up to
// maxAttempts, bounded by an overall deadline; a Mock provider never
// touches the network.
func (c *Client) Query(ctx context.Context, prompt string, cfg Config) (string, error) {
	if cfg.Provider == ProviderMock {
		if cfg.MockResponse != "" {
			return cfg.MockResponse, nil
		}
		return defaultMockResponse, nil
	}

	ctx, cancel := context.WithTimeout(ctx, overallDeadline)
	defer cancel()

	var lastErr error
	backoff := retryBase
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := c.doRequest(ctx, prompt, cfg)
		if err == nil {
			return text, nil
		}
		lastErr = err
		logging.Get(logging.CategoryBoot).Warn("llm query attempt %d/%d failed: %v", attempt, maxAttempts, err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("llm query: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= retryFactor
	}
	return "", fmt.Errorf("llm query: all %d attempts failed: %w", maxAttempts, lastErr)
}

type chatRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Text string `json:"text"`
}

func (c *Client) doRequest(ctx context.Context, prompt string, cfg Config) (string, error) {
	if cfg.Endpoint == "" {
		return "", fmt.Errorf("llm: no endpoint configured for provider %q", cfg.Provider)
	}

	body, err := json.Marshal(chatRequest{Model: cfg.Model, Prompt: prompt, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens})
	if err != nil {
		return "", fmt.Errorf("marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("llm provider returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw), nil
	}
	return parsed.Text, nil
}

// ToolError mirrors an LLM failure as a ToolError for JSON-RPC callers that
// invoke the LLM directly (e.g. a natural-language query tool).
func ToolError(err error) *entity.ToolError {
	return &entity.ToolError{Code: entity.RPCInternalError, Message: "llm query failed", Err: err}
}
