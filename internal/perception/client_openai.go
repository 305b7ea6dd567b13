package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"vibetex/internal/logging"
)

// ChatClient implements LLMClient for OpenAI-compatible chat completion APIs.
// Groq is the default deployment; OpenAI uses the same wire format.
type ChatClient struct {
	name        string
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxRetries  int
	httpClient  *http.Client

	// retryBase is the first backoff delay; it doubles per attempt.
	retryBase time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

// ChatConfig holds configuration for a ChatClient.
type ChatConfig struct {
	Name        string // provider label for logs
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
}

// DefaultGroqConfig returns Groq defaults.
func DefaultGroqConfig(apiKey string) ChatConfig {
	return ChatConfig{
		Name:        "groq",
		APIKey:      apiKey,
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.2,
		MaxRetries:  3,
		Timeout:     defaultTimeout,
	}
}

// NewChatClient creates a client for an OpenAI-compatible endpoint.
func NewChatClient(config ChatConfig) *ChatClient {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.Name == "" {
		config.Name = "openai-compatible"
	}
	return &ChatClient{
		name:        config.Name,
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		temperature: config.Temperature,
		maxRetries:  config.MaxRetries,
		httpClient:  &http.Client{Timeout: config.Timeout},
		retryBase:   time.Second,
	}
}

// Model returns the configured model name.
func (c *ChatClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a prompt and returns the completion.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *ChatClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.httpClient.Timeout)
	defer cancel()

	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	startTime := time.Now()
	logging.APIDebug("[%s] CompleteWithSystem: model=%s system_len=%d user_len=%d",
		c.name, c.model, len(systemPrompt), len(userPrompt))

	c.throttle()

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	jsonData, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   defaultMaxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBase * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("request canceled after %d attempt(s): %w", attempt, lastErr)
			case <-time.After(delay):
			}
		}

		body, status, err := c.post(ctx, jsonData)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("request failed: %w", err)
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if status == http.StatusTooManyRequests || status >= 500 {
			lastErr = fmt.Errorf("API returned %d: %s", status, truncate(string(body), 300))
			logging.APIWarn("[%s] attempt %d: %v", c.name, attempt+1, lastErr)
			continue
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", status, string(body))
		}

		var resp chatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if resp.Error != nil {
			return "", fmt.Errorf("API error: %s", resp.Error.Message)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		out := strings.TrimSpace(resp.Choices[0].Message.Content)
		logging.API("[%s] completion in %v (model=%s, response_len=%d)", c.name, time.Since(startTime), c.model, len(out))
		return out, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *ChatClient) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *ChatClient) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elapsed := time.Since(c.lastRequest); elapsed < minRequestGap {
		time.Sleep(minRequestGap - elapsed)
	}
	c.lastRequest = time.Now()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
