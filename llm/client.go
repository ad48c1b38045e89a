// Package llm talks to OpenAI-compatible chat completion endpoints (Groq).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ceniza-bot/metrics"
	"ceniza-bot/utils"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"
	defaultTimeout = 30 * time.Second
)

// Message is one chat turn. ImageURL attaches a picture for vision
// models; the content is then sent as parts.
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageURL string `json:"-"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.ImageURL == "" {
		type plain Message
		return json.Marshal(plain(m))
	}
	parts := []contentPart{{Type: "image_url", ImageURL: &imageRef{URL: m.ImageURL}}}
	if m.Content != "" {
		parts = append([]contentPart{{Type: "text", Text: m.Content}}, parts...)
	}
	return json.Marshal(struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}{m.Role, parts})
}

// CompletionRequest describes one completion call. Purpose only labels
// metrics and logs.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	JSONMode    bool
	Purpose     string
}

// CompletionService maps a prompt and messages to the model's text.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Config configures Client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient defaults to utils.GlobalHTTPClient.
	HTTPClient *http.Client
}

// Client is a CompletionService over the chat completions API. It is safe
// for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = utils.GlobalHTTPClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, client: httpClient, log: log.Named("llm")}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends req and returns the first choice's content, trimmed.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	purpose := req.Purpose
	if purpose == "" {
		purpose = "unspecified"
	}
	start := time.Now()
	defer func() {
		metrics.CompletionDuration.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
	}()

	msgs := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, req.Messages...)

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response body: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("llm: decode API response (HTTP %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("llm: API error (%s): %s", out.Error.Type, out.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("llm: bad status: %s", resp.Status)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned (HTTP %d)", resp.StatusCode)
	}

	c.log.Debug("completion done",
		zap.String("purpose", purpose),
		zap.String("model", c.cfg.Model),
		zap.String("finish_reason", out.Choices[0].FinishReason),
		zap.Duration("took", time.Since(start)),
	)
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
