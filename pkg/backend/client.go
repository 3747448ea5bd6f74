package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lumikit/go-companion/internal/httpc"
)

// defaultCloudURL is the cloud provider's fixed chat-completion endpoint.
const defaultCloudURL = "https://api.openai.com/v1/chat/completions"

// Config holds dispatcher configuration.
type Config struct {
	// APIKey authorizes cloud requests (Bearer token).
	APIKey string

	// CloudURL overrides the fixed cloud endpoint (tests).
	CloudURL string

	// Timeout bounds each dispatch.
	Timeout time.Duration

	// HTTPClient overrides the shared client.
	HTTPClient *http.Client

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CloudURL: defaultCloudURL,
		Timeout:  httpc.DefaultTimeout,
		Logger:   slog.Default(),
	}
}

// Option is a functional option for the dispatcher.
type Option func(*Config)

// WithAPIKey sets the cloud API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithCloudURL overrides the cloud chat endpoint.
func WithCloudURL(url string) Option {
	return func(c *Config) { c.CloudURL = url }
}

// WithTimeout sets the per-dispatch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Client is the backend request dispatcher.
type Client struct {
	cfg    *Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a dispatcher.
func NewClient(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}

	return &Client{
		cfg:    cfg,
		http:   hc,
		logger: cfg.Logger.With("component", "backend"),
	}
}

// cloudPayload is the cloud provider's request shape.
type cloudPayload struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// localPayload is the local model server's request shape; it carries the
// sampling parameters the cloud API does not take.
type localPayload struct {
	Model        string    `json:"model"`
	Messages     []Message `json:"messages"`
	MaxNewTokens int       `json:"max_new_tokens"`
	Temperature  float64   `json:"temperature"`
	TopP         float64   `json:"top_p"`
}

// chatCompletionResponse is the cloud provider's envelope.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// localResponse is the local server's known response shape. Response is a
// pointer so a present-but-empty field is distinguishable from an absent one.
type localResponse struct {
	Response *string `json:"response"`
}

// SendChat dispatches the full ordered history to the selected provider and
// extracts the assistant reply text.
func (c *Client) SendChat(ctx context.Context, req *ChatRequest) (string, error) {
	switch req.Provider {
	case ProviderLocal:
		return c.sendLocal(ctx, req)
	default:
		return c.sendCloud(ctx, req)
	}
}

func (c *Client) sendCloud(ctx context.Context, req *ChatRequest) (string, error) {
	body, err := c.post(ctx, c.cfg.CloudURL, cloudPayload{
		Model:    req.Model,
		Messages: req.Messages,
	}, c.cfg.APIKey)
	if err != nil {
		return "", err
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrEmptyReply, err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}

	reply := result.Choices[0].Message.Content
	c.logger.Debug("cloud reply received", "model", req.Model, "chars", len(reply))
	return reply, nil
}

func (c *Client) sendLocal(ctx context.Context, req *ChatRequest) (string, error) {
	if req.Endpoint == "" {
		return "", ErrNoEndpoint
	}

	body, err := c.post(ctx, req.Endpoint, localPayload{
		Model:        req.Model,
		Messages:     req.Messages,
		MaxNewTokens: localMaxNewTokens,
		Temperature:  localTemperature,
		TopP:         localTopP,
	}, "")
	if err != nil {
		return "", err
	}

	// Known field first; otherwise the body itself is the reply text.
	var result localResponse
	if err := json.Unmarshal(body, &result); err == nil && result.Response != nil {
		if *result.Response == "" {
			return "", ErrEmptyReply
		}
		return *result.Response, nil
	}
	reply := strings.TrimSpace(string(body))
	if reply == "" {
		return "", ErrEmptyReply
	}
	c.logger.Debug("local reply received as bare body", "chars", len(reply))
	return reply, nil
}

// post issues a JSON POST and returns the response body of a 2xx reply.
func (c *Client) post(ctx context.Context, url string, payload any, bearer string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
