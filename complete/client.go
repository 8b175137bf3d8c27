// Package complete sends chat completion requests to an OpenAI-compatible
// endpoint such as LM Studio's local server.
package complete

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lmbridge "github.com/Paranoid-AF/lmbridge"
)

const (
	// ChatCompletionsPath is appended to the endpoint base URL.
	ChatCompletionsPath = "/v1/chat/completions"
	// Model is the placeholder model identifier; local servers answer with
	// whatever model is loaded.
	Model = "local-model"
	// Temperature is the fixed sampling temperature.
	Temperature = 0.7
	// DefaultTimeout bounds a single exchange.
	DefaultTimeout = 30 * time.Second
)

// Client performs single-shot chat completions.
type Client struct {
	client *http.Client
}

// NewClient creates a client whose requests time out after timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{client: &http.Client{Timeout: timeout}}
}

// NewClientWithHTTP creates a client using hc for transport.
func NewClientWithHTTP(hc *http.Client) *Client {
	if hc == nil {
		return NewClient(DefaultTimeout)
	}
	return &Client{client: hc}
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message *replyMessage `json:"message"`
}

type replyMessage struct {
	Content *string `json:"content"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete sends message as a single user turn to endpoint and returns the
// reply text exactly as reported in choices[0].message.content. Every
// failure is a *lmbridge.CompletionFailure.
func (c *Client) Complete(ctx context.Context, endpoint, message string) (string, error) {
	text, err := c.complete(ctx, endpoint, message)
	if err != nil {
		return "", &lmbridge.CompletionFailure{Endpoint: endpoint, Err: err}
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, endpoint, message string) (string, error) {
	if err := lmbridge.ValidateEndpoint(endpoint); err != nil {
		return "", err
	}

	reqBody := chatRequest{
		Messages:    []chatMessage{{Role: "user", Content: message}},
		Stream:      false,
		Model:       Model,
		Temperature: Temperature,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(endpoint, "/") + ChatCompletionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("completion request", "url", url, "bytes", len(data))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	slog.Debug("completion response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}

	if result.Error != nil {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	msg := result.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", errors.New("response missing choices[0].message.content")
	}

	return *msg.Content, nil
}
