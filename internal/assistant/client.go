// Package assistant talks to an OpenAI-compatible chat completions gateway.
package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	ErrRateLimited     = errors.New("rate_limited")
	ErrPaymentRequired = errors.New("service_unavailable")
	ErrNotConfigured   = errors.New("assistant_not_configured")
	ErrEmptyCompletion = errors.New("empty_completion")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// GatewayError is a non-2xx answer the caller has no specific mapping for.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("llm gateway returned %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient targets <baseURL>/chat/completions. The stream path has no
// client timeout; cancellation comes from the request context.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

func (c *Client) Configured() bool { return c != nil && c.baseURL != "" }

// Complete runs a single non-streamed completion and returns the text of the
// first choice.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := c.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read completion: %w", err)
	}
	content := gjson.GetBytes(body, "choices.0.message.content").String()
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// Stream opens a streamed completion and calls onData with the JSON payload
// of every "data:" line until the gateway sends [DONE] or closes the stream.
func (c *Client) Stream(ctx context.Context, messages []Message, onData func(chunk []byte) error) error {
	resp, err := c.post(ctx, messages, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}
		if payload == "" || !gjson.Valid(payload) {
			continue
		}
		if err := onData([]byte(payload)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return ctx.Err()
}

// Delta extracts the incremental text from one streamed chunk.
func Delta(chunk []byte) string {
	return gjson.GetBytes(chunk, "choices.0.delta.content").String()
}

func (c *Client) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	raw, err := json.Marshal(completionRequest{Model: c.model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusPaymentRequired:
		return nil, ErrPaymentRequired
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return nil, &GatewayError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
