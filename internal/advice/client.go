// Package advice is the client for the external Advice Gateway: a relay
// that accepts a text prompt and returns free-text narrative advice.
package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var (
	// ErrGateway covers non-success responses, network failures, and
	// response bodies that do not decode to the expected shape. Callers
	// recover locally with their rule-based fallbacks.
	ErrGateway = errors.New("advice gateway error")
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client. The timeout bounds the whole request;
// the engine itself never enforces one.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type adviceRequest struct {
	Prompt string `json:"prompt"`
}

// adviceResponse covers both gateway response shapes: a structured content
// list with text segments, or a plain message string.
type adviceResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Message string `json:"message"`
}

// Advise posts the prompt and returns the first text-typed segment of the
// response, or the plain message when no content list is present.
func (c *Client) Advise(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(adviceRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "Advice gateway request failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.ErrorContext(ctx, "Advice gateway returned non-success status",
			"status", resp.StatusCode,
			"body", string(raw))
		return "", fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	var decoded adviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}

	for _, seg := range decoded.Content {
		if seg.Type == "text" {
			return seg.Text, nil
		}
	}
	if decoded.Message != "" {
		return decoded.Message, nil
	}

	return "", fmt.Errorf("%w: response contains no text", ErrGateway)
}
