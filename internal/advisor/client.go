// internal/advisor/client.go
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"healthara/internal/models"
)

// Completer is the opaque chat-completion endpoint the session talks to.
type Completer interface {
	Complete(ctx context.Context, payload *models.RequestPayload) (string, error)
}

type Config struct {
	Endpoint   string
	APIKey     string
	Deployment string // Azure deployment name; empty selects the OpenAI-compatible path
	APIVersion string
	Model      string
	Timeout    time.Duration
}

// Client calls an Azure OpenAI deployment or any OpenAI-compatible
// chat completions endpoint.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-12-01-preview"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg: cfg,
	}
}

// Complete sends the payload and returns the assistant text. Every failure
// except caller cancellation wraps models.ErrServiceUnavailable.
func (c *Client) Complete(ctx context.Context, payload *models.RequestPayload) (string, error) {
	if c.cfg.Endpoint == "" || c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: advisor endpoint or API key not configured", models.ErrServiceUnavailable)
	}

	body := *payload
	if body.Model == "" {
		body.Model = c.cfg.Model
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create HTTP request: %v", models.ErrServiceUnavailable, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Deployment != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: HTTP request failed: %v", models.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: failed to read response: %v", models.ErrServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(bodyBytes, "error.message").String()
		if msg == "" {
			msg = truncate(string(bodyBytes), 200)
		}
		return "", fmt.Errorf("%w: request failed with status %d: %s", models.ErrServiceUnavailable, resp.StatusCode, msg)
	}

	return parseCompletion(bodyBytes)
}

func (c *Client) completionsURL() string {
	base := strings.TrimRight(c.cfg.Endpoint, "/")
	if c.cfg.Deployment == "" {
		return base + "/chat/completions"
	}
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		base, url.PathEscape(c.cfg.Deployment), url.QueryEscape(c.cfg.APIVersion))
}

func parseCompletion(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: response is not valid JSON", models.ErrServiceUnavailable)
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() || strings.TrimSpace(content.String()) == "" {
		reason := gjson.GetBytes(body, "choices.0.finish_reason").String()
		return "", fmt.Errorf("%w: empty completion (finish_reason=%q)", models.ErrServiceUnavailable, reason)
	}
	return content.String(), nil
}

// IsRetryable reports whether err is a transient advisor failure.
func IsRetryable(err error) bool {
	return errors.Is(err, models.ErrServiceUnavailable)
}

func truncate(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
