// Package discord posts messages and file attachments to webhook endpoints.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookConfig controls the HTTP client behind the notifier.
type WebhookConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// Webhook implements relay.Notifier against Discord-compatible webhook URLs.
// One call posts to one endpoint; fanning out across endpoints is the
// dispatcher's job.
type Webhook struct {
	cfg        WebhookConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhook builds a Webhook notifier.
func NewWebhook(cfg WebhookConfig, logger *zap.Logger) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Post sends a text-only message.
func (w *Webhook) Post(ctx context.Context, hookURL string, content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return w.send(req)
}

// PostFile sends a message with attached file content as a multipart form:
// a content field plus a file part, the shape webhook endpoints expect for
// uploads.
func (w *Webhook) PostFile(ctx context.Context, hookURL string, content string, filename string, data []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if content != "" {
		if err := form.WriteField("content", content); err != nil {
			return fmt.Errorf("write content field: %w", err)
		}
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hookURL, &body)
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return w.send(req)
}

func (w *Webhook) send(req *http.Request) error {
	if w.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", w.cfg.UserAgent)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	w.logger.Debug("webhook post delivered", zap.Int("status", resp.StatusCode))
	return nil
}
