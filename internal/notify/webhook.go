package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
)

// Webhook posts {"user", "text"} JSON to a relay that forwards it to Slack.
type Webhook struct {
	url     string
	userID  string
	timeout time.Duration
	http    *http.Client
	logger  logger.Logger
}

type webhookPayload struct {
	User string `json:"user"`
	Text string `json:"text"`
}

func NewWebhook(cfg Config, log logger.Logger) *Webhook {
	return &Webhook{
		url:     cfg.WebhookURL,
		userID:  cfg.UserID,
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  log,
	}
}

func (w *Webhook) SendText(ctx context.Context, msg string) bool {
	if err := w.post(ctx, msg); err != nil {
		w.logger.Error().Err(err).Str("gateway", "webhook").Msg("Failed to send notification")
		return false
	}

	w.logger.Info().Str("gateway", "webhook").Msg("Notification sent")

	return true
}

func (w *Webhook) SupportsFiles() bool { return false }

// SendFile is unsupported: the relay accepts text only.
func (w *Webhook) SendFile(_ context.Context, path, _, _ string) bool {
	w.logger.Warn().Str("gateway", "webhook").Str("path", path).Msg("Webhook relay cannot deliver files")
	return false
}

func (w *Webhook) post(ctx context.Context, msg string) error {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	b, err := json.Marshal(webhookPayload{User: w.userID, Text: msg})
	if err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(b))
	if err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.http.Do(req)
	if err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode >= http.StatusMultipleChoices {
		return errFactory.WithData(ErrUnexpectedCode, struct {
			Status int
			Body   string
		}{
			Status: res.StatusCode,
			Body:   string(body),
		})
	}

	return nil
}
