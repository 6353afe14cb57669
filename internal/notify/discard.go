package notify

import (
	"context"

	"codeberg.org/mutker/tlmon/internal/logger"
)

// Discard logs payloads and reports success.
type Discard struct {
	logger logger.Logger
}

func NewDiscard(log logger.Logger) *Discard {
	return &Discard{logger: log}
}

func (d *Discard) SendText(_ context.Context, msg string) bool {
	d.logger.Info().Str("gateway", "none").Str("text", msg).Msg("Notification discarded")
	return true
}

func (d *Discard) SendFile(_ context.Context, path, title, caption string) bool {
	d.logger.Info().
		Str("gateway", "none").
		Str("path", path).
		Str("title", title).
		Str("caption", caption).
		Msg("File notification discarded")
	return true
}
