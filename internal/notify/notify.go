package notify

import (
	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
)

// New builds the configured Gateway, wrapped with retries when enabled.
func New(cfg Config, log logger.Logger) (Gateway, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(errors.CodeOf(err), err)
	}

	var gw Gateway
	switch cfg.Kind {
	case KindWebhook:
		gw = NewWebhook(cfg, log)
	case KindSlack:
		gw = NewSlack(cfg, log)
	default:
		log.Debug().Msg("Notifications disabled, using discard gateway")
		return NewDiscard(log), nil
	}

	if cfg.Retries > 0 {
		gw = WithRetry(gw, cfg.Retries+1, cfg.RetryBackoff, log)
	}

	return gw, nil
}

// NewFileGateway builds a Gateway for actions that deliver images. Kinds that
// cannot carry files are rejected.
func NewFileGateway(cfg Config, log logger.Logger) (Gateway, error) {
	errFactory := errors.New()

	gw, err := New(cfg, log)
	if err != nil {
		return nil, err
	}

	if !SupportsFiles(gw) {
		return nil, errFactory.WithData(ErrFilesUnsupported, cfg.Kind)
	}

	return gw, nil
}
