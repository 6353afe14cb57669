package timeseries

import (
	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
)

// Open returns the Log for the configured backend.
func Open(cfg Config, log logger.Logger) (Log, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	switch cfg.Backend {
	case BackendSQLite:
		l, err := NewSQLiteLog(cfg, log)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to open sqlite log")
			return nil, err
		}
		return l, nil
	default:
		log.Debug().
			Str("path", cfg.Path).
			Msg("Using CSV metrics log")
		return NewFileLog(cfg.Path, log), nil
	}
}
