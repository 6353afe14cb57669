package suppress

import "codeberg.org/mutker/tlmon/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrMarkFailed    = errors.ErrMarkSuppressed
)
