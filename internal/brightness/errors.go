package brightness

import "codeberg.org/mutker/tlmon/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrReadLog       = errors.ErrReadLog
	ErrNoEntry       = errors.ErrorCode("brightness_no_entry")
)
