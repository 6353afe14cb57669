package summary

import "codeberg.org/mutker/tlmon/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrReadLog       = errors.ErrReadLog
	ErrNoData        = errors.ErrorCode("summary_no_data")
)
