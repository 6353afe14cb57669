package notify

import "codeberg.org/mutker/tlmon/internal/errors"

const (
	ErrInvalidConfig    = errors.ErrInvalidConfig
	ErrMissingConfig    = errors.ErrMissingConfig
	ErrInvalidKind      = errors.ErrorCode("notify_invalid_kind")
	ErrFilesUnsupported = errors.ErrorCode("notify_files_unsupported")
	ErrSendFailed       = errors.ErrNotify
	ErrUnexpectedCode   = errors.ErrorCode("notify_unexpected_status")
	ErrUserLookup       = errors.ErrorCode("notify_user_lookup_failed")
)
