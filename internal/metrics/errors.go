package metrics

import "codeberg.org/mutker/tlmon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig

	// Collection Errors
	ErrPartitionFailed   = errors.ErrorCode("metrics_partition_usage_failed")
	ErrLoadAverageFailed = errors.ErrorCode("metrics_load_average_failed")
	ErrMemoryFailed      = errors.ErrorCode("metrics_memory_failed")
)
