package timeseries

import "codeberg.org/mutker/tlmon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig  = errors.ErrInvalidConfig
	ErrInvalidDBPath  = errors.ErrorCode("timeseries_invalid_db_path")
	ErrInvalidBackend = errors.ErrorCode("timeseries_invalid_backend")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("timeseries_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("timeseries_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("timeseries_schema_migration_failed")

	// Storage Errors
	ErrLogUnavailable = errors.ErrorCode("timeseries_log_unavailable")
	ErrStorageAccess  = errors.ErrorCode("timeseries_storage_access_failed")
	ErrStorageInit    = errors.ErrInitFailed
	ErrStorageClose   = errors.ErrShutdownFailed
	ErrInvalidRecord  = errors.ErrorCode("timeseries_invalid_record")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
