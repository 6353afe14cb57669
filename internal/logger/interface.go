package logger

// Logger defines the interface for logging operations.
// Components receive a Logger instead of writing to the package-level logger,
// so tests can pass Nop() or a buffer-backed logger.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
}
