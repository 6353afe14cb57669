package timeseries

import (
	"path/filepath"

	"codeberg.org/mutker/tlmon/internal/errors"
)

// Backend selects the storage implementation behind Log.
type Backend string

const (
	BackendCSV    Backend = "csv"
	BackendSQLite Backend = "sqlite"
)

const (
	// File system permissions and paths
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
	defaultLogPath  = "log/system_log.csv"
	defaultDBPath   = "log/system_log.db"
	backupSubdir    = "backups"
)

type Config struct {
	Backend Backend
	// Path is the CSV log file.
	Path string
	// DBPath is the SQLite database file.
	DBPath string
	// BackupDir receives a copy of the database before a schema reset.
	// Empty means a "backups" directory next to DBPath.
	BackupDir string
	// Labels name the directory columns, in configuration order.
	Labels []string
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendCSV,
		Path:    defaultLogPath,
		DBPath:  defaultDBPath,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch c.Backend {
	case BackendCSV:
		if c.Path == "" {
			return errFactory.WithMessage(ErrInvalidConfig, "log path must not be empty")
		}
	case BackendSQLite:
		if c.DBPath == "" {
			return errFactory.New(ErrInvalidDBPath)
		}
	default:
		return errFactory.WithData(ErrInvalidBackend, c.Backend)
	}

	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}

	return filepath.Join(filepath.Dir(c.DBPath), backupSubdir)
}
