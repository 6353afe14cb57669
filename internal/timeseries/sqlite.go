package timeseries

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"codeberg.org/mutker/tlmon/internal/metrics"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLog keeps snapshots in an embedded database. Rows read back are
// rendered through FormatRecord, so callers see the same fields as the CSV
// backend.
type SQLiteLog struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	mu     sync.Mutex
}

func NewSQLiteLog(cfg Config, log logger.Logger) (*SQLiteLog, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	// Validate if schema is current, with backup if needed
	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Debug().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("SQLite metrics log initialized")

	return &SQLiteLog{
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

func (l *SQLiteLog) Append(ctx context.Context, snapshot *metrics.Snapshot) error {
	errFactory := errors.New()

	l.mu.Lock()
	defer l.mu.Unlock()

	var disks [metrics.MaxDirs]metrics.DiskMetric
	copy(disks[:], snapshot.Disks)

	temp := sql.NullFloat64{Float64: snapshot.CPUTempC, Valid: !math.IsNaN(snapshot.CPUTempC)}

	values := []interface{}{
		snapshot.Stamp(),
		disks[0].UsedKB,
		disks[1].UsedKB,
		disks[0].Pct,
		disks[1].Pct,
		temp,
		snapshot.NewImages,
		snapshot.TotalImages,
		snapshot.Load1,
		snapshot.MemPct,
	}

	if _, err := l.db.ExecContext(ctx, GetInsertSnapshotSQL(), values...); err != nil {
		l.logger.Error().Err(err).Msg("Failed to execute insert")
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	l.logger.Debug().
		Str("path", l.cfg.DBPath).
		Str("timestamp", snapshot.Stamp()).
		Msg("Appended metrics record")

	return nil
}

func (l *SQLiteLog) RowsForDate(ctx context.Context, date string) ([]Row, error) {
	errFactory := errors.New()

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, GetSelectByDateSQL(), date+"%")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			stamp string
			disks [metrics.MaxDirs]metrics.DiskMetric
			temp  sql.NullFloat64
			snap  metrics.Snapshot
		)

		if err := rows.Scan(
			&stamp,
			&disks[0].UsedKB, &disks[1].UsedKB,
			&disks[0].Pct, &disks[1].Pct,
			&temp,
			&snap.NewImages, &snap.TotalImages,
			&snap.Load1, &snap.MemPct,
		); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}

		snap.Disks = disks[:]
		snap.CPUTempC = math.NaN()
		if temp.Valid {
			snap.CPUTempC = temp.Float64
		}

		rec := FormatRecord(&snap)
		// Stored text, not a reformatted time.
		rec[ColTimestamp] = stamp
		out = append(out, Row(rec))
	}

	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

func (l *SQLiteLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Checkpoint WAL and cleanup on close
	if _, err := l.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := l.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	l.logger.Debug().Msg("SQLite metrics log closed")

	return nil
}

func backupTimestamp() string {
	return time.Now().UTC().Format("20060102T150405Z")
}
