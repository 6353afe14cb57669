package timeseries

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
)

// snapshotColumns is the column set of the current snapshots table.
var snapshotColumns = []string{
	"id", "timestamp",
	"disk0_used_kb", "disk1_used_kb",
	"disk0_pct", "disk1_pct",
	"cpu_temp_c",
	"new_images", "total_images",
	"load1", "mem_pct",
}

func backupDatabase(db *sql.DB, backupDir string, version int, log logger.Logger) (string, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(backupDir, defaultDirPerm); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup_dir",
			Path:  backupDir,
			Error: err.Error(),
		})
	}

	backupPath := filepath.Join(backupDir,
		fmt.Sprintf("system_log_v%d_%s.db", version, backupTimestamp()))

	// VACUUM INTO requires no active transaction
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup",
			Path:  backupPath,
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", backupPath).
		Int("version", version).
		Msg("Database backup created")

	return backupPath, nil
}

// ValidateAndUpdateSchema brings the database to SchemaVersion without
// dropping recorded snapshots. Whenever a snapshots table already exists the
// database is copied into backupDir first. An unversioned table with the
// current layout is adopted in place; any other layout is renamed aside and
// a fresh table created. A failed backup leaves the database untouched.
func ValidateAndUpdateSchema(db *sql.DB, backupDir string, log logger.Logger) error {
	errFactory := errors.New()

	version, err := GetSchemaVersion(db)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to get schema version")
		return errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	if version == SchemaVersion {
		log.Debug().Int("version", version).Msg("Schema version is current")
		return nil
	}

	hasSnapshots, err := TableExists(db, "snapshots")
	if err != nil {
		return errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	log.Debug().
		Int("version", version).
		Bool("has_snapshots", hasSnapshots).
		Msg("Schema needs initialization")

	if !hasSnapshots {
		return InitSchema(db, log)
	}

	if _, err := backupDatabase(db, backupDir, version, log); err != nil {
		return err
	}

	if version == 0 {
		compatible, err := hasCurrentLayout(db)
		if err != nil {
			return errFactory.Wrap(ErrSchemaValidationFailed, err)
		}
		if compatible {
			log.Info().Msg("Adopting unversioned snapshots table")
			return InitSchema(db, log)
		}
	}

	archived := fmt.Sprintf("snapshots_v%d_%s", version, backupTimestamp())
	if err := archiveSnapshots(db, archived, log); err != nil {
		return err
	}

	return InitSchema(db, log)
}

func hasCurrentLayout(db *sql.DB) (bool, error) {
	rows, err := db.Query("SELECT name FROM pragma_table_info('snapshots')")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := make(map[string]bool, len(snapshotColumns))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	if len(found) != len(snapshotColumns) {
		return false, nil
	}
	for _, col := range snapshotColumns {
		if !found[col] {
			return false, nil
		}
	}

	return true, nil
}

// archiveSnapshots renames the snapshots table to name and clears the version
// history so InitSchema can record the current version.
func archiveSnapshots(db *sql.DB, name string, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback snapshot archive")
			}
		}
	}()

	statements := []string{
		"DROP INDEX IF EXISTS idx_snapshots_timestamp",
		fmt.Sprintf("ALTER TABLE snapshots RENAME TO %q", name),
		"DROP TABLE IF EXISTS schema_versions",
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return errFactory.WithData(ErrSchemaMigrationFailed, struct {
				Phase     string
				Statement string
				Error     string
			}{
				Phase:     "archive_snapshots",
				Statement: stmt,
				Error:     err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}
	committed = true

	log.Warn().Str("table", name).Msg("Snapshots with an incompatible schema kept in archive table")

	return nil
}
