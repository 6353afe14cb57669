package timeseries

import (
	"context"

	"codeberg.org/mutker/tlmon/internal/metrics"
)

// Log is the append-only store of metric snapshots.
type Log interface {
	// Append writes one record. Existing records are never rewritten.
	Append(ctx context.Context, snapshot *metrics.Snapshot) error
	// RowsForDate returns every record whose timestamp starts with date
	// (YYYY-MM-DD), padded to RecordWidth.
	RowsForDate(ctx context.Context, date string) ([]Row, error)
	Close() error
}

// RecordWidth is the number of fields in a current record.
const RecordWidth = 10

// Record field positions.
const (
	ColTimestamp = iota
	ColUsedKB0
	ColUsedKB1
	ColPct0
	ColPct1
	ColCPUTemp
	ColNewImages
	ColTotalImages
	ColLoad1
	ColMemPct
)
