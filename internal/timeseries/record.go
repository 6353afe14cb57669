package timeseries

import (
	"math"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/metrics"
)

const (
	padValue  = "0"
	nanValue  = "nan"
	floatPrec = 2
)

// Row is one record as read back from the log, always RecordWidth long.
type Row []string

// PadRow copies fields into a Row, filling missing trailing columns with "0".
// Extra columns from a future schema are kept.
func PadRow(fields []string) Row {
	width := max(len(fields), RecordWidth)
	row := make(Row, width)
	copy(row, fields)
	for i := len(fields); i < width; i++ {
		row[i] = padValue
	}

	return row
}

// Timestamp returns the raw timestamp field.
func (r Row) Timestamp() string {
	return r[ColTimestamp]
}

// Float parses column i. ok is false for unparseable values.
func (r Row) Float(i int) (float64, bool) {
	if i < 0 || i >= len(r) {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(r[i]), 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// Int parses column i as an integer, accepting float notation.
func (r Row) Int(i int) (int64, bool) {
	if i < 0 || i >= len(r) {
		return 0, false
	}

	s := strings.TrimSpace(r[i])
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return int64(f), true
}

// FormatRecord renders a snapshot as the fixed ten-field record. Directories
// beyond the first metrics.MaxDirs are not representable; missing ones are
// written as zero.
func FormatRecord(s *metrics.Snapshot) []string {
	rec := make([]string, RecordWidth)
	rec[ColTimestamp] = s.Stamp()

	for i := 0; i < metrics.MaxDirs; i++ {
		var d metrics.DiskMetric
		if i < len(s.Disks) {
			d = s.Disks[i]
		}
		rec[ColUsedKB0+i] = strconv.FormatInt(d.UsedKB, 10)
		rec[ColPct0+i] = formatFloat(d.Pct)
	}

	rec[ColCPUTemp] = formatFloat(s.CPUTempC)
	rec[ColNewImages] = strconv.Itoa(s.NewImages)
	rec[ColTotalImages] = strconv.Itoa(s.TotalImages)
	rec[ColLoad1] = formatFloat(s.Load1)
	rec[ColMemPct] = formatFloat(s.MemPct)

	return rec
}

// ParseSnapshot rebuilds a snapshot from a padded row. labels name the
// directory columns in configuration order.
func ParseSnapshot(r Row, labels []string) (*metrics.Snapshot, error) {
	errFactory := errors.New()

	r = PadRow(r)

	ts, err := time.ParseInLocation(metrics.TimestampLayout, strings.TrimSpace(r.Timestamp()), time.Local)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidRecord, err)
	}

	snap := &metrics.Snapshot{Timestamp: ts}

	for i, label := range labels {
		if i >= metrics.MaxDirs {
			break
		}
		used, ok := r.Int(ColUsedKB0 + i)
		if !ok {
			return nil, invalidField(ColUsedKB0+i, r)
		}
		pct, ok := r.Float(ColPct0 + i)
		if !ok {
			return nil, invalidField(ColPct0+i, r)
		}
		snap.Disks = append(snap.Disks, metrics.DiskMetric{Label: label, UsedKB: used, Pct: pct})
	}

	var ok bool
	if snap.CPUTempC, ok = r.Float(ColCPUTemp); !ok {
		return nil, invalidField(ColCPUTemp, r)
	}
	if snap.Load1, ok = r.Float(ColLoad1); !ok {
		return nil, invalidField(ColLoad1, r)
	}
	if snap.MemPct, ok = r.Float(ColMemPct); !ok {
		return nil, invalidField(ColMemPct, r)
	}

	newImages, ok := r.Int(ColNewImages)
	if !ok {
		return nil, invalidField(ColNewImages, r)
	}
	totalImages, ok := r.Int(ColTotalImages)
	if !ok {
		return nil, invalidField(ColTotalImages, r)
	}
	snap.NewImages = int(newImages)
	snap.TotalImages = int(totalImages)

	return snap, nil
}

func invalidField(col int, r Row) error {
	return errors.New().WithData(ErrInvalidRecord, struct {
		Column int
		Value  string
	}{
		Column: col,
		Value:  r[col],
	})
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return nanValue
	}

	return strconv.FormatFloat(v, 'f', floatPrec, 64)
}
