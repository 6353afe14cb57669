package metrics

import (
	"context"
	"time"
)

const (
	// TimestampLayout is the minute-resolution encoding used in the log.
	TimestampLayout = "2006-01-02 15:04"
	// DateLayout is the prefix of TimestampLayout used to select a day.
	DateLayout = "2006-01-02"
)

// Sampler produces one Snapshot per monitoring cycle.
type Sampler interface {
	Sample(ctx context.Context) (*Snapshot, error)
}

// ImageCounter counts captured images for a calendar day.
type ImageCounter interface {
	CountImagesOn(ctx context.Context, dir string, day time.Time) int
}

// Snapshot is one timestamped set of collected metrics.
type Snapshot struct {
	Timestamp   time.Time
	Disks       []DiskMetric
	CPUTempC    float64 // NaN when no sensor is readable
	Load1       float64
	MemPct      float64
	NewImages   int
	TotalImages int
}

// Stamp returns the timestamp as written to the log.
func (s *Snapshot) Stamp() string {
	return s.Timestamp.Format(TimestampLayout)
}

// DiskMetric is the usage of one monitored directory.
type DiskMetric struct {
	Label  string
	UsedKB int64
	Pct    float64
}

// ImageCount splits matching images into recent and total.
type ImageCount struct {
	New   int
	Total int
}

// Dir is a monitored directory.
type Dir struct {
	Label string
	Path  string
}
