package summary

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"codeberg.org/mutker/tlmon/internal/metrics"
	"codeberg.org/mutker/tlmon/internal/notify"
	"codeberg.org/mutker/tlmon/internal/timeseries"
)

const kbPerMB = 1024

// DirSizer measures a directory subtree in KiB.
type DirSizer interface {
	DiskUsageKB(ctx context.Context, path string) int64
}

type Config struct {
	// Labels name the directory columns, in configuration order.
	Labels []string
	// ImageDir is counted for the daily image total. Empty falls back to
	// summing the per-sample new-image column.
	ImageDir string
	// LogDir is reported as the size of the data directory.
	LogDir string
}

// Digest aggregates one calendar day of the metrics log.
type Digest struct {
	Date      string
	Rows      int
	Disks     []DiskPeak
	TempMean  float64 // NaN when no row has a readable temperature
	TempMax   float64 // NaN when no row has a readable temperature
	NewImages int
	LogDirKB  int64
}

// DiskPeak is the highest usage seen for one directory.
type DiskPeak struct {
	Label  string
	MaxPct float64 // NaN when no row has a readable value
}

type Summarizer struct {
	cfg    Config
	log    timeseries.Log
	images metrics.ImageCounter
	sizer  DirSizer
	logger logger.Logger
}

func NewSummarizer(cfg Config, log timeseries.Log, images metrics.ImageCounter, sizer DirSizer, lg logger.Logger) *Summarizer {
	return &Summarizer{
		cfg:    cfg,
		log:    log,
		images: images,
		sizer:  sizer,
		logger: lg,
	}
}

// Summarize aggregates the rows stamped on day. It returns ErrNoData when
// none match; a log that cannot be read is an ErrReadLog.
func (s *Summarizer) Summarize(ctx context.Context, day time.Time) (*Digest, error) {
	errFactory := errors.New()

	date := day.Format(metrics.DateLayout)

	rows, err := s.log.RowsForDate(ctx, date)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadLog, err)
	}
	if len(rows) == 0 {
		return nil, errFactory.WithData(ErrNoData, date)
	}

	d := &Digest{Date: date, Rows: len(rows)}

	for i, label := range s.cfg.Labels {
		if i >= metrics.MaxDirs {
			break
		}
		d.Disks = append(d.Disks, DiskPeak{
			Label:  label,
			MaxPct: columnMax(rows, timeseries.ColPct0+i),
		})
	}

	d.TempMean, d.TempMax = meanMax(rows, timeseries.ColCPUTemp)

	if s.cfg.ImageDir != "" {
		d.NewImages = s.images.CountImagesOn(ctx, s.cfg.ImageDir, day)
	} else {
		for _, r := range rows {
			if n, ok := r.Int(timeseries.ColNewImages); ok {
				d.NewImages += int(n)
			}
		}
	}

	if s.cfg.LogDir != "" {
		d.LogDirKB = s.sizer.DiskUsageKB(ctx, s.cfg.LogDir)
	}

	s.logger.Debug().
		Str("date", date).
		Int("rows", d.Rows).
		Int("new_images", d.NewImages).
		Int64("log_dir_kb", d.LogDirKB).
		Msg("Daily digest computed")

	return d, nil
}

// Message renders the digest for the notification channel.
func (d *Digest) Message() string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 *%s* summary", d.Date)

	if len(d.Disks) > 0 {
		parts := make([]string, 0, len(d.Disks))
		for _, p := range d.Disks {
			parts = append(parts, fmt.Sprintf("💾 %s max: %s", p.Label, formatPct(p.MaxPct)))
		}
		b.WriteString("\n" + strings.Join(parts, " / "))
	}

	fmt.Fprintf(&b, "\n🌡️ CPU avg %s / max %s", formatTemp(d.TempMean), formatTemp(d.TempMax))
	fmt.Fprintf(&b, "\n📷 Images captured: %d", d.NewImages)
	fmt.Fprintf(&b, "\n📝 Log directory: %.1f MB", float64(d.LogDirKB)/kbPerMB)
	fmt.Fprintf(&b, "\n🧾 Samples: %d", d.Rows)

	return b.String()
}

func columnMax(rows []timeseries.Row, col int) float64 {
	peak := math.NaN()
	for _, r := range rows {
		v, ok := r.Float(col)
		if !ok || math.IsNaN(v) {
			continue
		}
		if math.IsNaN(peak) || v > peak {
			peak = v
		}
	}

	return peak
}

func meanMax(rows []timeseries.Row, col int) (float64, float64) {
	var (
		sum float64
		n   int
	)
	peak := math.NaN()
	for _, r := range rows {
		v, ok := r.Float(col)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
		if math.IsNaN(peak) || v > peak {
			peak = v
		}
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}

	return sum / float64(n), peak
}

func formatPct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}

	return fmt.Sprintf("%.1f%%", v)
}

func formatTemp(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}

	return fmt.Sprintf("%.1f°C", v)
}

// Job runs the daily summary and delivers it.
type Job struct {
	summarizer *Summarizer
	gateway    notify.Gateway
	logger     logger.Logger
}

func NewJob(s *Summarizer, gw notify.Gateway, log logger.Logger) *Job {
	return &Job{summarizer: s, gateway: gw, logger: log}
}

// Run summarizes day. A day without rows is logged and is not an error;
// an unreadable log is. Delivery failures are logged only.
func (j *Job) Run(ctx context.Context, day time.Time, noNotify bool) (*Digest, error) {
	date := day.Format(metrics.DateLayout)
	j.logger.Info().Str("date", date).Msg("Daily summary started")

	d, err := j.summarizer.Summarize(ctx, day)
	if err != nil {
		if errors.Is(err, errors.New().New(ErrNoData)) {
			j.logger.Warn().Str("date", date).Msg("No metrics recorded for date, nothing to send")
			return nil, nil
		}
		j.logger.Error().Err(err).Str("date", date).Msg("Daily summary failed")
		return nil, err
	}

	msg := d.Message()
	switch {
	case noNotify:
		j.logger.Info().Str("date", date).Str("text", msg).Msg("Notification disabled, summary not sent")
	case j.gateway.SendText(ctx, msg):
		j.logger.Info().Str("date", date).Msg("Daily summary sent")
	default:
		j.logger.Error().Str("date", date).Msg("Failed to deliver daily summary")
	}

	return d, nil
}
