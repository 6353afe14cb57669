package brightness

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"codeberg.org/mutker/tlmon/internal/notify"
)

const (
	reportTitle = "Latest capture"
	noValue     = "n/a"
)

// Report is the periodic brightness report.
type Report struct {
	LatestMean string
	ImagePath  string
	Trend      Trend
	Caption    string
	Sent       bool
}

// Reporter sends the latest capture with a brightness trend.
type Reporter struct {
	cfg     Config
	gateway notify.Gateway
	logger  logger.Logger
	now     func() time.Time
}

func NewReporter(cfg Config, gw notify.Gateway, log logger.Logger) (*Reporter, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	return &Reporter{cfg: cfg, gateway: gw, logger: log, now: time.Now}, nil
}

// Run builds the report from this month's log. A missing image is logged
// and leaves Sent false.
func (r *Reporter) Run(ctx context.Context, noNotify bool) (*Report, error) {
	now := r.now()
	path := r.cfg.MonthlyPath(now)
	r.logger.Info().Str("path", path).Msg("Brightness report started")

	rows, err := readRows(path)
	if err != nil {
		r.logger.Error().Err(err).Str("path", path).Msg("Failed to read brightness log")
		return nil, err
	}

	rep := &Report{
		LatestMean: noValue,
		Trend:      AnalyzeTrend(rows, r.cfg.TrendWindow, r.cfg.TrendDelta),
	}
	if n := len(rows); n > 0 {
		last := rows[n-1]
		if len(last) > colMean {
			rep.LatestMean = strings.TrimSpace(last[colMean])
		}
		if len(last) > colImage {
			rep.ImagePath = strings.TrimSpace(last[colImage])
		}
	}

	rep.Caption = fmt.Sprintf("📡 *Timelapse report*\n> 🕒 %s\n> 💡 Mean brightness: `%s`\n> 📊 Trend: %s",
		now.Format("2006-01-02 15:04:05"), rep.LatestMean, rep.Trend)

	if noNotify {
		r.logger.Info().Str("caption", rep.Caption).Msg("Notification disabled, report not sent")
		return rep, nil
	}

	if rep.ImagePath == "" {
		r.logger.Error().Str("path", path).Msg("Latest entry has no image path, report not sent")
		return rep, nil
	}
	if _, err := os.Stat(rep.ImagePath); err != nil {
		r.logger.Error().Err(err).Str("path", rep.ImagePath).Msg("Latest image not found, report not sent")
		return rep, nil
	}

	rep.Sent = r.gateway.SendFile(ctx, rep.ImagePath, reportTitle, rep.Caption)
	if !rep.Sent {
		r.logger.Error().Str("path", rep.ImagePath).Msg("Report delivery failed")
		return rep, nil
	}

	r.logger.Info().Str("trend", rep.Trend.String()).Msg("Brightness report sent")

	return rep, nil
}
