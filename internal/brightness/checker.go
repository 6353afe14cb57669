package brightness

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"codeberg.org/mutker/tlmon/internal/notify"
	"codeberg.org/mutker/tlmon/internal/suppress"
)

const anomalyTitle = "Anomaly capture"

// CheckResult describes one brightness check.
type CheckResult struct {
	Entry      *Entry
	Status     Status
	Sent       bool
	Suppressed bool
}

// Checker alerts when the latest capture is too dark or too bright.
type Checker struct {
	cfg     Config
	gate    suppress.Gate
	gateway notify.Gateway
	logger  logger.Logger
	now     func() time.Time
}

func NewChecker(cfg Config, gate suppress.Gate, gw notify.Gateway, log logger.Logger) (*Checker, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	return &Checker{
		cfg:     cfg,
		gate:    gate,
		gateway: gw,
		logger:  log,
		now:     time.Now,
	}, nil
}

// Run checks the newest entry of this month's log. The cooldown is checked
// first; a log without a usable entry is an error.
func (c *Checker) Run(ctx context.Context, noNotify bool) (*CheckResult, error) {
	errFactory := errors.New()

	now := c.now()
	path := c.cfg.MonthlyPath(now)
	c.logger.Info().Str("path", path).Msg("Brightness check started")

	if c.gate.Suppressed(now) {
		c.logger.Info().Msg("Brightness alert in cooldown, skipping")
		return &CheckResult{Suppressed: true}, nil
	}

	rows, err := readRows(path)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("Failed to read brightness log")
		return nil, err
	}

	entry, ok := latestEntry(rows)
	if !ok {
		c.logger.Error().Str("path", path).Msg("No usable brightness entry")
		return nil, errFactory.WithData(ErrNoEntry, path)
	}

	res := &CheckResult{Entry: entry, Status: Classify(entry.Mean, c.cfg.Dark, c.cfg.Bright)}
	if res.Status == Normal {
		c.logger.Info().Str("mean", entry.Mean).Msg("Brightness within range")
		return res, nil
	}

	caption := fmt.Sprintf("📛 Brightness anomaly: `%s` (%s)\n🕒 %s", entry.Mean, res.Status, entry.Timestamp)
	if noNotify {
		c.logger.Info().Str("status", res.Status.String()).Str("caption", caption).Msg("Notification disabled, brightness alert not sent")
		return res, nil
	}

	if !c.gateway.SendFile(ctx, entry.ImagePath, anomalyTitle, caption) {
		c.logger.Error().Str("path", entry.ImagePath).Msg("Brightness alert delivery failed")
		return res, nil
	}
	res.Sent = true

	if err := c.gate.Mark(now); err != nil {
		c.logger.Error().Err(err).Msg("Failed to record brightness alert time")
		return res, nil
	}

	c.logger.Info().Str("status", res.Status.String()).Msg("Brightness alert sent")

	return res, nil
}
