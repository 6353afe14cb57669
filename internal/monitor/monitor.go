package monitor

import (
	"context"
	"time"

	"codeberg.org/mutker/tlmon/internal/alert"
	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"codeberg.org/mutker/tlmon/internal/metrics"
	"codeberg.org/mutker/tlmon/internal/notify"
	"codeberg.org/mutker/tlmon/internal/suppress"
	"codeberg.org/mutker/tlmon/internal/timeseries"
)

// Options alter a single cycle.
type Options struct {
	// IgnoreSuppress sends even inside the cooldown window.
	IgnoreSuppress bool
	// NoNotify evaluates and logs alerts without sending.
	NoNotify bool
	// ForceAlert injects the forced test condition.
	ForceAlert bool
}

// Result describes what one cycle did.
type Result struct {
	Snapshot   *metrics.Snapshot
	Conditions []alert.Condition
	Sent       bool
	Suppressed bool
}

type Config struct {
	Thresholds alert.Thresholds
	Host       string
}

// Monitor runs one sample, record, evaluate, notify cycle.
type Monitor struct {
	cfg     Config
	sampler metrics.Sampler
	log     timeseries.Log
	gate    suppress.Gate
	gateway notify.Gateway
	logger  logger.Logger
	now     func() time.Time
}

func New(cfg Config, sampler metrics.Sampler, log timeseries.Log, gate suppress.Gate, gw notify.Gateway, lg logger.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		sampler: sampler,
		log:     log,
		gate:    gate,
		gateway: gw,
		logger:  lg,
		now:     time.Now,
	}
}

// Run executes one cycle. Collection errors abort before anything is
// recorded. A failed append is logged, the cycle still evaluates and
// notifies, and the append error is returned at the end. Delivery failures
// are reported through Result.Sent only.
func (m *Monitor) Run(ctx context.Context, opts Options) (*Result, error) {
	errFactory := errors.New()

	start := m.now()
	m.logger.Info().
		Str("started", start.Format(metrics.TimestampLayout)).
		Bool("ignore_suppress", opts.IgnoreSuppress).
		Bool("no_notify", opts.NoNotify).
		Bool("force_alert", opts.ForceAlert).
		Msg("Monitoring cycle started")

	snap, err := m.sampler.Sample(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to collect metrics, cycle aborted")
		m.logger.Info().
			Bool("aborted", true).
			Dur("elapsed", m.now().Sub(start)).
			Msg("Monitoring cycle finished")
		return nil, errFactory.Wrap(errors.ErrCollectMetrics, err)
	}

	res := &Result{Snapshot: snap}

	var appendErr error
	if err := m.log.Append(ctx, snap); err != nil {
		m.logger.Error().Err(err).Str("timestamp", snap.Stamp()).Msg("Failed to append metrics record")
		appendErr = errFactory.Wrap(errors.ErrAppendLog, err)
	}

	res.Conditions = alert.Evaluate(snap, m.cfg.Thresholds, opts.ForceAlert)
	m.deliver(ctx, opts, res)

	m.logger.Info().
		Int("alerts", len(res.Conditions)).
		Bool("sent", res.Sent).
		Bool("suppressed", res.Suppressed).
		Dur("elapsed", m.now().Sub(start)).
		Msg("Monitoring cycle finished")

	return res, appendErr
}

func (m *Monitor) deliver(ctx context.Context, opts Options, res *Result) {
	if len(res.Conditions) == 0 {
		m.logger.Debug().Msg("All metrics within thresholds")
		return
	}

	kinds := make([]string, len(res.Conditions))
	for i, c := range res.Conditions {
		kinds[i] = c.Kind.String()
	}
	m.logger.Info().Strs("kinds", kinds).Msg("Alert conditions detected")

	if opts.NoNotify {
		m.logger.Info().Msg("Notification disabled, alert not sent")
		return
	}

	now := m.now()
	if !opts.IgnoreSuppress && m.gate.Suppressed(now) {
		res.Suppressed = true
		m.logger.Info().Msg("Alert suppressed by cooldown")
		return
	}

	if !m.gateway.SendText(ctx, alert.FormatAlert(m.cfg.Host, res.Conditions)) {
		m.logger.Error().Msg("Alert delivery failed, cooldown not started")
		return
	}
	res.Sent = true

	if err := m.gate.Mark(now); err != nil {
		m.logger.Error().Err(err).Msg("Failed to record alert time")
		return
	}

	m.logger.Info().Msg("Alert sent")
}
