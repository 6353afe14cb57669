package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/tlmon/internal/brightness"
	"codeberg.org/mutker/tlmon/internal/config"
	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"codeberg.org/mutker/tlmon/internal/metrics"
	"codeberg.org/mutker/tlmon/internal/monitor"
	"codeberg.org/mutker/tlmon/internal/notify"
	"codeberg.org/mutker/tlmon/internal/pid"
	"codeberg.org/mutker/tlmon/internal/summary"
	"codeberg.org/mutker/tlmon/internal/suppress"
	"codeberg.org/mutker/tlmon/internal/timeseries"
	"github.com/spf13/pflag"
)

const (
	actionMonitor    = "monitor"
	actionSummary    = "summary"
	actionBrightness = "brightness"
	actionReport     = "report"

	exitOK    = 0
	exitError = 1
)

type flags struct {
	configPath string
	noNotify   bool
	once       bool
	forceAlert bool
	date       string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	action, rest := splitAction(args)

	fs, f, err := parseFlags(action, rest, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "tlmon: %v\n", err)
		return exitError
	}

	cfg, err := config.Load(config.WithConfigFile(f.configPath), config.WithFlags(fs))
	if err != nil {
		fmt.Fprintf(stderr, "tlmon: failed to load config: %v\n", err)
		return exitError
	}

	level, err := logger.ParseLevel(cfg.LogLevel.String())
	if err != nil {
		fmt.Fprintf(stderr, "tlmon: %v\n", err)
		return exitError
	}

	log, closer, err := logger.Init(logger.Options{
		Level:   level,
		File:    cfg.LogFile,
		Service: logger.IsService(),
	})
	if err != nil {
		fmt.Fprintf(stderr, "tlmon: failed to initialize logger: %v\n", err)
		return exitError
	}
	defer closer.Close()

	log.Debug().
		Str("action", action).
		Str("data_dir", cfg.DataDir).
		Str("store", string(cfg.Store.Backend)).
		Str("notifier", string(cfg.Notify.Kind)).
		Msg("Config loaded")

	guard, err := pid.Acquire(cfg.PidDir, action)
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Another instance is already running")
		return exitError
	}
	defer func() {
		if err := guard.Release(); err != nil {
			log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gw, err := newGateway(action, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize notifications")
		return exitError
	}

	switch action {
	case actionSummary:
		err = runSummary(ctx, cfg, gw, log, f)
	case actionBrightness:
		err = runBrightness(ctx, cfg, gw, log, f)
	case actionReport:
		err = runReport(ctx, cfg, gw, log, f)
	default:
		err = runMonitor(ctx, cfg, gw, log, f)
	}

	if err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.ErrorWithCode(coded).Str("action", action).Msg("Action failed")
		} else {
			log.Error().Err(err).Str("action", action).Msg("Action failed")
		}
		return exitError
	}

	return exitOK
}

// splitAction takes the leading positional argument as the action.
func splitAction(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}

	return actionMonitor, args
}

func parseFlags(action string, args []string, stderr io.Writer) (*pflag.FlagSet, *flags, error) {
	errFactory := errors.New()

	f := &flags{}
	fs := pflag.NewFlagSet("tlmon "+action, pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "Path to a dotenv configuration file (default ./.env if present)")
	fs.String("log-level", string(config.DefaultLogLevel), "Log level: debug, info, warning, error")
	fs.Bool("debug", false, "Enable debug logging")
	fs.BoolVar(&f.noNotify, "no-notify", false, "Compute and log but do not send notifications")

	switch action {
	case actionMonitor:
		fs.BoolVar(&f.once, "once", false, "Ignore the alert cooldown for this run")
		fs.BoolVar(&f.forceAlert, "force-alert", false, "Inject a forced test alert")
	case actionSummary:
		fs.StringVar(&f.date, "date", "", "Day to summarize as YYYY-MM-DD (default yesterday)")
	case actionBrightness, actionReport:
	default:
		return nil, nil, errFactory.WithData(errors.ErrInvalidArgument, struct {
			Action string
		}{
			Action: action,
		})
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return fs, f, nil
}

// newGateway picks the text gateway for the metric actions and the
// file-capable one for the image actions.
func newGateway(action string, cfg *config.Config, log logger.Logger) (notify.Gateway, error) {
	switch action {
	case actionBrightness, actionReport:
		return notify.NewFileGateway(cfg.MediaNotify, log)
	default:
		return notify.New(cfg.Notify, log)
	}
}

func openCollector(cfg *config.Config, log logger.Logger) (*metrics.Collector, error) {
	return metrics.NewCollector(cfg.Metrics, log)
}

func runMonitor(ctx context.Context, cfg *config.Config, gw notify.Gateway, log logger.Logger, f *flags) error {
	collector, err := openCollector(cfg, log)
	if err != nil {
		return err
	}

	store, err := timeseries.Open(cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close metrics log")
		}
	}()

	gate, err := suppress.NewFileGate(cfg.Suppress, log)
	if err != nil {
		return err
	}

	m := monitor.New(monitor.Config{Thresholds: cfg.Thresholds, Host: cfg.Host}, collector, store, gate, gw, log)

	_, err = m.Run(ctx, monitor.Options{
		IgnoreSuppress: f.once,
		NoNotify:       f.noNotify,
		ForceAlert:     f.forceAlert,
	})

	return err
}

func runSummary(ctx context.Context, cfg *config.Config, gw notify.Gateway, log logger.Logger, f *flags) error {
	errFactory := errors.New()

	day := time.Now().AddDate(0, 0, -1)
	if f.date != "" {
		parsed, err := time.ParseInLocation(metrics.DateLayout, f.date, time.Local)
		if err != nil {
			return errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
		day = parsed
	}

	collector, err := openCollector(cfg, log)
	if err != nil {
		return err
	}

	store, err := timeseries.Open(cfg.Store, log)
	if err != nil {
		return err
	}
	defer store.Close()

	imageDir, _ := cfg.Metrics.ImageDir()
	s := summary.NewSummarizer(summary.Config{
		Labels:   cfg.Metrics.Labels(),
		ImageDir: imageDir,
		LogDir:   cfg.DataDir,
	}, store, collector, collector, log)

	_, err = summary.NewJob(s, gw, log).Run(ctx, day, f.noNotify)

	return err
}

func runBrightness(ctx context.Context, cfg *config.Config, gw notify.Gateway, log logger.Logger, f *flags) error {
	gate, err := suppress.NewFileGate(cfg.BrightnessGate, log)
	if err != nil {
		return err
	}

	checker, err := brightness.NewChecker(cfg.Brightness, gate, gw, log)
	if err != nil {
		return err
	}

	_, err = checker.Run(ctx, f.noNotify)

	return err
}

func runReport(ctx context.Context, cfg *config.Config, gw notify.Gateway, log logger.Logger, f *flags) error {
	reporter, err := brightness.NewReporter(cfg.Brightness, gw, log)
	if err != nil {
		return err
	}

	_, err = reporter.Run(ctx, f.noNotify)

	return err
}
