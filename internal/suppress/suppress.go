package suppress

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644

	// legacyLayout is the local-time marker format of older deployments.
	legacyLayout = "2006-01-02 15:04:05"
)

// Gate rate-limits notifications for one alert channel.
type Gate interface {
	Suppressed(now time.Time) bool
	Mark(now time.Time) error
}

type Config struct {
	Path     string
	Cooldown time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Path == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "marker path must not be empty")
	}
	if c.Cooldown < 0 {
		return errFactory.WithData(ErrInvalidConfig, c.Cooldown)
	}

	return nil
}

// FileGate persists the last successful send as epoch seconds in a file.
// Unreadable or corrupt markers never block a notification.
type FileGate struct {
	cfg    Config
	logger logger.Logger
}

func NewFileGate(cfg Config, log logger.Logger) (*FileGate, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	return &FileGate{cfg: cfg, logger: log}, nil
}

func (g *FileGate) Suppressed(now time.Time) bool {
	last, ok := g.last()
	if !ok {
		return false
	}

	elapsed := now.Sub(last)
	suppressed := elapsed < g.cfg.Cooldown

	g.logger.Debug().
		Str("path", g.cfg.Path).
		Time("last_sent", last).
		Dur("elapsed", elapsed).
		Dur("cooldown", g.cfg.Cooldown).
		Bool("suppressed", suppressed).
		Msg("Checked suppression marker")

	return suppressed
}

// Mark replaces the marker through a rename in the same directory.
func (g *FileGate) Mark(now time.Time) error {
	errFactory := errors.New()

	dir := filepath.Dir(g.cfg.Path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return errFactory.Wrap(ErrMarkFailed, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(g.cfg.Path)+".*.tmp")
	if err != nil {
		return errFactory.Wrap(ErrMarkFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strconv.FormatInt(now.Unix(), 10) + "\n"); err != nil {
		tmp.Close()
		return errFactory.Wrap(ErrMarkFailed, err)
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		tmp.Close()
		return errFactory.Wrap(ErrMarkFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return errFactory.Wrap(ErrMarkFailed, err)
	}

	if err := os.Rename(tmp.Name(), g.cfg.Path); err != nil {
		return errFactory.WithData(ErrMarkFailed, struct {
			Path  string
			Error string
		}{
			Path:  g.cfg.Path,
			Error: err.Error(),
		})
	}

	g.logger.Debug().
		Str("path", g.cfg.Path).
		Int64("epoch", now.Unix()).
		Msg("Suppression marker updated")

	return nil
}

func (g *FileGate) last() (time.Time, bool) {
	raw, err := os.ReadFile(g.cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.Warn().Err(err).Str("path", g.cfg.Path).Msg("Unreadable suppression marker, ignoring")
		}
		return time.Time{}, false
	}

	last, ok := parseMarker(string(raw))
	if !ok {
		g.logger.Warn().Str("path", g.cfg.Path).Msg("Corrupt suppression marker, ignoring")
	}

	return last, ok
}

func parseMarker(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if epoch, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(epoch)
		nsec := int64((epoch - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec), true
	}

	if t, err := time.ParseInLocation(legacyLayout, s, time.Local); err == nil {
		return t, true
	}

	return time.Time{}, false
}
