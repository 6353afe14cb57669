package brightness

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
)

const (
	defaultDark        = 0.07
	defaultBright      = 0.60
	defaultTrendWindow = 10
	defaultTrendDelta  = 0.05
)

type Config struct {
	// Dir holds the monthly brightness_YYYY-MM.csv files.
	Dir         string
	Dark        float64
	Bright      float64
	TrendWindow int
	TrendDelta  float64
}

func DefaultConfig() Config {
	return Config{
		Dir:         "log",
		Dark:        defaultDark,
		Bright:      defaultBright,
		TrendWindow: defaultTrendWindow,
		TrendDelta:  defaultTrendDelta,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Dir == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "brightness directory must not be empty")
	}
	if c.Dark < 0 || c.Bright <= c.Dark {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Dark   float64
			Bright float64
		}{
			Dark:   c.Dark,
			Bright: c.Bright,
		})
	}
	if c.TrendWindow < 2 || c.TrendDelta < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Window int
			Delta  float64
		}{
			Window: c.TrendWindow,
			Delta:  c.TrendDelta,
		})
	}

	return nil
}

// MonthlyPath returns the brightness log for the month of now.
func (c Config) MonthlyPath(now time.Time) string {
	return filepath.Join(c.Dir, "brightness_"+now.Format("2006-01")+".csv")
}
