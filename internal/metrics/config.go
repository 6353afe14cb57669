package metrics

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
)

const (
	// MaxDirs is the number of directory columns in a log record.
	MaxDirs = 2

	defaultPartitionRoot  = "/home/pi"
	defaultImageDirLabel  = "archived"
	defaultImagePattern   = "*.jpg"
	defaultNewImageWindow = time.Hour
	defaultTempSensor     = "cpu_thermal"
	defaultThermalZone    = "/sys/class/thermal/thermal_zone0/temp"
	defaultTimeout        = 20 * time.Second
)

type Config struct {
	Dirs           []Dir
	PartitionRoot  string
	ImageDirLabel  string
	ImagePattern   string
	NewImageWindow time.Duration
	TempSensor     string
	ThermalZone    string
	Timeout        time.Duration
}

func DefaultConfig() Config {
	return Config{
		Dirs: []Dir{
			{Label: "images", Path: "/home/pi/timelapse-system/images"},
			{Label: "archived", Path: "/home/pi/timelapse-system/archived"},
		},
		PartitionRoot:  defaultPartitionRoot,
		ImageDirLabel:  defaultImageDirLabel,
		ImagePattern:   defaultImagePattern,
		NewImageWindow: defaultNewImageWindow,
		TempSensor:     defaultTempSensor,
		ThermalZone:    defaultThermalZone,
		Timeout:        defaultTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if len(c.Dirs) == 0 || len(c.Dirs) > MaxDirs {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Count int
		}{
			Field: "disk_paths",
			Count: len(c.Dirs),
		})
	}

	seen := make(map[string]bool, len(c.Dirs))
	for _, d := range c.Dirs {
		if d.Label == "" || d.Path == "" || seen[d.Label] {
			return errFactory.WithData(ErrInvalidConfig, struct {
				Field string
				Label string
				Path  string
			}{
				Field: "disk_paths",
				Label: d.Label,
				Path:  d.Path,
			})
		}
		seen[d.Label] = true
	}

	if c.PartitionRoot == "" {
		return errFactory.WithData(ErrInvalidConfig, "partition_root is empty")
	}

	if _, err := filepath.Match(c.ImagePattern, ""); err != nil || c.ImagePattern == "" {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field   string
			Pattern string
		}{
			Field:   "image_pattern",
			Pattern: c.ImagePattern,
		})
	}

	if c.NewImageWindow <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "new_image_window must be positive")
	}

	return nil
}

// ImageDir returns the path of the directory whose images are counted.
func (c Config) ImageDir() (string, bool) {
	for _, d := range c.Dirs {
		if d.Label == c.ImageDirLabel {
			return d.Path, true
		}
	}

	return "", false
}

// Labels returns the directory labels in configuration order.
func (c Config) Labels() []string {
	labels := make([]string, len(c.Dirs))
	for i, d := range c.Dirs {
		labels[i] = d.Label
	}

	return labels
}
