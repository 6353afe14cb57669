package metrics

import (
	"context"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"
)

const bytesPerKB = 1024

// Collector queries host state. Disk and temperature queries degrade to a
// sentinel value; load, memory and partition queries return errors.
type Collector struct {
	cfg    Config
	logger logger.Logger
	now    func() time.Time

	// Overridable host sources for testing.
	temperatures func(ctx context.Context) ([]sensors.TemperatureStat, error)
	loadAvg      func(ctx context.Context) (*load.AvgStat, error)
	virtualMem   func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	usage        func(ctx context.Context, path string) (*disk.UsageStat, error)
}

func NewCollector(cfg Config, log logger.Logger) (*Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	return &Collector{
		cfg:          cfg,
		logger:       log,
		now:          time.Now,
		temperatures: sensors.TemperaturesWithContext,
		loadAvg:      load.AvgWithContext,
		virtualMem:   mem.VirtualMemoryWithContext,
		usage:        disk.UsageWithContext,
	}, nil
}

// Sample collects a full Snapshot. Only the partition, load and memory
// queries can fail it.
func (c *Collector) Sample(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Timestamp: c.now()}

	totalKB, err := c.PartitionTotalKB(ctx, c.cfg.PartitionRoot)
	if err != nil {
		return nil, err
	}

	snap.Disks = make([]DiskMetric, 0, len(c.cfg.Dirs))
	for _, d := range c.cfg.Dirs {
		used := c.DiskUsageKB(ctx, d.Path)
		var pct float64
		if totalKB > 0 {
			pct = float64(used) / float64(totalKB) * 100
		}
		snap.Disks = append(snap.Disks, DiskMetric{Label: d.Label, UsedKB: used, Pct: pct})
	}

	snap.CPUTempC = c.CPUTemperature(ctx)

	if snap.Load1, err = c.LoadAverage1m(ctx); err != nil {
		return nil, err
	}

	if snap.MemPct, err = c.MemoryPercent(ctx); err != nil {
		return nil, err
	}

	if dir, ok := c.cfg.ImageDir(); ok {
		counts := c.ImageCounts(ctx, dir, c.cfg.NewImageWindow)
		snap.NewImages = counts.New
		snap.TotalImages = counts.Total
	} else {
		c.logger.Warn().Str("label", c.cfg.ImageDirLabel).Msg("Image directory label not configured, image counts left at zero")
	}

	c.logger.Debug().
		Str("timestamp", snap.Stamp()).
		Float64("cpu_temp_c", snap.CPUTempC).
		Float64("load1", snap.Load1).
		Float64("mem_pct", snap.MemPct).
		Int("new_images", snap.NewImages).
		Int("total_images", snap.TotalImages).
		Msg("Snapshot collected")

	return snap, nil
}

// DiskUsageKB returns the allocated size of the subtree at path in KiB.
// An unreadable root yields 0; unreadable children are skipped.
func (c *Collector) DiskUsageKB(ctx context.Context, path string) int64 {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	var total int64
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			c.logger.Debug().Err(err).Str("path", p).Msg("Skipping unreadable entry")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += allocatedBytes(info)

		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Str("metric", "disk_usage").Msg("Failed to measure directory size")
		return 0
	}

	return total / bytesPerKB
}

// PartitionTotalKB returns the capacity of the partition holding root.
func (c *Collector) PartitionTotalKB(ctx context.Context, root string) (int64, error) {
	errFactory := errors.New()

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	usage, err := c.usage(ctx, root)
	if err != nil {
		return 0, errFactory.Wrap(ErrPartitionFailed, err).WithData(struct {
			Path  string
			Error string
		}{
			Path:  root,
			Error: err.Error(),
		})
	}

	return int64(usage.Total / bytesPerKB), nil
}

// CPUTemperature reads the configured hardware sensor, falls back to the raw
// thermal zone value in millidegrees, and returns NaN when neither exists.
func (c *Collector) CPUTemperature(ctx context.Context) float64 {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if c.cfg.TempSensor != "" {
		stats, err := c.temperatures(ctx)
		for _, s := range stats {
			if strings.HasPrefix(s.SensorKey, c.cfg.TempSensor) {
				return s.Temperature
			}
		}
		if err != nil {
			c.logger.Debug().Err(err).Str("sensor", c.cfg.TempSensor).Msg("Sensor query failed, trying thermal zone")
		}
	}

	raw, err := os.ReadFile(c.cfg.ThermalZone)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", c.cfg.ThermalZone).Str("metric", "cpu_temp").Msg("No temperature source available")
		return math.NaN()
	}

	milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", c.cfg.ThermalZone).Str("metric", "cpu_temp").Msg("Unreadable thermal zone value")
		return math.NaN()
	}

	return milli / 1000
}

func (c *Collector) LoadAverage1m(ctx context.Context) (float64, error) {
	errFactory := errors.New()

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	avg, err := c.loadAvg(ctx)
	if err != nil {
		return 0, errFactory.Wrap(ErrLoadAverageFailed, err)
	}

	return avg.Load1, nil
}

func (c *Collector) MemoryPercent(ctx context.Context) (float64, error) {
	errFactory := errors.New()

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	vm, err := c.virtualMem(ctx)
	if err != nil {
		return 0, errFactory.Wrap(ErrMemoryFailed, err)
	}

	return vm.UsedPercent, nil
}

// RecentImageCount counts images under dir modified within window of now.
func (c *Collector) RecentImageCount(ctx context.Context, dir string, window time.Duration) int {
	return c.ImageCounts(ctx, dir, window).New
}

// ImageCounts counts every image under dir and those modified within window.
func (c *Collector) ImageCounts(ctx context.Context, dir string, window time.Duration) ImageCount {
	now := c.now()

	var counts ImageCount
	err := c.walkImages(ctx, dir, func(mod time.Time) {
		counts.Total++
		if now.Sub(mod) < window {
			counts.New++
		}
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("path", dir).Str("metric", "image_count").Msg("Failed to count images")
		return ImageCount{}
	}

	return counts
}

// CountImagesOn counts images under dir whose modification time falls on the
// local calendar day of day.
func (c *Collector) CountImagesOn(ctx context.Context, dir string, day time.Time) int {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var n int
	err := c.walkImages(ctx, dir, func(mod time.Time) {
		if !mod.Before(start) && mod.Before(end) {
			n++
		}
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("path", dir).Str("metric", "image_count").Msg("Failed to count images for day")
		return 0
	}

	return n
}

func (c *Collector) walkImages(ctx context.Context, dir string, visit func(mod time.Time)) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(c.cfg.ImagePattern, d.Name()); !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		visit(info.ModTime())

		return nil
	})
}

func (c *Collector) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.cfg.Timeout)
}

func allocatedBytes(info fs.FileInfo) int64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return int64(st.Blocks) * 512 //nolint:unconvert
	}

	return info.Size()
}
