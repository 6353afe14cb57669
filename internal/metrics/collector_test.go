package metrics

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/tlmon/internal/logger"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.Local)

func newTestCollector(t *testing.T, cfg Config) *Collector {
	t.Helper()

	c, err := NewCollector(cfg, logger.Nop())
	require.NoError(t, err)

	c.now = func() time.Time { return fixedNow }
	c.temperatures = func(context.Context) ([]sensors.TemperatureStat, error) {
		return nil, errors.New("no sensors")
	}
	c.loadAvg = func(context.Context) (*load.AvgStat, error) {
		return &load.AvgStat{Load1: 0.42}, nil
	}
	c.virtualMem = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: 37.5}, nil
	}
	c.usage = func(context.Context, string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 1000 * 1024 * 1024}, nil
	}

	return c
}

func testConfig(t *testing.T) Config {
	t.Helper()

	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Dirs = []Dir{
		{Label: "images", Path: filepath.Join(root, "images")},
		{Label: "archived", Path: filepath.Join(root, "archived")},
	}
	cfg.PartitionRoot = root
	cfg.ThermalZone = filepath.Join(root, "thermal_zone0", "temp")
	for _, d := range cfg.Dirs {
		require.NoError(t, os.MkdirAll(d.Path, 0o755))
	}

	return cfg
}

func writeImage(t *testing.T, path string, mod time.Time) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data := make([]byte, 10*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestDiskUsageKB(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCollector(t, cfg)

	writeImage(t, filepath.Join(cfg.Dirs[0].Path, "a.jpg"), fixedNow)
	writeImage(t, filepath.Join(cfg.Dirs[0].Path, "sub", "b.jpg"), fixedNow)

	used := c.DiskUsageKB(context.Background(), cfg.Dirs[0].Path)
	assert.GreaterOrEqual(t, used, int64(20))
}

func TestDiskUsageKBMissingPath(t *testing.T) {
	c := newTestCollector(t, testConfig(t))

	assert.Equal(t, int64(0), c.DiskUsageKB(context.Background(), "/nonexistent/tlmon/path"))
}

func TestDiskUsageKBCancelled(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCollector(t, cfg)
	writeImage(t, filepath.Join(cfg.Dirs[0].Path, "a.jpg"), fixedNow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, int64(0), c.DiskUsageKB(ctx, cfg.Dirs[0].Path))
}

func TestCPUTemperature(t *testing.T) {
	t.Run("primary sensor", func(t *testing.T) {
		c := newTestCollector(t, testConfig(t))
		c.temperatures = func(context.Context) ([]sensors.TemperatureStat, error) {
			return []sensors.TemperatureStat{
				{SensorKey: "rp1_adc", Temperature: 30},
				{SensorKey: "cpu_thermal_input", Temperature: 51.5},
			}, nil
		}

		assert.InDelta(t, 51.5, c.CPUTemperature(context.Background()), 1e-9)
	})

	t.Run("partial sensor results are used", func(t *testing.T) {
		c := newTestCollector(t, testConfig(t))
		c.temperatures = func(context.Context) ([]sensors.TemperatureStat, error) {
			return []sensors.TemperatureStat{{SensorKey: "cpu_thermal", Temperature: 48}}, errors.New("warnings")
		}

		assert.InDelta(t, 48.0, c.CPUTemperature(context.Background()), 1e-9)
	})

	t.Run("thermal zone fallback", func(t *testing.T) {
		cfg := testConfig(t)
		c := newTestCollector(t, cfg)
		require.NoError(t, os.MkdirAll(filepath.Dir(cfg.ThermalZone), 0o755))
		require.NoError(t, os.WriteFile(cfg.ThermalZone, []byte("47234\n"), 0o644))

		assert.InDelta(t, 47.234, c.CPUTemperature(context.Background()), 1e-9)
	})

	t.Run("no source is NaN", func(t *testing.T) {
		c := newTestCollector(t, testConfig(t))

		assert.True(t, math.IsNaN(c.CPUTemperature(context.Background())))
	})

	t.Run("garbage thermal zone is NaN", func(t *testing.T) {
		cfg := testConfig(t)
		c := newTestCollector(t, cfg)
		require.NoError(t, os.MkdirAll(filepath.Dir(cfg.ThermalZone), 0o755))
		require.NoError(t, os.WriteFile(cfg.ThermalZone, []byte("n/a"), 0o644))

		assert.True(t, math.IsNaN(c.CPUTemperature(context.Background())))
	})
}

func TestImageCounts(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCollector(t, cfg)
	dir := cfg.Dirs[1].Path

	writeImage(t, filepath.Join(dir, "new1.jpg"), fixedNow.Add(-10*time.Minute))
	writeImage(t, filepath.Join(dir, "2025-05-01", "new2.jpg"), fixedNow.Add(-59*time.Minute))
	writeImage(t, filepath.Join(dir, "old.jpg"), fixedNow.Add(-2*time.Hour))
	writeImage(t, filepath.Join(dir, "clip.mp4"), fixedNow)

	counts := c.ImageCounts(context.Background(), dir, time.Hour)
	assert.Equal(t, ImageCount{New: 2, Total: 3}, counts)
	assert.Equal(t, 2, c.RecentImageCount(context.Background(), dir, time.Hour))
	assert.Equal(t, 1, c.RecentImageCount(context.Background(), dir, 30*time.Minute))
}

func TestImageCountsMissingDir(t *testing.T) {
	c := newTestCollector(t, testConfig(t))

	assert.Equal(t, ImageCount{}, c.ImageCounts(context.Background(), "/nonexistent/tlmon", time.Hour))
}

func TestCountImagesOn(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCollector(t, cfg)
	dir := cfg.Dirs[1].Path
	day := time.Date(2025, 4, 30, 0, 0, 0, 0, time.Local)

	writeImage(t, filepath.Join(dir, "a.jpg"), day.Add(time.Minute))
	writeImage(t, filepath.Join(dir, "b.jpg"), day.Add(23*time.Hour+59*time.Minute))
	writeImage(t, filepath.Join(dir, "c.jpg"), day.Add(24*time.Hour))
	writeImage(t, filepath.Join(dir, "d.jpg"), day.Add(-time.Second))

	assert.Equal(t, 2, c.CountImagesOn(context.Background(), dir, day.Add(15*time.Hour)))
}

func TestSample(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCollector(t, cfg)
	c.temperatures = func(context.Context) ([]sensors.TemperatureStat, error) {
		return []sensors.TemperatureStat{{SensorKey: "cpu_thermal", Temperature: 55}}, nil
	}
	writeImage(t, filepath.Join(cfg.Dirs[1].Path, "x.jpg"), fixedNow.Add(-time.Minute))

	snap, err := c.Sample(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-05-01 12:00", snap.Stamp())
	require.Len(t, snap.Disks, 2)
	assert.Equal(t, "images", snap.Disks[0].Label)
	assert.Equal(t, "archived", snap.Disks[1].Label)
	assert.Greater(t, snap.Disks[1].UsedKB, int64(0))
	assert.InDelta(t, float64(snap.Disks[1].UsedKB)/(1000*1024)*100, snap.Disks[1].Pct, 1e-9)
	assert.InDelta(t, 55.0, snap.CPUTempC, 1e-9)
	assert.InDelta(t, 0.42, snap.Load1, 1e-9)
	assert.InDelta(t, 37.5, snap.MemPct, 1e-9)
	assert.Equal(t, 1, snap.NewImages)
	assert.Equal(t, 1, snap.TotalImages)
}

func TestSampleFatalSources(t *testing.T) {
	t.Run("load average", func(t *testing.T) {
		c := newTestCollector(t, testConfig(t))
		c.loadAvg = func(context.Context) (*load.AvgStat, error) { return nil, errors.New("no /proc") }

		_, err := c.Sample(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no /proc")
	})

	t.Run("memory", func(t *testing.T) {
		c := newTestCollector(t, testConfig(t))
		c.virtualMem = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errors.New("no meminfo") }

		_, err := c.Sample(context.Background())
		require.Error(t, err)
	})

	t.Run("partition", func(t *testing.T) {
		c := newTestCollector(t, testConfig(t))
		c.usage = func(context.Context, string) (*disk.UsageStat, error) { return nil, errors.New("statfs") }

		_, err := c.Sample(context.Background())
		require.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Dirs = append(cfg.Dirs, Dir{Label: "extra", Path: "/tmp"})
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Dirs[1].Label = "images"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ImagePattern = "[jpg"
	assert.Error(t, cfg.Validate())

	path, ok := DefaultConfig().ImageDir()
	assert.True(t, ok)
	assert.Equal(t, "/home/pi/timelapse-system/archived", path)
}
