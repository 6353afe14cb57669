package suppress

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"codeberg.org/mutker/tlmon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 5, 1, 12, 0, 0, 0, time.Local)

func newGate(t *testing.T, cooldown time.Duration) (*FileGate, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state", "last_alert")
	g, err := NewFileGate(Config{Path: path, Cooldown: cooldown}, logger.Nop())
	require.NoError(t, err)

	return g, path
}

func TestMissingMarkerIsOpen(t *testing.T) {
	g, _ := newGate(t, 30*time.Minute)
	assert.False(t, g.Suppressed(t0))
}

func TestCooldownWindow(t *testing.T) {
	g, _ := newGate(t, 30*time.Minute)
	require.NoError(t, g.Mark(t0))

	tests := []struct {
		name  string
		after time.Duration
		want  bool
	}{
		{"immediately", 0, true},
		{"within cooldown", 29 * time.Minute, true},
		{"at cooldown", 30 * time.Minute, false},
		{"after cooldown", 45 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Suppressed(t0.Add(tt.after)))
		})
	}
}

func TestZeroCooldownNeverSuppresses(t *testing.T) {
	g, _ := newGate(t, 0)
	require.NoError(t, g.Mark(t0))
	assert.False(t, g.Suppressed(t0))
}

func TestMarkWritesEpochSeconds(t *testing.T) {
	g, path := newGate(t, time.Minute)
	require.NoError(t, g.Mark(t0))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(t0.Unix(), 10)+"\n", string(raw))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestMarkOverwrites(t *testing.T) {
	g, _ := newGate(t, 30*time.Minute)
	require.NoError(t, g.Mark(t0))
	require.NoError(t, g.Mark(t0.Add(time.Hour)))

	assert.True(t, g.Suppressed(t0.Add(time.Hour+time.Minute)))
}

func TestCorruptMarkerFailsOpen(t *testing.T) {
	g, path := newGate(t, 30*time.Minute)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not a time"), 0o644))

	assert.False(t, g.Suppressed(t0))
}

func TestLegacyMarker(t *testing.T) {
	g, path := newGate(t, 30*time.Minute)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(t0.Format(legacyLayout)+"\n"), 0o644))

	assert.True(t, g.Suppressed(t0.Add(10*time.Minute)))
	assert.False(t, g.Suppressed(t0.Add(31*time.Minute)))
}

func TestFractionalEpochMarker(t *testing.T) {
	g, path := newGate(t, 30*time.Minute)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strconv.FormatInt(t0.Unix(), 10)+".75"), 0o644))

	assert.True(t, g.Suppressed(t0.Add(time.Minute)))
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Cooldown: time.Minute}.Validate())
	assert.Error(t, Config{Path: "x", Cooldown: -time.Second}.Validate())
	assert.NoError(t, Config{Path: "x"}.Validate())
}
