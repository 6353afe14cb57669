package alert

import (
	"fmt"
	"strings"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/metrics"
)

// Kind identifies which rule produced a Condition.
type Kind int

const (
	ForcedTest Kind = iota
	DiskUsage
	CPUTemp
	LoadAverage
	MemoryUsage
)

var kindNames = map[Kind]string{
	ForcedTest:  "forced_test",
	DiskUsage:   "disk_usage",
	CPUTemp:     "cpu_temp",
	LoadAverage: "load_average",
	MemoryUsage: "memory_usage",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Condition is one alert produced by an evaluation. It is never persisted.
type Condition struct {
	Kind    Kind
	Message string
}

type Thresholds struct {
	Disk float64 // percent of partition
	Temp float64 // degrees Celsius
	Load float64 // 1-minute load average
	Mem  float64 // percent
}

const (
	defaultDiskThreshold = 80.0
	defaultTempThreshold = 65.0
	defaultLoadThreshold = 2.0
	defaultMemThreshold  = 80.0
)

func DefaultThresholds() Thresholds {
	return Thresholds{
		Disk: defaultDiskThreshold,
		Temp: defaultTempThreshold,
		Load: defaultLoadThreshold,
		Mem:  defaultMemThreshold,
	}
}

func (t Thresholds) Validate() error {
	errFactory := errors.New()

	for name, v := range map[string]float64{
		"disk": t.Disk,
		"temp": t.Temp,
		"load": t.Load,
		"mem":  t.Mem,
	} {
		if v < 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, struct {
				Threshold string
				Value     float64
			}{
				Threshold: name,
				Value:     v,
			})
		}
	}

	return nil
}

// Evaluate compares a snapshot against th. Rules are independent and the
// result order is fixed: forced, disks in configuration order, temperature,
// load, memory. A NaN temperature never fires.
func Evaluate(snap *metrics.Snapshot, th Thresholds, force bool) []Condition {
	var conds []Condition

	if force {
		conds = append(conds, Condition{
			Kind:    ForcedTest,
			Message: "🧪 Forced test alert",
		})
	}

	for _, d := range snap.Disks {
		if d.Pct >= th.Disk {
			conds = append(conds, Condition{
				Kind:    DiskUsage,
				Message: fmt.Sprintf("💾 %s %.1f%% (>= %g%%)", d.Label, d.Pct, th.Disk),
			})
		}
	}

	if snap.CPUTempC >= th.Temp {
		conds = append(conds, Condition{
			Kind:    CPUTemp,
			Message: fmt.Sprintf("🌡️ CPU %.1f°C (>= %g°C)", snap.CPUTempC, th.Temp),
		})
	}

	if snap.Load1 >= th.Load {
		conds = append(conds, Condition{
			Kind:    LoadAverage,
			Message: fmt.Sprintf("📈 LoadAvg %.2f (>= %g)", snap.Load1, th.Load),
		})
	}

	if snap.MemPct >= th.Mem {
		conds = append(conds, Condition{
			Kind:    MemoryUsage,
			Message: fmt.Sprintf("💽 Mem %.1f%% (>= %g%%)", snap.MemPct, th.Mem),
		})
	}

	return conds
}

// FormatAlert renders the notification text for conds.
func FormatAlert(host string, conds []Condition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *%s*", host)
	for _, c := range conds {
		b.WriteString("\n")
		b.WriteString(c.Message)
	}

	return b.String()
}

// Kinds lists the kinds of conds in order.
func Kinds(conds []Condition) []Kind {
	kinds := make([]Kind, len(conds))
	for i, c := range conds {
		kinds[i] = c.Kind
	}

	return kinds
}
