package brightness

import (
	"strconv"
	"strings"
)

type Trend int

const (
	Insufficient Trend = iota
	Stable
	Rising
	Falling
)

func (t Trend) String() string {
	switch t {
	case Stable:
		return "➖ brightness is stable"
	case Rising:
		return "📈 brightness is rising"
	case Falling:
		return "📉 brightness is falling"
	default:
		return "not enough data"
	}
}

// AnalyzeTrend compares the first and last parseable means among the last
// window rows. Fewer than two readable means is Insufficient.
func AnalyzeTrend(rows [][]string, window int, delta float64) Trend {
	if len(rows) > window {
		rows = rows[len(rows)-window:]
	}

	var means []float64
	for _, row := range rows {
		if len(row) <= colMean {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[colMean]), 64)
		if err != nil {
			continue
		}
		means = append(means, v)
	}

	if len(means) < 2 {
		return Insufficient
	}

	switch d := means[len(means)-1] - means[0]; {
	case d > delta:
		return Rising
	case d < -delta:
		return Falling
	default:
		return Stable
	}
}
