package brightness

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/tlmon/internal/errors"
)

// Brightness log field positions.
const (
	colTimestamp = 0
	colImage     = 6
	colMean      = 7

	minEntryFields = colMean + 1
)

// Status classifies one mean brightness reading.
type Status int

const (
	Normal Status = iota
	TooDark
	TooBright
	Unreadable
)

func (s Status) String() string {
	switch s {
	case TooDark:
		return "too dark"
	case TooBright:
		return "too bright"
	case Unreadable:
		return "unreadable"
	default:
		return "normal"
	}
}

// Classify maps a raw mean value onto a Status.
func Classify(raw string, dark, bright float64) Status {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return Unreadable
	}

	switch {
	case v < dark:
		return TooDark
	case v > bright:
		return TooBright
	default:
		return Normal
	}
}

// Entry is one row of the brightness log.
type Entry struct {
	Timestamp string
	ImagePath string
	Mean      string
}

// readRows returns every parseable row of path.
func readRows(path string) ([][]string, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.WithData(ErrReadLog, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, rec)
	}

	return rows, nil
}

// latestEntry returns the last row that carries an image and a mean.
func latestEntry(rows [][]string) (*Entry, bool) {
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < minEntryFields {
			continue
		}
		e := &Entry{
			Timestamp: strings.TrimSpace(row[colTimestamp]),
			ImagePath: strings.TrimSpace(row[colImage]),
			Mean:      strings.TrimSpace(row[colMean]),
		}
		if e.Timestamp == "" || e.ImagePath == "" || e.Mean == "" {
			return nil, false
		}
		return e, true
	}

	return nil, false
}
