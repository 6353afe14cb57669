package timeseries

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"codeberg.org/mutker/tlmon/internal/metrics"
	"golang.org/x/sys/unix"
)

// FileLog is a headerless CSV file, one record per line. Writers take an
// exclusive flock so concurrent invocations never interleave a line.
type FileLog struct {
	path   string
	logger logger.Logger
}

func NewFileLog(path string, log logger.Logger) *FileLog {
	return &FileLog{path: path, logger: log}
}

func (l *FileLog) Path() string {
	return l.path
}

func (l *FileLog) Append(ctx context.Context, snapshot *metrics.Snapshot) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrOperationTimeout, err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), defaultDirPerm); err != nil {
		return errFactory.WithData(ErrStorageAccess, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  l.path,
			Error: err.Error(),
		})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(FormatRecord(snapshot)); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	w.Flush()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		return errFactory.WithData(ErrStorageAccess, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "open_file",
			Path:  l.path,
			Error: err.Error(),
		})
	}
	defer f.Close()

	unlock, err := lockFile(f, unix.LOCK_EX)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	defer unlock()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return errFactory.WithData(ErrStorageAccess, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "write_record",
			Path:  l.path,
			Error: err.Error(),
		})
	}

	l.logger.Debug().
		Str("path", l.path).
		Str("timestamp", snapshot.Stamp()).
		Msg("Appended metrics record")

	return nil
}

// RowsForDate scans the whole file. Lines that fail to parse are skipped;
// short legacy lines are padded with "0".
func (l *FileLog) RowsForDate(ctx context.Context, date string) ([]Row, error) {
	errFactory := errors.New()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errFactory.WithData(ErrLogUnavailable, l.path)
		}
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer f.Close()

	unlock, err := lockFile(f, unix.LOCK_SH)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer unlock()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows []Row
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, errFactory.Wrap(ErrOperationTimeout, err)
		}

		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if len(rec) == 0 || !strings.HasPrefix(rec[ColTimestamp], date) {
			continue
		}
		rows = append(rows, PadRow(rec))
	}

	if skipped > 0 {
		l.logger.Warn().
			Str("path", l.path).
			Int("skipped", skipped).
			Msg("Skipped malformed log lines")
	}

	return rows, nil
}

func (*FileLog) Close() error {
	return nil
}

func lockFile(f *os.File, how int) (func(), error) {
	fd := int(f.Fd())
	if err := unix.Flock(fd, how); err != nil {
		return nil, err
	}

	return func() { _ = unix.Flock(fd, unix.LOCK_UN) }, nil
}
