package timeseries

import "codeberg.org/mutker/tlmon/internal/errors"

func errorsNew(code errors.ErrorCode) error {
	return errors.New().New(code)
}
