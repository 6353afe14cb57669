package notify

import "codeberg.org/mutker/tlmon/internal/errors"

func errNew(code errors.ErrorCode) error {
	return errors.New().New(code)
}
