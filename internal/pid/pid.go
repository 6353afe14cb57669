package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/tlmon/internal/errors"
	"golang.org/x/sys/unix"
)

const (
	pidFilePrefix = "tlmon-"
	pidFileSuffix = ".pid"
	pidFilePerm   = 0o600
	pidDirPerm    = 0o755

	// A lock won on a file that was unlinked meanwhile is retried this often.
	maxLockAttempts = 5
)

// File is a held single-instance guard for one action. The exclusive flock
// on the open file is the guard; the PID inside is informational.
type File struct {
	path string
	f    *os.File
}

// Path returns the location of the PID file for action under dir.
func Path(dir, action string) string {
	return filepath.Join(dir, pidFilePrefix+action+pidFileSuffix)
}

// Acquire takes a non-blocking exclusive lock on the action's PID file and
// writes the current process ID into it. It fails with ErrAlreadyRunning
// while another process holds the lock. A leftover file without a lock
// holder is reused.
func Acquire(dir, action string) (*File, error) {
	errFactory := errors.New()
	path := Path(dir, action)

	if err := os.MkdirAll(dir, pidDirPerm); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	for attempt := 1; attempt <= maxLockAttempts; attempt++ {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, pidFilePerm)
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInternal, err)
		}

		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			holder := readPID(f)
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, errFactory.WithData(errors.ErrAlreadyRunning, struct {
					Action string
					PID    int
				}{
					Action: action,
					PID:    holder,
				})
			}
			return nil, errFactory.Wrap(errors.ErrInternal, err)
		}

		// The previous holder may have removed the file between our open and
		// lock; the lock then guards nothing.
		if !samePath(f, path) {
			f.Close()
			continue
		}

		if err := writePID(f); err != nil {
			f.Close()
			return nil, errFactory.Wrap(errors.ErrInternal, err)
		}

		return &File{path: path, f: f}, nil
	}

	return nil, errFactory.WithData(errors.ErrInternal, struct {
		Action string
		Path   string
	}{
		Action: action,
		Path:   path,
	})
}

// Release removes the PID file if it still names this process, then drops
// the lock.
func (f *File) Release() error {
	errFactory := errors.New()

	if f.f == nil {
		return nil
	}
	defer func() {
		f.f.Close()
		f.f = nil
	}()

	bytes, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if strings.TrimSpace(string(bytes)) != strconv.Itoa(os.Getpid()) {
		return nil
	}

	// Unlink before unlocking so a waiter never locks a file about to vanish.
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		return err
	}

	return f.Sync()
}

func readPID(f *os.File) int {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}

	return pid
}

func samePath(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}

	return os.SameFile(held, current)
}
