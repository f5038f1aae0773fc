package lock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	mserrors "github.com/infodancer/msgfolder/errors"
)

// Dotlock locks by exclusively creating a marker file.
//
// A marker older than Expires is treated as left behind by a dead process
// and removed. Two processes can both judge the same marker stale and both
// remove it; the check-then-remove is not atomic.
type Dotlock struct {
	path string
	opts Options
	held bool
}

// NewDotlock returns a dotlock on the marker file at path.
func NewDotlock(path string, opts Options) *Dotlock {
	return &Dotlock{path: path, opts: opts.withDefaults()}
}

// Lock implements Locker.
func (d *Dotlock) Lock() error {
	if d.held {
		return nil
	}
	err := poll(d.opts, d.path, func() (bool, error) {
		ok, err := d.tryCreate()
		if ok || err != nil {
			return ok, err
		}
		d.removeIfStale()
		return false, nil
	})
	if err != nil {
		return err
	}
	d.held = true
	return nil
}

func (d *Dotlock) tryCreate() (bool, error) {
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		if errors.Is(err, os.ErrPermission) {
			return false, fmt.Errorf("create lock %s: %w", d.path, mserrors.ErrAccessDenied)
		}
		return false, fmt.Errorf("create lock %s: %w", d.path, err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(d.path)
		return false, fmt.Errorf("write lock %s: %w", d.path, werr)
	}
	return true, nil
}

// removeIfStale deletes the marker when it is older than the staleness threshold.
func (d *Dotlock) removeIfStale() {
	removeStale(d.path, d.opts)
}

func removeStale(path string, opts Options) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	age := time.Since(info.ModTime())
	if age <= opts.Expires {
		return false
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false
	}
	opts.Logger.Warn("removed stale lock",
		slog.String("path", path),
		slog.Duration("age", age.Round(time.Second)),
		slog.String("err", mserrors.ErrStaleLockRemoved.Error()))
	return true
}

// Unlock implements Locker.
func (d *Dotlock) Unlock() error {
	if !d.held {
		return mserrors.ErrNotLocked
	}
	d.held = false
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", d.path, err)
	}
	return nil
}

// IsLocked implements Locker.
func (d *Dotlock) IsLocked() bool {
	if d.held {
		return true
	}
	_, err := os.Stat(d.path)
	return err == nil
}

// HasLock implements Locker.
func (d *Dotlock) HasLock() bool { return d.held }

// Kind implements Locker.
func (d *Dotlock) Kind() Kind { return KindDotlock }

// Path implements Locker.
func (d *Dotlock) Path() string { return d.path }

var _ Locker = (*Dotlock)(nil)
