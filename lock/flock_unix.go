//go:build unix

package lock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	mserrors "github.com/infodancer/msgfolder/errors"
)

// Flock holds an exclusive advisory lock on a descriptor it opens for
// that purpose only, never on the descriptor used for reading. The kernel
// drops the lock when the descriptor is closed or the process exits.
type Flock struct {
	path string
	opts Options
	file *os.File
}

// NewFlock returns a flock on the file at path. The file is created if it
// does not exist, which allows locking a directory through a marker inside it.
func NewFlock(path string, opts Options) *Flock {
	return &Flock{path: path, opts: opts.withDefaults()}
}

// Lock implements Locker.
func (l *Flock) Lock() error {
	if l.file != nil {
		return nil
	}
	f, err := l.open()
	if err != nil {
		return err
	}
	err = poll(l.opts, l.path, func() (bool, error) {
		return tryFlock(f)
	})
	if err != nil {
		_ = f.Close()
		return err
	}
	l.file = f
	return nil
}

func (l *Flock) open() (*os.File, error) {
	f, err := os.OpenFile(l.path, os.O_RDONLY, 0)
	if errors.Is(err, os.ErrNotExist) {
		f, err = os.OpenFile(l.path, os.O_RDONLY|os.O_CREATE, 0o600)
	}
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("open %s for flock: %w", l.path, mserrors.ErrAccessDenied)
		}
		return nil, fmt.Errorf("open %s for flock: %w", l.path, err)
	}
	return f, nil
}

func tryFlock(f *os.File) (bool, error) {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EINTR):
		return false, nil
	default:
		return false, fmt.Errorf("flock %s: %w", f.Name(), err)
	}
}

// Unlock implements Locker.
func (l *Flock) Unlock() error {
	if l.file == nil {
		return mserrors.ErrNotLocked
	}
	f := l.file
	l.file = nil
	uerr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	cerr := f.Close()
	if uerr != nil {
		return fmt.Errorf("unlock %s: %w", l.path, uerr)
	}
	return cerr
}

// IsLocked implements Locker. It probes with a second descriptor, which
// conflicts with every other open file description, our own included.
func (l *Flock) IsLocked() bool {
	if l.file != nil {
		return true
	}
	f, err := os.Open(l.path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	ok, err := tryFlock(f)
	if err != nil {
		return false
	}
	if ok {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return false
	}
	return true
}

// HasLock implements Locker.
func (l *Flock) HasLock() bool { return l.file != nil }

// Kind implements Locker.
func (l *Flock) Kind() Kind { return KindFlock }

// Path implements Locker.
func (l *Flock) Path() string { return l.path }

var _ Locker = (*Flock)(nil)
