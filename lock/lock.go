// Package lock provides the interchangeable locking strategies used to
// coordinate access to a folder's backing store between processes.
//
// Every strategy implements Locker. Lock polls at a fixed retry interval
// until the lock is held or the timeout elapses; there is no other way to
// cancel a waiting Lock. A negative timeout waits forever.
//
// Strategies:
//
//	dotlock  exclusive creation of a marker file, with staleness detection
//	flock    kernel advisory lock on a dedicated descriptor
//	nfs      marker file taken through link(2), safe where O_EXCL is not atomic
//	multi    all of the above sub-strategies, rolled back on partial failure
//	none     no locking at all
package lock

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/infodancer/msgfolder/errors"
)

// Kind names a locking strategy.
type Kind string

const (
	KindDotlock Kind = "dotlock"
	KindFlock   Kind = "flock"
	KindNFS     Kind = "nfs"
	KindMulti   Kind = "multi"
	KindNone    Kind = "none"
)

// Defaults for Options fields left zero.
const (
	DefaultRetry   = time.Second
	DefaultTimeout = 10 * time.Second
	DefaultExpires = time.Hour

	// Unbounded makes Lock wait until the lock is acquired.
	Unbounded time.Duration = -1
)

// Suffix is appended to a folder path to derive its marker file.
const Suffix = ".lock"

// Locker is the lock contract shared by all strategies.
type Locker interface {
	// Lock acquires the lock, polling until the timeout expires.
	// It returns an error wrapping errors.ErrLockTimeout when the wait budget is exhausted.
	Lock() error

	// Unlock releases a lock held by this instance.
	Unlock() error

	// IsLocked reports whether anyone, this instance included, holds the lock.
	IsLocked() bool

	// HasLock reports whether this instance holds the lock.
	HasLock() bool

	// Kind returns the strategy name.
	Kind() Kind

	// Path returns the lock resource: a marker path or the locked file.
	Path() string
}

// Options configures a Locker.
type Options struct {
	// Path overrides the lock resource. When empty the resource is derived
	// from the target: target+".lock" for marker strategies, the target itself for flock.
	Path string

	// Retry is the polling interval.
	Retry time.Duration

	// Timeout is the total wait budget. Zero selects DefaultTimeout, Unbounded waits forever.
	Timeout time.Duration

	// Expires is the age after which a marker file is considered stale.
	Expires time.Duration

	// Logger receives stale-lock notices. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Retry <= 0 {
		o.Retry = DefaultRetry
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Expires <= 0 {
		o.Expires = DefaultExpires
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// New builds a Locker of the given kind for target, the file or directory
// being protected. KindMulti combines dotlock and flock.
func New(kind Kind, target string, opts Options) (Locker, error) {
	opts = opts.withDefaults()
	switch kind {
	case KindDotlock, "":
		return NewDotlock(markerPath(target, opts), opts), nil
	case KindNFS:
		return NewNFS(markerPath(target, opts), opts), nil
	case KindFlock:
		path := target
		if opts.Path != "" {
			path = opts.Path
		}
		return NewFlock(path, opts), nil
	case KindMulti:
		return NewMulti(
			NewDotlock(markerPath(target, opts), opts),
			NewFlock(target, opts),
		), nil
	case KindNone:
		return NewNone(target), nil
	default:
		return nil, fmt.Errorf("lock kind %q: %w", kind, errors.ErrStoreConfigInvalid)
	}
}

// ParseKind validates a strategy name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindDotlock, KindFlock, KindNFS, KindMulti, KindNone:
		return k, nil
	case "":
		return KindDotlock, nil
	default:
		return "", fmt.Errorf("unknown lock kind %q", s)
	}
}

func markerPath(target string, opts Options) string {
	if opts.Path != "" {
		return opts.Path
	}
	return target + Suffix
}

// poll calls try every retry interval until it reports success, returns an
// error, or the timeout runs out.
func poll(opts Options, path string, try func() (bool, error)) error {
	var deadline time.Time
	if opts.Timeout >= 0 {
		deadline = time.Now().Add(opts.Timeout)
	}
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !deadline.IsZero() && !time.Now().Add(opts.Retry).Before(deadline) {
			// One last attempt at the deadline.
			time.Sleep(time.Until(deadline))
			if ok, err := try(); err != nil || ok {
				return err
			}
			return fmt.Errorf("%s: %w", path, errors.ErrLockTimeout)
		}
		time.Sleep(opts.Retry)
	}
}
