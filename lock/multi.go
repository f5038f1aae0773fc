package lock

import (
	"errors"
	"fmt"

	mserrors "github.com/infodancer/msgfolder/errors"
)

// Multi requires every sub-lock. A failed Lock releases the sub-locks it
// had already taken, so no partial lock survives.
type Multi struct {
	lockers []Locker
}

// NewMulti combines lockers; they are acquired in order and released in reverse.
func NewMulti(lockers ...Locker) *Multi {
	return &Multi{lockers: lockers}
}

// Lockers returns the sub-strategies.
func (m *Multi) Lockers() []Locker { return m.lockers }

// Lock implements Locker.
func (m *Multi) Lock() error {
	var taken []Locker
	for _, l := range m.lockers {
		if l.HasLock() {
			continue
		}
		if err := l.Lock(); err != nil {
			for i := len(taken) - 1; i >= 0; i-- {
				_ = taken[i].Unlock()
			}
			return fmt.Errorf("%s: %w", l.Kind(), err)
		}
		taken = append(taken, l)
	}
	return nil
}

// Unlock implements Locker. All held sub-locks are released even when one fails.
func (m *Multi) Unlock() error {
	var errs []error
	released := false
	for i := len(m.lockers) - 1; i >= 0; i-- {
		l := m.lockers[i]
		if !l.HasLock() {
			continue
		}
		released = true
		if err := l.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	if !released {
		return mserrors.ErrNotLocked
	}
	return errors.Join(errs...)
}

// IsLocked implements Locker.
func (m *Multi) IsLocked() bool {
	for _, l := range m.lockers {
		if l.IsLocked() {
			return true
		}
	}
	return false
}

// HasLock implements Locker. It is true only while every sub-lock is held.
func (m *Multi) HasLock() bool {
	if len(m.lockers) == 0 {
		return false
	}
	for _, l := range m.lockers {
		if !l.HasLock() {
			return false
		}
	}
	return true
}

// Kind implements Locker.
func (m *Multi) Kind() Kind { return KindMulti }

// Path implements Locker.
func (m *Multi) Path() string {
	if len(m.lockers) == 0 {
		return ""
	}
	return m.lockers[0].Path()
}

var _ Locker = (*Multi)(nil)
