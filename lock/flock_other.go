//go:build !unix

package lock

import (
	mserrors "github.com/infodancer/msgfolder/errors"
)

// Flock is unavailable on this platform; Lock always fails.
type Flock struct {
	path string
}

func NewFlock(path string, opts Options) *Flock { return &Flock{path: path} }

func (l *Flock) Lock() error    { return mserrors.ErrLockUnsupported }
func (l *Flock) Unlock() error  { return mserrors.ErrNotLocked }
func (l *Flock) IsLocked() bool { return false }
func (l *Flock) HasLock() bool  { return false }
func (l *Flock) Kind() Kind     { return KindFlock }
func (l *Flock) Path() string   { return l.path }

var _ Locker = (*Flock)(nil)
