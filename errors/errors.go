// Package errors provides centralized error definitions for msgfolder.
package errors

import (
	"errors"
	"fmt"
)

// Folder access errors.
var (
	// ErrAccessDenied indicates the backing store could not be opened due to permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrFolderNotFound indicates the backing file or directory does not exist.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrFolderExists indicates a folder was to be created where one already exists.
	ErrFolderExists = errors.New("folder already exists")

	// ErrReadOnly indicates a mutation was attempted on a folder opened read-only.
	ErrReadOnly = errors.New("folder is read-only")

	// ErrFolderClosed indicates the folder was used after Close.
	ErrFolderClosed = errors.New("folder closed")

	// ErrFolderChanged indicates the backing store shrank or was replaced behind our back.
	ErrFolderChanged = errors.New("folder changed on disk")
)

// Locking errors.
var (
	// ErrLockTimeout indicates the wait budget was exhausted before the lock was acquired.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrStaleLockRemoved is logged when an expired marker was removed. It is never fatal.
	ErrStaleLockRemoved = errors.New("stale lock removed")

	// ErrNotLocked indicates Unlock was called on a lock this instance does not hold.
	ErrNotLocked = errors.New("not locked")

	// ErrLockUnsupported indicates the strategy is not available on this platform.
	ErrLockUnsupported = errors.New("lock strategy unsupported")
)

// Message errors.
var (
	// ErrCorruptBoundary indicates an expected separator or header terminator was missing.
	ErrCorruptBoundary = errors.New("corrupt record boundary")

	// ErrDuplicateMessageID is logged when a second record claims an existing id.
	ErrDuplicateMessageID = errors.New("duplicate message id")

	// ErrPlaceholder indicates content was requested from a dummy placeholder.
	ErrPlaceholder = errors.New("message is a placeholder")

	// ErrMessageNotFound indicates the requested message is not in the folder.
	ErrMessageNotFound = errors.New("message not found")
)

// Rewrite errors.
var (
	// ErrRewriteFailed indicates the temporary write or the final replace failed.
	ErrRewriteFailed = errors.New("rewrite failed")
)

// Store errors.
var (
	// ErrStoreNotRegistered indicates the requested store type is not registered.
	ErrStoreNotRegistered = errors.New("store type not registered")

	// ErrStoreConfigInvalid indicates the store configuration is invalid.
	ErrStoreConfigInvalid = errors.New("invalid store configuration")
)

// RewriteError describes a failed rewrite. When TempPath is set the
// temporary artifact was left on disk for manual recovery.
type RewriteError struct {
	Op       string
	Path     string
	TempPath string
	Err      error
}

func (e *RewriteError) Error() string {
	msg := fmt.Sprintf("rewrite %s: %s: %v", e.Path, e.Op, e.Err)
	if e.TempPath != "" {
		msg += " (temporary copy kept at " + e.TempPath + ")"
	}
	return msg
}

func (e *RewriteError) Unwrap() error { return e.Err }

// Is reports ErrRewriteFailed as a match so callers need not know the op.
func (e *RewriteError) Is(target error) bool { return target == ErrRewriteFailed }

// BoundaryError reports a region of a file store that could not be parsed.
type BoundaryError struct {
	Offset  int64 // where the damaged region starts
	Skipped int64 // bytes skipped before the next separator
	Reason  string
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("corrupt record boundary at offset %d (%s): skipped %d bytes", e.Offset, e.Reason, e.Skipped)
}

func (e *BoundaryError) Is(target error) bool { return target == ErrCorruptBoundary }
