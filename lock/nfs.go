package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	mserrors "github.com/infodancer/msgfolder/errors"
)

// NFS is a marker-file lock for filesystems where O_EXCL creation is not
// atomic. It writes a uniquely named file next to the marker and hard-links
// it to the marker path. link(2) is atomic on NFS, but its reply can be
// lost, so success is decided by the link count of the unique file rather
// than by the return value.
type NFS struct {
	path string
	opts Options
	held bool
	seq  int
}

// NewNFS returns a link-based lock on the marker file at path.
func NewNFS(path string, opts Options) *NFS {
	return &NFS{path: path, opts: opts.withDefaults()}
}

// Lock implements Locker.
func (n *NFS) Lock() error {
	if n.held {
		return nil
	}
	err := poll(n.opts, n.path, func() (bool, error) {
		ok, err := n.tryLink()
		if ok || err != nil {
			return ok, err
		}
		removeStale(n.path, n.opts)
		return false, nil
	})
	if err != nil {
		return err
	}
	n.held = true
	return nil
}

func (n *NFS) uniquePath() string {
	n.seq++
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	name := fmt.Sprintf(".%s.%s.%d.%d.%d", filepath.Base(n.path), host, os.Getpid(), time.Now().UnixNano(), n.seq)
	return filepath.Join(filepath.Dir(n.path), name)
}

func (n *NFS) tryLink() (bool, error) {
	tmp := n.uniquePath()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return false, fmt.Errorf("create %s: %w", tmp, mserrors.ErrAccessDenied)
		}
		return false, fmt.Errorf("create %s: %w", tmp, err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	defer func() { _ = os.Remove(tmp) }()
	if werr != nil {
		return false, fmt.Errorf("write %s: %w", tmp, werr)
	}

	// The error from Link is deliberately ignored; see the type comment.
	_ = os.Link(tmp, n.path)
	return linked(tmp, n.path), nil
}

// Unlock implements Locker.
func (n *NFS) Unlock() error {
	if !n.held {
		return mserrors.ErrNotLocked
	}
	n.held = false
	if err := os.Remove(n.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", n.path, err)
	}
	return nil
}

// IsLocked implements Locker.
func (n *NFS) IsLocked() bool {
	if n.held {
		return true
	}
	_, err := os.Stat(n.path)
	return err == nil
}

// HasLock implements Locker.
func (n *NFS) HasLock() bool { return n.held }

// Kind implements Locker.
func (n *NFS) Kind() Kind { return KindNFS }

// Path implements Locker.
func (n *NFS) Path() string { return n.path }

var _ Locker = (*NFS)(nil)
