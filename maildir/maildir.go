package maildir

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/emersion/go-maildir"

	"github.com/infodancer/msgfolder/errors"
)

// Subdirectories of a maildir.
const (
	subNew = "new"
	subCur = "cur"
	subTmp = "tmp"
)

// Maildir represents a single maildir directory.
type Maildir struct {
	path  string
	names *namer
}

// New creates a Maildir instance for the given path.
// It does not create the directory; use Create() for that.
func New(path string) *Maildir {
	return &Maildir{path: path, names: newNamer()}
}

// Path returns the maildir path.
func (m *Maildir) Path() string {
	return m.path
}

// Dir returns the go-maildir handle for the directory.
func (m *Maildir) Dir() maildir.Dir {
	return maildir.Dir(m.path)
}

// Create creates the maildir directory structure (new, cur, tmp). It
// returns ErrFolderExists when the structure is already in place.
func (m *Maildir) Create() error {
	if m.Exists() {
		return fmt.Errorf("%s: %w", m.path, errors.ErrFolderExists)
	}
	// Ensure parent directories exist
	if err := os.MkdirAll(m.path, 0700); err != nil {
		return err
	}
	return m.Dir().Init()
}

// Exists checks if the maildir exists and has the required structure.
func (m *Maildir) Exists() bool {
	for _, sub := range []string{subNew, subCur, subTmp} {
		info, err := os.Stat(filepath.Join(m.path, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// Deliver writes a message to the maildir using the safe delivery process.
// It writes to tmp/ first, then moves to new/. It returns the path of the
// new file relative to the maildir and the number of bytes written.
func (m *Maildir) Deliver(write func(io.Writer) (int64, error)) (string, int64, error) {
	if !m.Exists() {
		return "", 0, errors.ErrFolderNotFound
	}

	filename := m.names.next()
	tmpPath := filepath.Join(m.path, subTmp, filename)
	newPath := filepath.Join(m.path, subNew, filename)

	// Write to tmp directory
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", 0, err
	}

	n, err := write(f)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, err
	}

	// Move from tmp to new
	if err := os.Rename(tmpPath, newPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, err
	}

	return filepath.Join(subNew, filename), n, nil
}

// Replace rewrites the file at rel, relative to the maildir, through tmp/.
func (m *Maildir) Replace(rel string, write func(io.Writer) (int64, error)) (int64, error) {
	tmpPath := filepath.Join(m.path, subTmp, m.names.next())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return 0, err
	}
	n, err := write(f)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, filepath.Join(m.path, rel)); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}

// ListNew returns the filenames of messages in new/.
func (m *Maildir) ListNew() ([]os.DirEntry, error) {
	return m.listDir(subNew)
}

func (m *Maildir) listDir(subdir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(filepath.Join(m.path, subdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrFolderNotFound
		}
		return nil, err
	}

	var files []os.DirEntry
	for _, entry := range entries {
		if !entry.IsDir() && entry.Name()[0] != '.' {
			files = append(files, entry)
		}
	}
	return files, nil
}

// Open opens a message file, relative to the maildir, for reading.
func (m *Maildir) Open(rel string) (*os.File, error) {
	return os.Open(filepath.Join(m.path, rel))
}

// MoveToCur moves a message from new/ to cur/ with the given info suffix
// and returns its new relative path.
func (m *Maildir) MoveToCur(rel, name string) (string, error) {
	target := filepath.Join(subCur, name)
	if err := os.Rename(filepath.Join(m.path, rel), filepath.Join(m.path, target)); err != nil {
		return "", err
	}
	return target, nil
}

// RemoveIfEmpty removes the maildir when new/, cur/ and tmp/ are empty.
func (m *Maildir) RemoveIfEmpty() error {
	subs := []string{subTmp, subNew, subCur}
	for _, sub := range subs {
		entries, err := os.ReadDir(filepath.Join(m.path, sub))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if len(entries) > 0 {
			return nil
		}
	}
	for _, sub := range subs {
		if err := os.Remove(filepath.Join(m.path, sub)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return os.Remove(m.path)
}
