package mbox

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"
	"github.com/infodancer/msgfolder/lock"
)

// DefaultSender is used on separator lines when a message has no sender.
const DefaultSender = "MAILER-DAEMON"

// Store implements msgfolder.Backend for a single mbox file.
type Store struct {
	path   string
	mode   msgfolder.Mode
	sender string
	logger *slog.Logger

	// file is the read descriptor used for promotion. It is reopened after
	// every rewrite so it always refers to the current inode.
	file *os.File

	// scanned is the file size covered by the last scan, refresh or write.
	scanned int64
}

// NewStore opens the mbox file at path. A missing file is created when
// create is set, and otherwise reported as errors.ErrFolderNotFound.
func NewStore(path string, mode msgfolder.Mode, create bool, sender string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, mode: mode, sender: sender, logger: logger}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory: %w", path, errors.ErrStoreConfigInvalid)
		}
	case stderrors.Is(err, fs.ErrNotExist):
		if !create || mode == msgfolder.ReadOnly {
			return nil, fmt.Errorf("%s: %w", path, errors.ErrFolderNotFound)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			return nil, wrapAccess(err, path)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		s.logger.Info("created mbox", slog.String("path", path))
	default:
		return nil, wrapAccess(err, path)
	}

	if mode != msgfolder.Append {
		if err := s.reopen(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// wrapAccess maps permission failures to errors.ErrAccessDenied.
func wrapAccess(err error, path string) error {
	if stderrors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s: %w", path, errors.ErrAccessDenied)
	}
	return err
}

func (s *Store) reopen() error {
	f, err := os.Open(s.path)
	if err != nil {
		return wrapAccess(err, s.path)
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file = f
	return nil
}

// Path returns the mbox file path.
func (s *Store) Path() string { return s.path }

// Organization implements msgfolder.Backend.
func (s *Store) Organization() msgfolder.Organization { return msgfolder.FileOrganization }

// LockTarget implements msgfolder.Backend. The file itself is locked.
func (s *Store) LockTarget() (string, lock.Kind) { return s.path, lock.KindDotlock }

// Scan implements msgfolder.Backend.
func (s *Store) Scan(report *msgfolder.ScanReport) ([]msgfolder.Record, error) {
	s.scanned = 0
	return s.scanFrom(report)
}

// Refresh implements msgfolder.Backend. Only bytes appended since the last
// scan are read; a file that shrank was rewritten by someone else.
func (s *Store) Refresh(report *msgfolder.ScanReport) ([]msgfolder.Record, error) {
	if s.file == nil {
		return nil, nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, wrapAccess(err, s.path)
	}
	if !os.SameFile(info, statOrNil(s.file)) || info.Size() < s.scanned {
		return nil, fmt.Errorf("%s: %w", s.path, errors.ErrFolderChanged)
	}
	if info.Size() == s.scanned {
		return nil, nil
	}
	return s.scanFrom(report)
}

func statOrNil(f *os.File) fs.FileInfo {
	info, err := f.Stat()
	if err != nil {
		return nil
	}
	return info
}

func (s *Store) scanFrom(report *msgfolder.ScanReport) ([]msgfolder.Record, error) {
	if s.file == nil {
		if err := s.reopen(); err != nil {
			return nil, err
		}
	}
	if _, err := s.file.Seek(s.scanned, io.SeekStart); err != nil {
		return nil, err
	}
	records, end, err := scan(s.file, s.scanned, report)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.path, err)
	}
	report.Records = len(records)
	s.scanned = end
	return records, nil
}

// ReadHeader implements msgfolder.Backend.
func (s *Store) ReadHeader(loc msgfolder.Locator) ([]byte, error) {
	raw, err := s.readRange(loc.HeaderBegin, loc.Begin)
	if err != nil {
		return nil, err
	}
	return trimBlank(raw), nil
}

// ReadBody implements msgfolder.Backend.
func (s *Store) ReadBody(loc msgfolder.Locator) ([]byte, error) {
	raw, err := s.readRange(loc.Begin, loc.End())
	if err != nil {
		return nil, err
	}
	return terminate(unescape(raw)), nil
}

// terminate ends a non-empty body with a newline. A rewrite always
// separates records with one, so reads agree before and after.
func terminate(body []byte) []byte {
	if len(body) == 0 || body[len(body)-1] == '\n' {
		return body
	}
	return append(body, '\n')
}

func (s *Store) readRange(from, to int64) ([]byte, error) {
	if s.file == nil {
		return nil, errors.ErrFolderClosed
	}
	buf := make([]byte, to-from)
	if _, err := s.file.ReadAt(buf, from); err != nil {
		return nil, fmt.Errorf("read %s at %d: %w", s.path, from, err)
	}
	return buf, nil
}

// trimBlank drops the blank line that ends a header block.
func trimBlank(raw []byte) []byte {
	switch {
	case bytes.HasSuffix(raw, []byte("\r\n\r\n")):
		return raw[:len(raw)-2]
	case bytes.HasSuffix(raw, []byte("\n\n")):
		return raw[:len(raw)-1]
	case isBlank(raw):
		return raw[:0]
	}
	return raw
}

// Remove implements msgfolder.Backend. Only an empty file is removed.
func (s *Store) Remove() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	if info.Size() != 0 {
		return nil
	}
	return os.Remove(s.path)
}

// Close implements msgfolder.Backend.
func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

var _ msgfolder.Backend = (*Store)(nil)
