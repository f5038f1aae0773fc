package maildir

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"
	"github.com/infodancer/msgfolder/lock"
)

// Options configures a Store.
type Options struct {
	// Create makes NewStore initialize a missing maildir.
	Create bool

	// AcceptNew moves messages from new/ to cur/ when the folder is written.
	AcceptNew bool

	Logger *slog.Logger
}

// Store implements msgfolder.Backend using the Maildir format.
// It uses emersion/go-maildir for flag and removal operations in cur/.
type Store struct {
	md     *Maildir
	opts   Options
	logger *slog.Logger

	// known holds the keys of messages seen by Scan and Refresh.
	known map[string]bool
}

// NewStore opens the maildir at path.
func NewStore(path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	md := New(path)

	if !md.Exists() {
		info, err := os.Stat(path)
		switch {
		case err == nil && !info.IsDir():
			return nil, fmt.Errorf("%s is not a directory: %w", path, errors.ErrStoreConfigInvalid)
		case err != nil && !stderrors.Is(err, fs.ErrNotExist):
			return nil, wrapAccess(err, path)
		case !opts.Create:
			return nil, fmt.Errorf("%s: %w", path, errors.ErrFolderNotFound)
		}
		if err := md.Create(); err != nil {
			return nil, wrapAccess(err, path)
		}
		logger.Info("created maildir", slog.String("path", path))
	}

	return &Store{md: md, opts: opts, logger: logger, known: make(map[string]bool)}, nil
}

func wrapAccess(err error, path string) error {
	if stderrors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s: %w", path, errors.ErrAccessDenied)
	}
	return err
}

// Organization implements msgfolder.Backend.
func (s *Store) Organization() msgfolder.Organization { return msgfolder.DirectoryOrganization }

// LockTarget implements msgfolder.Backend. Maildir is designed to work
// without locks, so none is taken unless configured.
func (s *Store) LockTarget() (string, lock.Kind) {
	return filepath.Clean(s.md.Path()), lock.KindNone
}

// Scan implements msgfolder.Backend.
func (s *Store) Scan(report *msgfolder.ScanReport) ([]msgfolder.Record, error) {
	s.known = make(map[string]bool)
	return s.scan(report)
}

// Refresh implements msgfolder.Backend.
func (s *Store) Refresh(report *msgfolder.ScanReport) ([]msgfolder.Record, error) {
	return s.scan(report)
}

// scan lists cur/ through go-maildir and new/ directly, since messages in
// new/ must stay there until the folder is written. Records are ordered by
// arrival time, then name.
func (s *Store) scan(report *msgfolder.ScanReport) ([]msgfolder.Record, error) {
	var records []msgfolder.Record

	cur, err := s.md.Dir().Messages()
	if err != nil {
		return nil, wrapAccess(err, s.md.Path())
	}
	for _, msg := range cur {
		if s.known[msg.Key()] {
			continue
		}
		info, err := os.Stat(msg.Filename())
		if err != nil {
			// Removed by another reader.
			continue
		}
		s.known[msg.Key()] = true
		records = append(records, record(subCur, info, convertFlags(msg.Flags())))
	}

	fresh, err := s.md.ListNew()
	if err != nil {
		return nil, wrapAccess(err, s.md.Path())
	}
	for _, entry := range fresh {
		key := keyOf(entry.Name())
		if s.known[key] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		s.known[key] = true
		records = append(records, record(subNew, info, msgfolder.FlagRecent|flagsOfName(entry.Name())))
	}

	slices.SortFunc(records, func(a, b msgfolder.Record) int {
		if c := a.Arrived.Compare(b.Arrived); c != 0 {
			return c
		}
		return strings.Compare(filepath.Base(a.Locator.Filename), filepath.Base(b.Locator.Filename))
	})
	report.Records = len(records)
	return records, nil
}

func record(sub string, info fs.FileInfo, flags msgfolder.Flags) msgfolder.Record {
	arrived, ok := arrivalOf(info.Name())
	if !ok {
		arrived = info.ModTime()
	}
	return msgfolder.Record{
		Locator: msgfolder.Locator{Filename: filepath.Join(sub, info.Name())},
		Size:    info.Size(),
		Arrived: arrived,
		Flags:   flags,
	}
}

// ReadHeader implements msgfolder.Backend.
func (s *Store) ReadHeader(loc msgfolder.Locator) ([]byte, error) {
	f, err := s.md.Open(loc.Filename)
	if err != nil {
		return nil, wrapAccess(err, loc.Filename)
	}
	defer func() { _ = f.Close() }()
	return msgfolder.ReadHeaderBlock(bufio.NewReader(f))
}

// ReadBody implements msgfolder.Backend.
func (s *Store) ReadBody(loc msgfolder.Locator) ([]byte, error) {
	f, err := s.md.Open(loc.Filename)
	if err != nil {
		return nil, wrapAccess(err, loc.Filename)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	_, body := msgfolder.SplitMessage(data)
	return body, nil
}

// Remove implements msgfolder.Backend.
func (s *Store) Remove() error {
	return s.md.RemoveIfEmpty()
}

// Close implements msgfolder.Backend.
func (s *Store) Close() error { return nil }

// Compile-time interface verification.
var _ msgfolder.Backend = (*Store)(nil)
