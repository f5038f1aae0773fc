package mh

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"
	"github.com/infodancer/msgfolder/lock"
)

// Options configures a Store.
type Options struct {
	// Create makes NewStore create a missing folder directory.
	Create bool

	// Renumber closes numbering gaps when the folder is written.
	Renumber bool

	// SequencesFile defaults to DefaultSequencesFile.
	SequencesFile string

	Logger *slog.Logger
}

// Store implements msgfolder.Backend for an MH folder directory.
type Store struct {
	dir    string
	opts   Options
	logger *slog.Logger

	// known holds the message numbers seen by Scan and Refresh.
	known map[int]bool
}

// NewStore opens the MH folder at dir.
func NewStore(dir string, opts Options) (*Store, error) {
	if opts.SequencesFile == "" {
		opts.SequencesFile = DefaultSequencesFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory: %w", dir, errors.ErrStoreConfigInvalid)
		}
	case stderrors.Is(err, fs.ErrNotExist):
		if !opts.Create {
			return nil, fmt.Errorf("%s: %w", dir, errors.ErrFolderNotFound)
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, wrapAccess(err, dir)
		}
		logger.Info("created mh folder", slog.String("path", dir))
	default:
		return nil, wrapAccess(err, dir)
	}

	return &Store{dir: dir, opts: opts, logger: logger, known: make(map[int]bool)}, nil
}

func wrapAccess(err error, path string) error {
	if stderrors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s: %w", path, errors.ErrAccessDenied)
	}
	return err
}

// Organization implements msgfolder.Backend.
func (s *Store) Organization() msgfolder.Organization { return msgfolder.DirectoryOrganization }

// LockTarget implements msgfolder.Backend. The marker sits beside the
// directory, so it never shows up as an entry of the folder.
func (s *Store) LockTarget() (string, lock.Kind) {
	return filepath.Clean(s.dir), lock.KindDotlock
}

func (s *Store) sequencesPath() string {
	return filepath.Join(s.dir, s.opts.SequencesFile)
}

// messageNumber parses an MH message file name.
func messageNumber(name string) (int, bool) {
	if name == "" || name[0] < '1' || name[0] > '9' {
		return 0, false
	}
	n, err := strconv.Atoi(name)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

type entry struct {
	num  int
	info fs.FileInfo
}

// list returns the message files in ascending numeric order.
func (s *Store) list() ([]entry, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, wrapAccess(err, s.dir)
	}
	var out []entry
	for _, d := range dirents {
		n, ok := messageNumber(d.Name())
		if !ok || d.IsDir() {
			continue
		}
		info, err := d.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, entry{num: n, info: info})
	}
	slices.SortFunc(out, func(a, b entry) int { return a.num - b.num })
	return out, nil
}

// Scan implements msgfolder.Backend.
func (s *Store) Scan(report *msgfolder.ScanReport) ([]msgfolder.Record, error) {
	s.known = make(map[int]bool)
	return s.scan(report)
}

// Refresh implements msgfolder.Backend.
func (s *Store) Refresh(report *msgfolder.ScanReport) ([]msgfolder.Record, error) {
	return s.scan(report)
}

func (s *Store) scan(report *msgfolder.ScanReport) ([]msgfolder.Record, error) {
	entries, err := s.list()
	if err != nil {
		return nil, err
	}
	top := 0
	if len(entries) > 0 {
		top = entries[len(entries)-1].num
	}
	seqs, err := readSequences(s.sequencesPath(), top)
	if err != nil {
		return nil, fmt.Errorf("read sequences: %w", err)
	}

	var records []msgfolder.Record
	for _, e := range entries {
		if s.known[e.num] {
			continue
		}
		s.known[e.num] = true
		records = append(records, msgfolder.Record{
			Locator: msgfolder.Locator{Filename: strconv.Itoa(e.num)},
			Size:    e.info.Size(),
			Arrived: e.info.ModTime(),
			Flags:   flagsOf(seqs, e.num),
		})
	}
	report.Records = len(records)
	return records, nil
}

func flagsOf(seqs *sequences, n int) msgfolder.Flags {
	var flags msgfolder.Flags
	if !seqs.has(seqUnseen, n) {
		flags |= msgfolder.FlagSeen
	}
	if seqs.has(seqFlagged, n) {
		flags |= msgfolder.FlagFlagged
	}
	if seqs.has(seqReplied, n) {
		flags |= msgfolder.FlagReplied
	}
	return flags
}

// ReadHeader implements msgfolder.Backend.
func (s *Store) ReadHeader(loc msgfolder.Locator) ([]byte, error) {
	f, err := os.Open(filepath.Join(s.dir, loc.Filename))
	if err != nil {
		return nil, wrapAccess(err, loc.Filename)
	}
	defer func() { _ = f.Close() }()
	return msgfolder.ReadHeaderBlock(bufio.NewReader(f))
}

// ReadBody implements msgfolder.Backend.
func (s *Store) ReadBody(loc msgfolder.Locator) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, loc.Filename))
	if err != nil {
		return nil, wrapAccess(err, loc.Filename)
	}
	_, body := msgfolder.SplitMessage(data)
	return body, nil
}

// Remove implements msgfolder.Backend. The directory is only removed when
// nothing but the sequences file is left in it.
func (s *Store) Remove() error {
	if err := os.Remove(s.sequencesPath()); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Remove(s.dir)
}

// Close implements msgfolder.Backend.
func (s *Store) Close() error { return nil }

var _ msgfolder.Backend = (*Store)(nil)
