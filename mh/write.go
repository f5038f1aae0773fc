package mh

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"
)

// Write implements msgfolder.Backend. Only purged, modified, renumbered
// and new messages are touched; every file is replaced through a rename so
// a failure leaves each message either old or new, never half written.
func (s *Store) Write(plan *msgfolder.WritePlan) error {
	top, err := s.highest()
	if err != nil {
		return err
	}
	seqs, err := readSequences(s.sequencesPath(), top)
	if err != nil {
		return fmt.Errorf("read sequences: %w", err)
	}
	// mapping tracks old message numbers to new ones for the sequences
	// that msgfolder does not manage.
	mapping := make(map[int]int)

	for _, m := range plan.Purge {
		if m.IsNew() {
			continue
		}
		name := m.Locator().Filename
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove message %s: %w", name, err)
		}
		n, _ := messageNumber(name)
		delete(s.known, n)
	}

	for _, m := range plan.Keep {
		if m.IsNew() || !m.IsModified() {
			continue
		}
		if err := s.replace(plan, m, m.Locator().Filename); err != nil {
			return err
		}
	}

	next := 1
	for _, m := range plan.Keep {
		if m.IsNew() {
			continue
		}
		old, _ := messageNumber(m.Locator().Filename)
		num := old
		if s.opts.Renumber {
			num = next
		}
		next = num + 1
		mapping[old] = num
		if num == old {
			continue
		}
		if err := s.move(old, num); err != nil {
			return err
		}
		plan.Relocate(m, msgfolder.Locator{Filename: strconv.Itoa(num)})
	}

	highest, err := s.highest()
	if err != nil {
		return err
	}
	for _, m := range plan.Keep {
		if !m.IsNew() {
			continue
		}
		num, size, err := s.deliver(plan, m, highest+1)
		if err != nil {
			return err
		}
		highest = num
		plan.Relocate(m, msgfolder.Locator{Filename: strconv.Itoa(num)})
		plan.Resize(m, size)
	}

	// In append mode Keep holds only the new messages, so the existing
	// sequences stay as they are and the new numbers are merged in.
	if plan.Append {
		for _, m := range plan.Keep {
			n, _ := messageNumber(m.Locator().Filename)
			if !m.Flags().Has(msgfolder.FlagSeen) {
				seqs.add(seqUnseen, n)
			}
			if m.Flags().Has(msgfolder.FlagFlagged) {
				seqs.add(seqFlagged, n)
			}
			if m.Flags().Has(msgfolder.FlagReplied) {
				seqs.add(seqReplied, n)
			}
		}
		return s.writeSequences(seqs)
	}

	seqs.remap(mapping)
	var unseen, flagged, replied []int
	for _, m := range plan.Keep {
		n, _ := messageNumber(m.Locator().Filename)
		if !m.Flags().Has(msgfolder.FlagSeen) {
			unseen = append(unseen, n)
		}
		if m.Flags().Has(msgfolder.FlagFlagged) {
			flagged = append(flagged, n)
		}
		if m.Flags().Has(msgfolder.FlagReplied) {
			replied = append(replied, n)
		}
	}
	seqs.set(seqUnseen, unseen)
	seqs.set(seqFlagged, flagged)
	seqs.set(seqReplied, replied)
	if err := s.writeSequences(seqs); err != nil {
		return err
	}

	s.logger.Debug("wrote mh folder",
		slog.String("path", s.dir),
		slog.Int("kept", len(plan.Keep)),
		slog.Int("purged", len(plan.Purge)))
	return nil
}

// replace rewrites an existing message file through a temporary file.
func (s *Store) replace(plan *msgfolder.WritePlan, m *msgfolder.Message, name string) error {
	h, body, err := plan.Content(m)
	if err != nil {
		return err
	}
	tmp, err := s.writeTemp(h, body)
	if err != nil {
		return &errors.RewriteError{Op: "write message " + name, Path: s.dir, Err: err}
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return &errors.RewriteError{Op: "replace message " + name, Path: s.dir, TempPath: tmp, Err: err}
	}
	return nil
}

// move renames message old to num. The target must not exist.
func (s *Store) move(old, num int) error {
	from := filepath.Join(s.dir, strconv.Itoa(old))
	to := filepath.Join(s.dir, strconv.Itoa(num))
	if _, err := os.Lstat(to); err == nil {
		return fmt.Errorf("renumber %d to %d: %w", old, num, fs.ErrExist)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("renumber %d to %d: %w", old, num, err)
	}
	delete(s.known, old)
	s.known[num] = true
	return nil
}

// highest returns the largest message number on disk.
func (s *Store) highest() (int, error) {
	entries, err := s.list()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].num, nil
}

// deliver writes a new message under the first free number from num on.
// The file is linked into place so a concurrent writer can never see it
// half written or take the same number.
func (s *Store) deliver(plan *msgfolder.WritePlan, m *msgfolder.Message, num int) (int, int64, error) {
	h, body, err := plan.Content(m)
	if err != nil {
		return 0, 0, err
	}
	tmp, err := s.writeTemp(h, body)
	if err != nil {
		return 0, 0, fmt.Errorf("write new message: %w", err)
	}
	defer func() { _ = os.Remove(tmp) }()

	info, err := os.Stat(tmp)
	if err != nil {
		return 0, 0, err
	}
	for ; ; num++ {
		err := os.Link(tmp, filepath.Join(s.dir, strconv.Itoa(num)))
		if err == nil {
			s.known[num] = true
			return num, info.Size(), nil
		}
		if !stderrors.Is(err, fs.ErrExist) {
			return 0, 0, fmt.Errorf("link new message %d: %w", num, err)
		}
	}
}

// writeTemp writes a message to a hidden temporary file in the folder.
func (s *Store) writeTemp(h *msgfolder.Header, body []byte) (string, error) {
	f, err := os.CreateTemp(s.dir, ".msgfolder-*")
	if err != nil {
		return "", wrapAccess(err, s.dir)
	}
	name := f.Name()
	if _, err := msgfolder.WriteMessage(f, h, body); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func (s *Store) writeSequences(seqs *sequences) error {
	data := seqs.bytes()
	path := s.sequencesPath()
	if len(data) == 0 {
		if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	f, err := os.CreateTemp(s.dir, ".msgfolder-*")
	if err != nil {
		return wrapAccess(err, s.dir)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return &errors.RewriteError{Op: "write sequences", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return &errors.RewriteError{Op: "write sequences", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &errors.RewriteError{Op: "rename sequences", Path: path, TempPath: tmp, Err: err}
	}
	return nil
}
