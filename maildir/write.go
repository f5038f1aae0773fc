package maildir

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"
)

// Write implements msgfolder.Backend. Each change is a single unlink or
// rename, so other readers always see complete messages.
func (s *Store) Write(plan *msgfolder.WritePlan) error {
	for _, m := range plan.Purge {
		if m.IsNew() {
			continue
		}
		if err := s.remove(m.Locator().Filename); err != nil {
			return fmt.Errorf("remove %s: %w", m.Locator().Filename, err)
		}
	}

	moved := 0
	for _, m := range plan.Keep {
		if m.IsNew() {
			continue
		}
		rel := m.Locator().Filename
		if m.IsModified() {
			if err := s.replace(plan, m, rel); err != nil {
				return err
			}
		}

		inNew := filepath.Dir(rel) == subNew
		switch {
		case inNew && (s.opts.AcceptNew || m.FlagsChanged()):
			name := curName(keyOf(filepath.Base(rel)), m.Flags())
			target, err := s.md.MoveToCur(rel, name)
			if err != nil {
				return fmt.Errorf("move %s to cur: %w", rel, err)
			}
			plan.Relocate(m, msgfolder.Locator{Filename: target})
			moved++
		case !inNew && m.FlagsChanged():
			msg, err := s.md.Dir().MessageByKey(keyOf(filepath.Base(rel)))
			if err != nil {
				return fmt.Errorf("set flags of %s: %w", rel, err)
			}
			if err := msg.SetFlags(toMaildirFlags(m.Flags())); err != nil {
				return fmt.Errorf("set flags of %s: %w", rel, err)
			}
			plan.Relocate(m, msgfolder.Locator{Filename: filepath.Join(subCur, filepath.Base(msg.Filename()))})
		}
	}

	for _, m := range plan.Keep {
		if !m.IsNew() {
			continue
		}
		h, body, err := plan.Content(m)
		if err != nil {
			return err
		}
		rel, size, err := s.md.Deliver(func(w io.Writer) (int64, error) {
			return msgfolder.WriteMessage(w, h, body)
		})
		if err != nil {
			return fmt.Errorf("deliver: %w", wrapAccess(err, s.md.Path()))
		}
		s.known[keyOf(filepath.Base(rel))] = true
		plan.Relocate(m, msgfolder.Locator{Filename: rel})
		plan.Resize(m, size)
	}

	s.logger.Debug("wrote maildir",
		slog.String("path", s.md.Path()),
		slog.Int("kept", len(plan.Keep)),
		slog.Int("purged", len(plan.Purge)),
		slog.Int("accepted", moved))
	return nil
}

// remove deletes a message file. Messages in cur/ go through go-maildir.
func (s *Store) remove(rel string) error {
	key := keyOf(filepath.Base(rel))
	delete(s.known, key)
	if filepath.Dir(rel) == subCur {
		msg, err := s.md.Dir().MessageByKey(key)
		if err == nil {
			return msg.Remove()
		}
	}
	err := os.Remove(filepath.Join(s.md.Path(), rel))
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// replace rewrites a modified message in place through tmp/.
func (s *Store) replace(plan *msgfolder.WritePlan, m *msgfolder.Message, rel string) error {
	h, body, err := plan.Content(m)
	if err != nil {
		return err
	}
	size, err := s.md.Replace(rel, func(w io.Writer) (int64, error) {
		return msgfolder.WriteMessage(w, h, body)
	})
	if err != nil {
		return &errors.RewriteError{Op: "replace " + rel, Path: s.md.Path(), Err: err}
	}
	plan.Resize(m, size)
	return nil
}
