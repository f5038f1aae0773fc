package mbox

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"
)

// File operations used by rewrite. Tests replace them to inject failures.
var (
	createTemp = os.CreateTemp
	renameFile = os.Rename
)

// countingWriter tracks the offset of everything written through it.
type countingWriter struct {
	w   io.Writer
	off int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.off += int64(n)
	return n, err
}

// relocation is a locator change applied once the new file is in place.
type relocation struct {
	m    *msgfolder.Message
	loc  msgfolder.Locator
	size int64
}

// Write implements msgfolder.Backend. New messages are appended in place
// when nothing else changed; otherwise the whole file is rewritten into a
// temporary file that replaces the original in one rename.
func (s *Store) Write(plan *msgfolder.WritePlan) error {
	if plan.OnlyAppends() {
		return s.appendNew(plan)
	}
	return s.rewrite(plan)
}

func (s *Store) appendNew(plan *msgfolder.WritePlan) error {
	var added []*msgfolder.Message
	for _, m := range plan.Keep {
		if m.IsNew() {
			added = append(added, m)
		}
	}
	if len(added) == 0 {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return wrapAccess(err, s.path)
	}
	defer func() { _ = f.Close() }()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	pad, err := padding(f, size)
	if err != nil {
		return err
	}

	truncate := func(cause error) error {
		if terr := f.Truncate(size); terr != nil {
			s.logger.Error("cannot truncate after failed append",
				slog.String("path", s.path), slog.String("err", terr.Error()))
		}
		return fmt.Errorf("append to %s: %w", s.path, cause)
	}

	bw := bufio.NewWriter(f)
	cw := &countingWriter{w: bw, off: size}
	if _, err := cw.Write(pad); err != nil {
		return truncate(err)
	}
	var moved []relocation
	for _, m := range added {
		r, err := s.writeMessage(cw, plan, m, nil)
		if err != nil {
			return truncate(err)
		}
		moved = append(moved, r)
	}
	if err := bw.Flush(); err != nil {
		return truncate(err)
	}
	if err := f.Sync(); err != nil {
		return truncate(err)
	}

	for _, r := range moved {
		plan.Relocate(r.m, r.loc)
		plan.Resize(r.m, r.size)
	}
	if s.file != nil {
		s.scanned = cw.off
	}
	s.logger.Debug("appended messages", slog.String("path", s.path), slog.Int("count", len(added)))
	return nil
}

// padding returns what must be written after the current end of file so
// that a new separator line follows a blank line.
func padding(f *os.File, size int64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	tail := make([]byte, min(size, 2))
	if _, err := f.ReadAt(tail, size-int64(len(tail))); err != nil {
		return nil, err
	}
	switch {
	case len(tail) == 2 && tail[0] == '\n' && tail[1] == '\n':
		return nil, nil
	case tail[len(tail)-1] == '\n':
		return []byte("\n"), nil
	default:
		return []byte("\n\n"), nil
	}
}

func (s *Store) rewrite(plan *msgfolder.WritePlan) error {
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	mode := os.FileMode(0600)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := createTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return &errors.RewriteError{Op: "create temporary file", Path: s.path, Err: wrapAccess(err, dir)}
	}
	tmpPath := tmp.Name()
	fail := func(op string, cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return &errors.RewriteError{Op: op, Path: s.path, Err: cause}
	}

	bw := bufio.NewWriterSize(tmp, 64*1024)
	cw := &countingWriter{w: bw}
	var moved []relocation
	for _, m := range plan.Keep {
		var r relocation
		if m.IsNew() || m.IsModified() || m.FlagsChanged() {
			sep, err := s.separatorOf(m)
			if err != nil {
				return fail("read separator", err)
			}
			r, err = s.writeMessage(cw, plan, m, sep)
			if err != nil {
				return fail("write message", err)
			}
		} else {
			r, err = s.copyRecord(cw, m)
			if err != nil {
				return fail("copy record", err)
			}
		}
		moved = append(moved, r)
	}
	if err := bw.Flush(); err != nil {
		return fail("flush", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &errors.RewriteError{Op: "close", Path: s.path, Err: err}
	}

	if err := renameFile(tmpPath, s.path); err != nil {
		s.logger.Error("cannot replace mbox, temporary copy kept",
			slog.String("path", s.path), slog.String("temp", tmpPath), slog.String("err", err.Error()))
		return &errors.RewriteError{Op: "rename", Path: s.path, TempPath: tmpPath, Err: err}
	}

	for _, r := range moved {
		plan.Relocate(r.m, r.loc)
		plan.Resize(r.m, r.size)
	}
	s.scanned = cw.off
	if err := s.reopen(); err != nil {
		return err
	}
	s.logger.Debug("rewrote mbox",
		slog.String("path", s.path),
		slog.Int("kept", len(plan.Keep)),
		slog.Int("purged", len(plan.Purge)),
		slog.Int64("size", cw.off))
	return nil
}

// copyRecord copies an unchanged record byte for byte.
func (s *Store) copyRecord(cw *countingWriter, m *msgfolder.Message) (relocation, error) {
	if s.file == nil {
		return relocation{}, errors.ErrFolderClosed
	}
	old := m.Locator()
	start := cw.off
	sr := io.NewSectionReader(s.file, old.Separator, old.End()-old.Separator)
	if _, err := io.Copy(cw, sr); err != nil {
		return relocation{}, err
	}
	if _, err := cw.Write([]byte{'\n'}); err != nil {
		return relocation{}, err
	}
	shift := start - old.Separator
	loc := msgfolder.Locator{
		Separator:   old.Separator + shift,
		HeaderBegin: old.HeaderBegin + shift,
		Begin:       old.Begin + shift,
		Size:        old.Size,
	}
	return relocation{m: m, loc: loc, size: m.Size()}, nil
}

// separatorOf returns the stored separator line of an existing record.
func (s *Store) separatorOf(m *msgfolder.Message) ([]byte, error) {
	loc := m.Locator()
	if loc.IsZero() || s.file == nil {
		return nil, nil
	}
	line := make([]byte, loc.HeaderBegin-loc.Separator)
	if _, err := s.file.ReadAt(line, loc.Separator); err != nil {
		return nil, err
	}
	return line, nil
}

// writeMessage serializes m as a new record. sep is the separator line to
// reuse; when nil one is built from the message.
func (s *Store) writeMessage(cw *countingWriter, plan *msgfolder.WritePlan, m *msgfolder.Message, sep []byte) (relocation, error) {
	h, body, err := plan.Content(m)
	if err != nil {
		return relocation{}, err
	}
	if m.FlagsChanged() {
		h = h.Clone()
		applyFlags(h, m.Flags())
	}
	if sep == nil {
		sep = []byte(separatorLine(h, s.sender, m.Arrived()))
	}

	start := cw.off
	if _, err := cw.Write(sep); err != nil {
		return relocation{}, err
	}
	headerBegin := cw.off
	if _, err := cw.Write(h.Bytes()); err != nil {
		return relocation{}, err
	}
	if _, err := cw.Write([]byte{'\n'}); err != nil {
		return relocation{}, err
	}
	begin := cw.off
	n, err := writeEscaped(cw, body)
	if err != nil {
		return relocation{}, err
	}
	if _, err := cw.Write([]byte{'\n'}); err != nil {
		return relocation{}, err
	}
	loc := msgfolder.Locator{Separator: start, HeaderBegin: headerBegin, Begin: begin, Size: n}
	return relocation{m: m, loc: loc, size: loc.End() - start}, nil
}

// separatorLine builds "From sender date\n" for a message.
func separatorLine(h *msgfolder.Header, fallback string, arrived time.Time) string {
	if arrived.IsZero() {
		arrived = time.Now()
	}
	return "From " + envelopeSender(h, fallback) + " " + arrived.UTC().Format(time.ANSIC) + "\n"
}

// envelopeSender picks the address for a separator line: Return-Path,
// then the first From address, then fallback.
func envelopeSender(h *msgfolder.Header, fallback string) string {
	for _, field := range []string{"Return-Path", "From", "Sender"} {
		v := h.Get(field)
		if v == "" {
			continue
		}
		if addr, err := mail.ParseAddress(v); err == nil && addr.Address != "" {
			return addr.Address
		}
		if v = strings.Trim(v, "<> \t"); v != "" && !strings.ContainsAny(v, " \t") {
			return v
		}
	}
	if fallback == "" {
		return DefaultSender
	}
	return fallback
}

