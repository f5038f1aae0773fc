package msgfolder

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/infodancer/msgfolder/errors"
	"github.com/infodancer/msgfolder/lock"
)

// Folder is an open message folder. It owns its messages, its index and
// its lock.
type Folder struct {
	cfg     Config
	name    string
	backend Backend
	locker  lock.Locker
	logger  *slog.Logger
	ids     IDGenerator
	partial []string

	messages []*Message
	index    *Index
	dirty    int
	delayed  int
	report   ScanReport
	closed   bool
}

// Open opens the folder described by config. Unless the folder is opened
// in Append mode, the store is scanned under the folder lock, which is
// released again before Open returns.
func Open(config Config) (*Folder, error) {
	backend, err := newBackend(config)
	if err != nil {
		return nil, err
	}

	f := &Folder{
		cfg:     config,
		name:    filepath.Base(filepath.Clean(config.Path)),
		backend: backend,
		logger:  config.logger().With(slog.String("folder", config.Path)),
		ids:     config.IDs,
		partial: config.partialFields(),
	}
	if f.ids == nil {
		f.ids = DigestIDs{}
	}
	f.index = newIndex(f.logger)

	target, kind := backend.LockTarget()
	if config.Lock.Kind != "" {
		kind = config.Lock.Kind
	}
	f.locker, err = lock.New(kind, target, lock.Options{
		Path:    config.Lock.Path,
		Retry:   config.Lock.Retry,
		Timeout: config.Lock.Timeout,
		Expires: config.Lock.Expires,
		Logger:  f.logger,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	if config.Mode == Append {
		return f, nil
	}

	if err := f.scan(); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return f, nil
}

func (f *Folder) scan() error {
	release, err := f.acquire()
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	records, err := f.backend.Scan(&f.report)
	if err != nil {
		return err
	}
	if err := f.adopt(records); err != nil {
		return err
	}
	f.logger.Debug("scanned folder",
		slog.Int("messages", len(records)),
		slog.Int("delayed", f.delayed),
		slog.Int64("skippedBytes", f.report.SkippedBytes),
		slog.Duration("duration", time.Since(start)))
	for _, c := range f.report.Corrupt {
		f.logger.Warn("skipped damaged region", slog.String("err", c.Error()))
	}
	return nil
}

// acquire takes the folder lock unless it is already held and returns the
// matching release function.
func (f *Folder) acquire() (func(), error) {
	if f.locker.HasLock() {
		return func() {}, nil
	}
	if err := f.locker.Lock(); err != nil {
		return nil, fmt.Errorf("lock folder %s: %w", f.cfg.Path, err)
	}
	return func() {
		if err := f.locker.Unlock(); err != nil {
			f.logger.Warn("unlock failed", slog.String("err", err.Error()))
		}
	}, nil
}

// adopt turns scanned records into messages at their policy-chosen state.
func (f *Folder) adopt(records []Record) error {
	for _, rec := range records {
		m := &Message{
			owner:   f,
			seq:     len(f.messages),
			loc:     rec.Locator,
			content: delayedContent{},
			size:    rec.Size,
			arrived: rec.Arrived,
			flags:   rec.Flags,
		}
		f.messages = append(f.messages, m)
		f.delayed++

		header := rec.Header
		if header == nil && f.cfg.Extract.NeedsHeader() {
			raw, err := f.backend.ReadHeader(m.loc)
			if err != nil {
				return fmt.Errorf("read header of %s: %w", m.loc, err)
			}
			header = raw
		}

		if header != nil {
			fields := scanFields(header, f.partial)
			f.learnID(m, fields, header)
			if !f.cfg.DelayHeaders {
				m.content = partialContent{selected: f.partial, fields: fields}
			}
		}

		if f.cfg.Extract.Extract(header, m.size) {
			if err := f.promote(m, Full); err != nil {
				return err
			}
		}
	}
	return nil
}

// learnID sets the id of m from its header fields, or synthesizes one,
// and indexes it.
func (f *Folder) learnID(m *Message, fields map[string][]string, raw []byte) {
	if m.id != "" {
		return
	}
	if v := fields["message-id"]; len(v) > 0 {
		m.id = normalizeID(v[0])
	}
	if m.id == "" {
		m.id = f.synthesizeID(raw)
	}
	f.index.insert(m)
}

// synthesizeID returns a generated id that is not yet indexed. Records
// whose headers produce the same id get a numeric suffix in the order
// they are learned, so duplicate suppression only ever sees real ids.
func (f *Folder) synthesizeID(raw []byte) string {
	base := f.ids.NewID(raw)
	local, domain, found := strings.Cut(base, "@")
	id := base
	for n := 2; f.index.has(id); n++ {
		id = fmt.Sprintf("%s.%d", local, n)
		if found {
			id += "@" + domain
		}
	}
	return id
}

// promote reads m from the store until it reaches want. FullHeader is
// always passed through on the way to Full.
func (f *Folder) promote(m *Message, want State) error {
	if m.dummy {
		return errors.ErrPlaceholder
	}
	if m.State() >= want {
		return nil
	}
	if f.closed {
		return errors.ErrFolderClosed
	}

	release, err := f.acquire()
	if err != nil {
		return err
	}
	defer release()

	if m.State() < FullHeader {
		raw, err := f.backend.ReadHeader(m.loc)
		if err != nil {
			return fmt.Errorf("read header of %s: %w", m.loc, err)
		}
		if want == PartialHeader {
			fields := scanFields(raw, f.partial)
			m.content = partialContent{selected: f.partial, fields: fields}
			f.learnID(m, fields, raw)
			return nil
		}
		h := ParseHeader(raw)
		m.content = fullHeaderContent{header: h}
		f.learnID(m, map[string][]string{"message-id": h.Values("Message-ID")}, raw)
		if want == FullHeader {
			return nil
		}
	}

	h := m.content.(fullHeaderContent).header
	body, err := f.backend.ReadBody(m.loc)
	if err != nil {
		return fmt.Errorf("read body of %s: %w", m.loc, err)
	}
	m.content = fullContent{header: h, body: body}
	f.delayed--
	f.logger.Debug("promoted message", slog.Int("seq", m.seq), slog.String("locator", m.loc.String()))
	return nil
}

func (f *Folder) coversPartial(name string) bool {
	return partialContent{selected: f.partial}.covers(name)
}

// Promote reads m into memory up to the requested state. Promoting a
// message that is already at or past that state does nothing.
func (f *Folder) Promote(m *Message, want State) error {
	return f.promote(m, want)
}

// Name returns the base name of the folder path.
func (f *Folder) Name() string { return f.name }

// Path returns the folder path.
func (f *Folder) Path() string { return f.cfg.Path }

// Type returns the backend name.
func (f *Folder) Type() string { return f.cfg.Type }

// Organization returns the physical layout of the store.
func (f *Folder) Organization() Organization { return f.backend.Organization() }

// Mode returns the access mode.
func (f *Folder) Mode() Mode { return f.cfg.Mode }

// Locker returns the folder lock.
func (f *Folder) Locker() lock.Locker { return f.locker }

// Index returns the message-id index.
func (f *Folder) Index() *Index { return f.index }

// ScanReport returns what the scans so far had to skip.
func (f *Folder) ScanReport() ScanReport { return f.report }

// Messages returns all messages in store order, deleted ones included.
func (f *Folder) Messages() []*Message {
	out := make([]*Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Message returns the message at position seq.
func (f *Folder) Message(seq int) (*Message, error) {
	if seq < 0 || seq >= len(f.messages) {
		return nil, fmt.Errorf("message %d: %w", seq, errors.ErrMessageNotFound)
	}
	return f.messages[seq], nil
}

// Len returns the number of messages, deleted ones included.
func (f *Folder) Len() int { return len(f.messages) }

// Count returns the number of messages not marked deleted.
func (f *Folder) Count() int {
	n := 0
	for _, m := range f.messages {
		if !m.deleted {
			n++
		}
	}
	return n
}

// DelayedCount returns the number of messages whose body is not in memory.
func (f *Folder) DelayedCount() int { return f.delayed }

// Modified reports whether there are changes that Write would store.
func (f *Folder) Modified() bool { return f.dirty > 0 }

func (f *Folder) writable() error {
	if f.closed {
		return errors.ErrFolderClosed
	}
	if f.cfg.Mode == ReadOnly {
		return errors.ErrReadOnly
	}
	return nil
}

func (f *Folder) owns(m *Message) error {
	if m == nil || m.dummy || m.owner != loader(f) {
		return errors.ErrMessageNotFound
	}
	return nil
}

// Add appends a new message. A Message-ID field is added when the header
// has none. If the id is already taken by a live message the new message
// is marked deleted.
func (f *Folder) Add(header *Header, body []byte) (*Message, error) {
	if err := f.writable(); err != nil {
		return nil, err
	}
	h := header.Clone()
	if h.MessageID() == "" {
		h.Set("Message-ID", "<"+f.synthesizeID(h.Bytes())+">")
	}
	body = normalizeBody(body)

	m := &Message{
		owner:    f,
		seq:      len(f.messages),
		id:       h.MessageID(),
		content:  fullContent{header: h, body: body},
		size:     int64(len(h.Bytes()) + 1 + len(body)),
		arrived:  time.Now(),
		modified: true,
	}
	f.messages = append(f.messages, m)
	f.index.insert(m)
	f.dirty++
	return m, nil
}

// AddRaw parses a raw RFC 5322 message and adds it.
func (f *Folder) AddRaw(raw []byte) (*Message, error) {
	header, body := SplitMessage(raw)
	return f.Add(ParseHeader(header), body)
}

// normalizeBody makes a non-empty body end with a newline, which the file
// store needs to keep the record boundary unambiguous.
func normalizeBody(body []byte) []byte {
	if len(body) == 0 || body[len(body)-1] == '\n' {
		return bytes.Clone(body)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, body...)
	return append(out, '\n')
}

// Delete marks m for deletion. Nothing is removed from disk until Write.
func (f *Folder) Delete(m *Message) error {
	if err := f.writable(); err != nil {
		return err
	}
	if err := f.owns(m); err != nil {
		return err
	}
	if !m.deleted {
		m.deleted = true
		f.dirty++
	}
	return nil
}

// Undelete clears the deletion mark of m.
func (f *Folder) Undelete(m *Message) error {
	if err := f.writable(); err != nil {
		return err
	}
	if err := f.owns(m); err != nil {
		return err
	}
	if !m.deleted {
		return nil
	}
	if existing, ok := f.index.Lookup(m.id); ok && existing != m && !existing.deleted && !existing.dummy {
		return fmt.Errorf("undelete %s: %w", m.id, errors.ErrDuplicateMessageID)
	}
	m.deleted = false
	f.index.insert(m)
	f.dirty++
	return nil
}

// Replace changes the header and body of m.
func (f *Folder) Replace(m *Message, header *Header, body []byte) error {
	if err := f.writable(); err != nil {
		return err
	}
	if err := f.owns(m); err != nil {
		return err
	}
	h := header.Clone()
	if h.MessageID() == "" && m.id != "" {
		h.Set("Message-ID", "<"+m.id+">")
	}
	if m.State() != Full {
		f.delayed--
	}
	m.content = fullContent{header: h, body: normalizeBody(body)}
	m.modified = true
	if id := h.MessageID(); id != m.id {
		f.index.remove(m)
		m.id = id
		f.index.insert(m)
	}
	f.dirty++
	return nil
}

// SetFlags replaces the flags of m.
func (f *Folder) SetFlags(m *Message, flags Flags) error {
	if err := f.writable(); err != nil {
		return err
	}
	if err := f.owns(m); err != nil {
		return err
	}
	flags &^= FlagRecent
	if flags == m.flags&^FlagRecent {
		return nil
	}
	m.flags = flags | m.flags&FlagRecent
	m.flagsChanged = true
	f.dirty++
	return nil
}

// Find returns the live message with the given id. When the id is not
// indexed yet, messages whose id is unknown are promoted from the newest
// backwards until the id turns up or the FindWindow is exhausted.
func (f *Folder) Find(id string) (*Message, bool) {
	id = normalizeID(id)
	if m, ok := f.index.Lookup(id); ok && !m.dummy {
		return m, true
	}

	window := f.cfg.FindWindow
	promoted := 0
	for i := len(f.messages) - 1; i >= 0; i-- {
		m := f.messages[i]
		if m.id != "" {
			continue
		}
		if !window.Since.IsZero() && !m.arrived.IsZero() && m.arrived.Before(window.Since) {
			break
		}
		if window.MaxMessages > 0 && promoted >= window.MaxMessages {
			break
		}
		promoted++
		if err := f.promote(m, PartialHeader); err != nil {
			f.logger.Warn("find: cannot read message", slog.Int("seq", m.seq), slog.String("err", err.Error()))
			continue
		}
		if m.id == id {
			if found, ok := f.index.Lookup(id); ok && !found.dummy {
				return found, true
			}
		}
	}
	return nil, false
}

// Update picks up records that appeared in the store since it was scanned
// and returns how many were added.
func (f *Folder) Update() (int, error) {
	if f.closed {
		return 0, errors.ErrFolderClosed
	}
	if f.cfg.Mode == Append {
		return 0, nil
	}
	release, err := f.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return f.refresh()
}

func (f *Folder) refresh() (int, error) {
	records, err := f.backend.Refresh(&f.report)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := f.adopt(records); err != nil {
		return 0, err
	}
	f.logger.Info("new messages in folder", slog.Int("count", len(records)))
	return len(records), nil
}

// Write stores all changes. Records of deleted messages are removed unless
// opts.KeepDeleted is set; kept deleted messages stay in the folder but do
// not count as active. On failure the store is left as it was.
func (f *Folder) Write(opts WriteOptions) error {
	if err := f.writable(); err != nil {
		return err
	}
	if f.dirty == 0 && !opts.Force {
		return nil
	}

	release, err := f.acquire()
	if err != nil {
		return err
	}
	defer release()

	if f.cfg.Mode != Append {
		if _, err := f.refresh(); err != nil {
			return err
		}
	}

	plan := &WritePlan{KeepDeleted: opts.KeepDeleted, Append: f.cfg.Mode == Append, folder: f}
	for _, m := range f.messages {
		if m.deleted && !opts.KeepDeleted {
			plan.Purge = append(plan.Purge, m)
		} else {
			plan.Keep = append(plan.Keep, m)
		}
	}

	start := time.Now()
	if err := f.backend.Write(plan); err != nil {
		f.logger.Error("write failed", slog.String("err", err.Error()))
		return err
	}

	for _, m := range plan.Purge {
		f.index.remove(m)
		if m.State() != Full {
			f.delayed--
		}
		m.owner = detached{}
	}
	for i, m := range plan.Keep {
		m.seq = i
		m.modified = false
		m.flagsChanged = false
	}
	f.messages = plan.Keep
	f.dirty = 0
	f.logger.Debug("wrote folder",
		slog.Int("kept", len(plan.Keep)),
		slog.Int("purged", len(plan.Purge)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Close writes pending changes unless the folder is read-only, then
// releases the store. With RemoveWhenEmpty an empty store is deleted.
func (f *Folder) Close() error {
	if f.closed {
		return nil
	}
	var errs []error
	if f.cfg.Mode != ReadOnly && f.dirty > 0 {
		if err := f.Write(WriteOptions{KeepDeleted: f.cfg.KeepDeleted}); err != nil {
			errs = append(errs, err)
		}
	}
	removeStore := f.cfg.RemoveWhenEmpty && f.cfg.Mode == ReadWrite && len(f.messages) == 0 && len(errs) == 0
	f.closed = true

	if err := f.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	if f.locker.HasLock() {
		if err := f.locker.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	if removeStore {
		if err := f.backend.Remove(); err != nil {
			errs = append(errs, fmt.Errorf("remove empty folder: %w", err))
		} else {
			f.logger.Info("removed empty folder")
		}
	}
	return stderrors.Join(errs...)
}

// detached is the loader of messages purged from their folder.
type detached struct{}

func (detached) promote(m *Message, want State) error {
	if m.State() >= want {
		return nil
	}
	return errors.ErrMessageNotFound
}

func (detached) coversPartial(string) bool { return false }

var _ loader = (*Folder)(nil)
