package msgfolder

import (
	"fmt"
	"strings"
	"time"

	"github.com/infodancer/msgfolder/errors"
)

// State is how much of a message has been read into memory. States only
// move forward: Delayed, PartialHeader, FullHeader, Full.
type State int

const (
	// Delayed messages only know where their bytes are.
	Delayed State = iota
	// PartialHeader messages hold a selected subset of header fields.
	PartialHeader
	// FullHeader messages hold the complete header; the body is still on disk.
	FullHeader
	// Full messages hold header and body.
	Full
)

func (s State) String() string {
	switch s {
	case Delayed:
		return "delayed"
	case PartialHeader:
		return "partial-header"
	case FullHeader:
		return "full-header"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Locator is the minimal information needed to find a record's bytes.
// File stores use the offsets; directory stores use Filename, relative to
// the folder directory.
type Locator struct {
	// Separator is the offset of the record's separator line.
	Separator int64
	// HeaderBegin is the offset of the first header line.
	HeaderBegin int64
	// Begin is the offset of the first body byte, just after the blank line.
	Begin int64
	// Size is the body length in bytes as stored.
	Size int64

	Filename string
}

// End returns the offset just past the body.
func (l Locator) End() int64 { return l.Begin + l.Size }

// IsZero reports whether the locator points at nothing, as for messages
// that have not been written yet.
func (l Locator) IsZero() bool { return l == Locator{} }

func (l Locator) String() string {
	if l.Filename != "" {
		return l.Filename
	}
	return fmt.Sprintf("[%d,%d)", l.Begin, l.End())
}

// Flags are the per-message status bits backends know how to persist.
type Flags uint8

const (
	FlagSeen Flags = 1 << iota
	FlagReplied
	FlagFlagged
	FlagDraft
	FlagTrashed
	FlagPassed
	// FlagRecent marks messages that arrived since the store was last
	// written. It is derived from the store and never persisted.
	FlagRecent
)

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	names := []struct {
		flag Flags
		name string
	}{
		{FlagSeen, "seen"},
		{FlagReplied, "replied"},
		{FlagFlagged, "flagged"},
		{FlagDraft, "draft"},
		{FlagTrashed, "trashed"},
		{FlagPassed, "passed"},
		{FlagRecent, "recent"},
	}
	var out []string
	for _, n := range names {
		if f.Has(n.flag) {
			out = append(out, n.name)
		}
	}
	return strings.Join(out, ",")
}

// content is the promotion state of a message. Promotion replaces the
// value held by the handle; it never mutates a content in place.
type content interface {
	state() State
}

type delayedContent struct{}

type partialContent struct {
	selected []string // lower-case field names that were looked for
	fields   map[string][]string
}

type fullHeaderContent struct {
	header *Header
}

type fullContent struct {
	header *Header
	body   []byte
}

func (delayedContent) state() State    { return Delayed }
func (partialContent) state() State    { return PartialHeader }
func (fullHeaderContent) state() State { return FullHeader }
func (fullContent) state() State       { return Full }

func (p partialContent) covers(name string) bool {
	name = strings.ToLower(name)
	for _, s := range p.selected {
		if s == name {
			return true
		}
	}
	return false
}

func (p partialContent) get(name string) string {
	if v := p.fields[strings.ToLower(name)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// loader promotes messages. The Folder implements it; a message only holds
// it to call back, it never owns the folder.
type loader interface {
	promote(m *Message, want State) error
	coversPartial(name string) bool
}

// Message is a lazy handle on one record of a folder.
//
// Accessors may read from disk to promote the handle; they never modify
// the folder. All mutation goes through the Folder.
type Message struct {
	owner loader
	seq   int

	id      string
	loc     Locator
	content content
	size    int64
	arrived time.Time
	flags   Flags

	deleted      bool
	modified     bool
	flagsChanged bool
	dummy        bool
}

// Seq returns the message's position in its folder.
func (m *Message) Seq() int { return m.seq }

// State returns the current promotion state.
func (m *Message) State() State { return m.content.state() }

// Locator returns where the message is stored. It is zero for messages
// added since the last write.
func (m *Message) Locator() Locator { return m.loc }

// Size returns the stored size of the record in bytes.
func (m *Message) Size() int64 { return m.size }

// Arrived returns the arrival time recorded by the store, if any.
func (m *Message) Arrived() time.Time { return m.arrived }

// Flags returns the message's status flags.
func (m *Message) Flags() Flags { return m.flags }

// IsDeleted reports whether the message is marked for deletion.
func (m *Message) IsDeleted() bool { return m.deleted }

// IsModified reports whether header or body changed since the last write.
func (m *Message) IsModified() bool { return m.modified }

// FlagsChanged reports whether flags changed since the last write.
func (m *Message) FlagsChanged() bool { return m.flagsChanged }

// IsNew reports whether the message has never been written to the store.
func (m *Message) IsNew() bool { return m.loc.IsZero() && !m.dummy }

// IsDummy reports whether the message is a placeholder for an id that is
// referenced but not present in the store.
func (m *Message) IsDummy() bool { return m.dummy }

// ID returns the message-id, reading the header if it is not known yet.
func (m *Message) ID() (string, error) {
	if m.id != "" || m.dummy {
		return m.id, nil
	}
	if err := m.owner.promote(m, PartialHeader); err != nil {
		return "", err
	}
	return m.id, nil
}

// KnownID returns the message-id if it is known without reading from disk.
func (m *Message) KnownID() string { return m.id }

// Get returns the first value of the named header field. A partial header
// answers for its selected fields; any other name promotes the message to
// FullHeader first.
func (m *Message) Get(name string) (string, error) {
	if m.dummy {
		return "", errors.ErrPlaceholder
	}
	switch c := m.content.(type) {
	case partialContent:
		if c.covers(name) {
			return c.get(name), nil
		}
	case fullHeaderContent:
		return c.header.Get(name), nil
	case fullContent:
		return c.header.Get(name), nil
	case delayedContent:
		if m.owner.coversPartial(name) {
			if err := m.owner.promote(m, PartialHeader); err != nil {
				return "", err
			}
			return m.Get(name)
		}
	}
	if err := m.owner.promote(m, FullHeader); err != nil {
		return "", err
	}
	return m.Get(name)
}

// Header returns the complete header. The returned header must not be
// modified; use Folder.Replace to change a message.
func (m *Message) Header() (*Header, error) {
	if m.dummy {
		return nil, errors.ErrPlaceholder
	}
	if err := m.owner.promote(m, FullHeader); err != nil {
		return nil, err
	}
	switch c := m.content.(type) {
	case fullHeaderContent:
		return c.header, nil
	case fullContent:
		return c.header, nil
	}
	return nil, fmt.Errorf("message %d: header not loaded", m.seq)
}

// Body returns the message body, promoting the message to Full. The
// returned slice must not be modified.
func (m *Message) Body() ([]byte, error) {
	if m.dummy {
		return nil, errors.ErrPlaceholder
	}
	if err := m.owner.promote(m, Full); err != nil {
		return nil, err
	}
	if c, ok := m.content.(fullContent); ok {
		return c.body, nil
	}
	return nil, fmt.Errorf("message %d: body not loaded", m.seq)
}

// full returns the in-memory content of a Full message.
func (m *Message) full() (*Header, []byte, bool) {
	c, ok := m.content.(fullContent)
	if !ok {
		return nil, nil, false
	}
	return c.header, c.body, true
}
