package msgfolder

import (
	"time"

	"github.com/infodancer/msgfolder/lock"
)

// Backend implements one on-disk organization of a folder.
//
// The Folder calls a Backend only while holding the folder lock, except for
// Close and Remove. Backends never parse headers beyond what they need to
// find record boundaries; parsing happens in the Folder at promotion time.
type Backend interface {
	// Organization returns the physical layout.
	Organization() Organization

	// LockTarget returns the path protected by the folder lock and the
	// strategy used when the configuration does not name one.
	LockTarget() (target string, kind lock.Kind)

	// Scan lists every record in store order.
	Scan(report *ScanReport) ([]Record, error)

	// Refresh lists records that appeared since the last Scan or Refresh.
	Refresh(report *ScanReport) ([]Record, error)

	// ReadHeader returns the raw header block of a record, without the
	// blank line that terminates it.
	ReadHeader(loc Locator) ([]byte, error)

	// ReadBody returns the body of a record, unescaped.
	ReadBody(loc Locator) ([]byte, error)

	// Write brings the store in line with the plan. It must either
	// complete or leave every record it did not report through
	// WritePlan.Relocate untouched.
	Write(plan *WritePlan) error

	// Remove deletes the empty store.
	Remove() error

	// Close releases open descriptors.
	Close() error
}

// Record is one scanned record.
type Record struct {
	Locator Locator

	// Header is the raw header block when the backend read it anyway, else nil.
	Header []byte

	Size    int64
	Arrived time.Time
	Flags   Flags
}

// ScanReport accumulates what a scan had to skip.
type ScanReport struct {
	// Records is the number of records found by the last scan or refresh.
	Records int

	// Corrupt holds one *errors.BoundaryError per damaged region.
	Corrupt []error

	// SkippedBytes is the total size of the damaged regions.
	SkippedBytes int64
}

// WritePlan is what a Folder asks its Backend to write.
type WritePlan struct {
	// Keep lists the messages that stay, in folder order. It includes
	// deleted messages when KeepDeleted is set.
	Keep []*Message

	// Purge lists the messages whose records are removed.
	Purge []*Message

	KeepDeleted bool

	// Append is set for folders opened in Append mode: Keep then holds
	// only messages added since opening and nothing else may be touched.
	Append bool

	folder *Folder
}

// Content returns the header and body a message must be written with,
// reading it from the store if needed. Backends call it before replacing
// the original store.
func (p *WritePlan) Content(m *Message) (*Header, []byte, error) {
	if err := p.folder.promote(m, Full); err != nil {
		return nil, nil, err
	}
	h, body, _ := m.full()
	return h, body, nil
}

// Relocate records the new position of a message on disk.
func (p *WritePlan) Relocate(m *Message, loc Locator) {
	m.loc = loc
}

// Resize records the new stored size of a message.
func (p *WritePlan) Resize(m *Message, size int64) {
	m.size = size
}

// OnlyAppends reports whether the plan can be carried out by appending new
// messages without touching existing records.
func (p *WritePlan) OnlyAppends() bool {
	if p.Append {
		return true
	}
	if len(p.Purge) > 0 {
		return false
	}
	seenNew := false
	for _, m := range p.Keep {
		if m.IsNew() {
			seenNew = true
			continue
		}
		if seenNew || m.modified || m.flagsChanged {
			return false
		}
	}
	return true
}
