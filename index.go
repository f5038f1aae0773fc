package msgfolder

import (
	"log/slog"

	"github.com/infodancer/msgfolder/errors"
)

// Index maps message-ids to messages. An id maps to at most one message
// that is not deleted; a later message claiming a live id is marked deleted
// instead of replacing the entry.
type Index struct {
	byID   map[string]*Message
	logger *slog.Logger
}

func newIndex(logger *slog.Logger) *Index {
	return &Index{byID: make(map[string]*Message), logger: logger}
}

// Lookup returns the message indexed under id. The result may be a placeholder.
func (x *Index) Lookup(id string) (*Message, bool) {
	m, ok := x.byID[normalizeID(id)]
	return m, ok
}

// Len returns the number of indexed ids.
func (x *Index) Len() int { return len(x.byID) }

func (x *Index) has(id string) bool {
	_, ok := x.byID[id]
	return ok
}

// IDs returns the indexed ids in no particular order.
func (x *Index) IDs() []string {
	ids := make([]string, 0, len(x.byID))
	for id := range x.byID {
		ids = append(ids, id)
	}
	return ids
}

// Placeholder returns the message indexed under id, creating a dummy
// placeholder when there is none. Placeholders have no content, are
// deleted by default and give way to the real record when it is indexed.
func (x *Index) Placeholder(id string) *Message {
	id = normalizeID(id)
	if m, ok := x.byID[id]; ok {
		return m
	}
	m := &Message{
		id:      id,
		seq:     -1,
		content: delayedContent{},
		deleted: true,
		dummy:   true,
	}
	x.byID[id] = m
	return m
}

// insert indexes m and reports whether it became the entry for its id.
func (x *Index) insert(m *Message) bool {
	if m.id == "" {
		return false
	}
	existing, ok := x.byID[m.id]
	switch {
	case !ok, existing == m, existing.dummy, existing.deleted && !m.deleted:
		x.byID[m.id] = m
		return true
	case m.deleted:
		return false
	default:
		m.deleted = true
		x.logger.Warn("duplicate message id, later copy marked deleted",
			slog.String("id", m.id),
			slog.Int("seq", m.seq),
			slog.Int("first", existing.seq),
			slog.String("err", errors.ErrDuplicateMessageID.Error()))
		return false
	}
}

// remove drops the entry for m if m is the indexed message.
func (x *Index) remove(m *Message) {
	if m.id == "" {
		return
	}
	if existing, ok := x.byID[m.id]; ok && existing == m {
		delete(x.byID, m.id)
	}
}
