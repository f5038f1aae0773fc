package msgfolder

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/emersion/go-message/textproto"
)

// Field is a single header field. Value is unfolded.
type Field struct {
	Name  string
	Value string
}

// Header is an ordered list of header fields. Lookups are case-insensitive;
// field names keep the case they were read or added with.
type Header struct {
	fields []Field
}

// NewHeader returns a header holding the given fields in order.
func NewHeader(fields ...Field) *Header {
	h := &Header{fields: make([]Field, len(fields))}
	copy(h.fields, fields)
	return h
}

// ParseHeader parses a raw header block, with or without its terminating
// blank line. Lines that are not well-formed fields are kept when possible
// and dropped otherwise; parsing never fails.
func ParseHeader(raw []byte) *Header {
	block := make([]byte, 0, len(raw)+2)
	block = append(block, raw...)
	if !bytes.HasSuffix(block, []byte("\n\n")) && !bytes.HasSuffix(block, []byte("\r\n\r\n")) {
		if len(block) > 0 && block[len(block)-1] != '\n' {
			block = append(block, '\n')
		}
		block = append(block, '\n')
	}

	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(block)))
	if err != nil {
		return parseLenient(raw)
	}

	h := &Header{}
	fields := th.Fields()
	for fields.Next() {
		name := fields.Key()
		if rawField, err := fields.Raw(); err == nil {
			if i := bytes.IndexByte(rawField, ':'); i > 0 {
				name = string(bytes.TrimSpace(rawField[:i]))
			}
		}
		h.fields = append(h.fields, Field{Name: name, Value: unfold(fields.Value())})
	}
	return h
}

// parseLenient splits fields on the first colon and joins continuation lines.
func parseLenient(raw []byte) *Header {
	h := &Header{}
	forEachField(raw, func(name, value string) {
		h.fields = append(h.fields, Field{Name: name, Value: value})
	})
	return h
}

// forEachField walks a raw header block in one pass. Continuation lines are
// joined to the field they belong to; lines without a colon are skipped.
func forEachField(raw []byte, fn func(name, value string)) {
	var name string
	var value strings.Builder
	have := false
	flush := func() {
		if have {
			fn(name, strings.TrimSpace(value.String()))
		}
		have = false
		value.Reset()
	}
	for len(raw) > 0 {
		line := raw
		if i := bytes.IndexByte(raw, '\n'); i >= 0 {
			line, raw = raw[:i], raw[i+1:]
		} else {
			raw = nil
		}
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			if have {
				value.Write(line)
			}
			continue
		}
		flush()
		i := bytes.IndexByte(line, ':')
		if i <= 0 {
			continue
		}
		name = string(bytes.TrimSpace(line[:i]))
		value.Write(line[i+1:])
		have = true
	}
	flush()
}

// scanFields extracts only the named fields from a raw header block.
// Names are matched case-insensitively; the result is keyed by lower-case name.
func scanFields(raw []byte, names []string) map[string][]string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	out := make(map[string][]string)
	forEachField(raw, func(name, value string) {
		key := strings.ToLower(name)
		if want[key] {
			out[key] = append(out[key], value)
		}
	})
	return out
}

// ScanFields extracts the named fields from a raw header block without
// parsing the rest. The result is keyed by lower-case field name.
func ScanFields(raw []byte, names ...string) map[string][]string {
	return scanFields(raw, names)
}

func unfold(v string) string {
	if !strings.ContainsAny(v, "\r\n") {
		return strings.TrimSpace(v)
	}
	v = strings.ReplaceAll(v, "\r\n", "")
	v = strings.ReplaceAll(v, "\n", "")
	return strings.TrimSpace(v)
}

// Get returns the first value of the named field, or "".
func (h *Header) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns all values of the named field in order.
func (h *Header) Values(name string) []string {
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Has reports whether the named field is present.
func (h *Header) Has(name string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Add appends a field.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Set replaces the first occurrence of the named field and drops the
// others, or appends the field if it is absent.
func (h *Header) Set(name, value string) {
	out := h.fields[:0]
	set := false
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			if set {
				continue
			}
			f.Value = value
			set = true
		}
		out = append(out, f)
	}
	h.fields = out
	if !set {
		h.Add(name, value)
	}
}

// Del removes every occurrence of the named field.
func (h *Header) Del(name string) {
	out := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Fields returns a copy of the fields in order.
func (h *Header) Fields() []Field {
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}

// Len returns the number of fields.
func (h *Header) Len() int { return len(h.fields) }

// Clone returns a deep copy.
func (h *Header) Clone() *Header { return NewHeader(h.fields...) }

// MessageID returns the Message-ID without surrounding angle brackets.
func (h *Header) MessageID() string {
	return normalizeID(h.Get("Message-ID"))
}

// Bytes serializes the header as LF-terminated "Name: value" lines,
// without the blank line that ends a header block. Line breaks inside a
// value are written as folded continuation lines, so a value can never
// start a field or record of its own.
func (h *Header) Bytes() []byte {
	var buf bytes.Buffer
	for _, f := range h.fields {
		buf.WriteString(stripBreaks.Replace(f.Name))
		buf.WriteString(": ")
		writeFolded(&buf, f.Value)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

var stripBreaks = strings.NewReplacer("\r", "", "\n", "")

func writeFolded(buf *bytes.Buffer, value string) {
	if !strings.ContainsAny(value, "\r\n") {
		buf.WriteString(value)
		return
	}
	first := true
	for _, line := range strings.FieldsFunc(value, func(r rune) bool { return r == '\r' || r == '\n' }) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !first {
			buf.WriteString("\n ")
		}
		buf.WriteString(line)
		first = false
	}
}

func normalizeID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<> \t")
}

// SplitMessage splits a raw message at the first blank line. The header
// keeps the newline of its last line; the blank line belongs to neither part.
func SplitMessage(raw []byte) (header, body []byte) {
	off := 0
	for off < len(raw) {
		nl := bytes.IndexByte(raw[off:], '\n')
		if nl < 0 {
			break
		}
		line := raw[off : off+nl+1]
		if len(line) == 1 || (len(line) == 2 && line[0] == '\r') {
			return raw[:off], raw[off+len(line):]
		}
		off += nl + 1
	}
	return raw, nil
}

// ReadHeaderBlock reads lines up to and excluding the first blank line.
// It stops without error at end of input.
func ReadHeaderBlock(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		line, err := r.ReadBytes('\n')
		if len(line) == 1 || (len(line) == 2 && line[0] == '\r' && line[1] == '\n') {
			return buf.Bytes(), nil
		}
		buf.Write(line)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf.Bytes(), nil
			}
			return nil, err
		}
	}
}

// WriteMessage writes header, blank line and body.
func WriteMessage(w io.Writer, h *Header, body []byte) (int64, error) {
	var n int64
	k, err := w.Write(h.Bytes())
	n += int64(k)
	if err != nil {
		return n, err
	}
	k, err = w.Write([]byte{'\n'})
	n += int64(k)
	if err != nil {
		return n, err
	}
	k, err = w.Write(body)
	n += int64(k)
	return n, err
}
