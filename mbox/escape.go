package mbox

import (
	"bufio"
	"bytes"
	"io"
)

var separatorPrefix = []byte("From ")

// isSeparator reports whether line starts a new record.
func isSeparator(line []byte) bool {
	return bytes.HasPrefix(line, separatorPrefix)
}

// isBlank reports whether line is an empty line, with or without CR.
func isBlank(line []byte) bool {
	return len(line) == 1 && line[0] == '\n' ||
		len(line) == 2 && line[0] == '\r' && line[1] == '\n'
}

// quotedFrom reports whether line is ">*From " with at least min quotes.
func quotedFrom(line []byte, min int) bool {
	n := 0
	for n < len(line) && line[n] == '>' {
		n++
	}
	return n >= min && bytes.HasPrefix(line[n:], separatorPrefix)
}

// writeEscaped writes body, adding one '>' to every ">*From " line.
func writeEscaped(w io.Writer, body []byte) (int64, error) {
	var n int64
	for len(body) > 0 {
		line := body
		if i := bytes.IndexByte(body, '\n'); i >= 0 {
			line, body = body[:i+1], body[i+1:]
		} else {
			body = nil
		}
		if quotedFrom(line, 0) {
			k, err := w.Write([]byte{'>'})
			n += int64(k)
			if err != nil {
				return n, err
			}
		}
		k, err := w.Write(line)
		n += int64(k)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// escape returns body as it is stored.
func escape(body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(body))
	_, _ = writeEscaped(&buf, body)
	return buf.Bytes()
}

// unescape strips one '>' from every ">+From " line.
func unescape(stored []byte) []byte {
	if !bytes.Contains(stored, separatorPrefix) {
		return stored
	}
	out := make([]byte, 0, len(stored))
	sc := bufio.NewReader(bytes.NewReader(stored))
	for {
		line, err := sc.ReadBytes('\n')
		if quotedFrom(line, 1) {
			line = line[1:]
		}
		out = append(out, line...)
		if err != nil {
			return out
		}
	}
}
