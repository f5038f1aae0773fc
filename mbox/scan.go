package mbox

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"
)

// lineReader reads lines while tracking their offsets in the file.
type lineReader struct {
	r       *bufio.Reader
	off     int64 // offset just past line
	lineOff int64 // offset of line
	line    []byte
	eof     bool
	err     error
}

func (l *lineReader) next() {
	if l.eof {
		return
	}
	l.lineOff = l.off
	line, err := l.r.ReadBytes('\n')
	if err != nil && !stderrors.Is(err, io.EOF) {
		l.err = err
	}
	if len(line) == 0 {
		l.eof = true
		l.line = nil
		return
	}
	l.line = line
	l.off += int64(len(line))
}

// scan reads records from r, which is positioned at offset start. It
// returns the records found and the offset where reading stopped.
//
// Damaged regions are skipped up to the next separator line and reported
// as *errors.BoundaryError: data before the first separator, and records
// whose header block is interrupted by another separator.
func scan(r io.Reader, start int64, report *msgfolder.ScanReport) ([]msgfolder.Record, int64, error) {
	l := &lineReader{r: bufio.NewReaderSize(r, 64*1024), off: start}
	var records []msgfolder.Record

	corrupt := func(off, end int64, reason string) {
		err := &errors.BoundaryError{Offset: off, Skipped: end - off, Reason: reason}
		report.Corrupt = append(report.Corrupt, err)
		report.SkippedBytes += err.Skipped
	}

	l.next()
	for !l.eof && isBlank(l.line) {
		l.next()
	}

	for !l.eof {
		if l.err != nil {
			return nil, l.off, l.err
		}
		if !isSeparator(l.line) {
			from := l.lineOff
			for !l.eof && !isSeparator(l.line) {
				l.next()
			}
			corrupt(from, l.lineOff, "no separator line")
			continue
		}

		sepOff := l.lineOff
		arrived := parseSeparatorDate(l.line)

		// Header block.
		l.next()
		headerBegin := l.lineOff
		var header bytes.Buffer
		broken := false
		for !l.eof {
			if isBlank(l.line) || isSeparator(l.line) {
				broken = isSeparator(l.line)
				break
			}
			header.Write(l.line)
			l.next()
		}
		if broken {
			corrupt(sepOff, l.lineOff, "separator inside header")
			continue
		}

		// Body, up to the next separator. The blank line that precedes the
		// separator is not part of the body.
		begin := l.off
		l.next()
		var last []byte
		for !l.eof && !isSeparator(l.line) {
			last = l.line
			l.next()
		}
		end := l.lineOff
		if l.eof {
			end = l.off
		}
		size := end - begin
		if last != nil && isBlank(last) {
			size -= int64(len(last))
		}

		raw := bytes.Clone(header.Bytes())
		records = append(records, msgfolder.Record{
			Locator: msgfolder.Locator{
				Separator:   sepOff,
				HeaderBegin: headerBegin,
				Begin:       begin,
				Size:        size,
			},
			Header:  raw,
			Size:    begin + size - sepOff,
			Arrived: arrived,
			Flags:   parseFlags(raw),
		})
	}
	if l.err != nil {
		return nil, l.off, l.err
	}
	return records, l.off, nil
}

var separatorLayouts = []string{
	"Mon Jan _2 15:04:05 2006",
	"Mon Jan _2 15:04:05 MST 2006",
	"Mon Jan _2 15:04:05 -0700 2006",
	"Mon Jan _2 15:04 2006",
}

// parseSeparatorDate reads the date of a "From sender date" line.
// It returns the zero time when the date is missing or malformed.
func parseSeparatorDate(line []byte) time.Time {
	fields := strings.Fields(string(line))
	if len(fields) < 3 {
		return time.Time{}
	}
	rest := fields[2:]
	for _, layout := range separatorLayouts {
		n := len(strings.Fields(layout))
		if len(rest) < n {
			continue
		}
		value := strings.Join(rest[len(rest)-n:], " ")
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
