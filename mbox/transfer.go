package mbox

import (
	stderrors "errors"
	"fmt"
	"io"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/infodancer/msgfolder"
)

// Import reads every message of a foreign mbox stream and adds it to f.
// It returns the number of messages added. Messages whose id is already
// present are added marked deleted, as with any duplicate.
func Import(f *msgfolder.Folder, r io.Reader) (int, error) {
	reader := mboxlib.NewReader(r)
	n := 0
	for {
		msg, err := reader.NextMessage()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("import message %d: %w", n+1, err)
		}
		raw, err := io.ReadAll(msg)
		if err != nil {
			return n, fmt.Errorf("import message %d: %w", n+1, err)
		}
		if _, err := f.AddRaw(raw); err != nil {
			return n, fmt.Errorf("import message %d: %w", n+1, err)
		}
		n++
	}
}

// Export writes every message of f that is not marked deleted to w as an
// mbox stream and returns the number written.
func Export(f *msgfolder.Folder, w io.Writer) (int, error) {
	writer := mboxlib.NewWriter(w)
	n := 0
	for _, m := range f.Messages() {
		if m.IsDeleted() {
			continue
		}
		h, err := m.Header()
		if err != nil {
			return n, fmt.Errorf("export message %d: %w", m.Seq(), err)
		}
		body, err := m.Body()
		if err != nil {
			return n, fmt.Errorf("export message %d: %w", m.Seq(), err)
		}
		arrived := m.Arrived()
		if arrived.IsZero() {
			arrived = time.Now()
		}
		mw, err := writer.CreateMessage(envelopeSender(h, DefaultSender), arrived)
		if err != nil {
			return n, fmt.Errorf("export message %d: %w", m.Seq(), err)
		}
		if _, err := msgfolder.WriteMessage(mw, h, body); err != nil {
			return n, fmt.Errorf("export message %d: %w", m.Seq(), err)
		}
		n++
	}
	if err := writer.Close(); err != nil {
		return n, err
	}
	return n, nil
}
