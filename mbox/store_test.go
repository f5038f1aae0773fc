package mbox

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"
	"github.com/infodancer/msgfolder/lock"
)

const (
	rec1 = "From a@example.com Mon Jan  2 15:04:05 2006\n" +
		"Message-ID: <m1@example.com>\n" +
		"Subject: one\n" +
		"\n" +
		"first body\n"
	rec2 = "From b@example.com Mon Jan  2 15:05:05 2006\n" +
		"Message-ID: <m2@example.com>\n" +
		"Subject: two\n" +
		"\n" +
		"second body\n"
	rec3 = "From c@example.com Mon Jan  2 15:06:05 2006\n" +
		"Message-ID: <m3@example.com>\n" +
		"Subject: three\n" +
		"\n" +
		"third body\n"

	threeMessages = rec1 + "\n" + rec2 + "\n" + rec3
)

func writeMbox(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inbox")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write mbox: %v", err)
	}
	return path
}

func openFolder(t *testing.T, path string, mode msgfolder.Mode, opts ...func(*msgfolder.Config)) *msgfolder.Folder {
	t.Helper()
	cfg := msgfolder.Config{Type: "mbox", Path: path, Mode: mode}
	for _, o := range opts {
		o(&cfg)
	}
	f, err := msgfolder.Open(cfg)
	if err != nil {
		t.Fatalf("Open %s: %v", path, err)
	}
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func ids(t *testing.T, f *msgfolder.Folder) []string {
	t.Helper()
	var out []string
	for _, m := range f.Messages() {
		id, err := m.ID()
		if err != nil {
			t.Fatalf("ID of %d: %v", m.Seq(), err)
		}
		out = append(out, id)
	}
	return out
}

func TestScan_Locators(t *testing.T) {
	var report msgfolder.ScanReport
	records, end, err := scan(strings.NewReader(threeMessages), 0, &report)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if end != int64(len(threeMessages)) {
		t.Errorf("end = %d, want %d", end, len(threeMessages))
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if len(report.Corrupt) != 0 {
		t.Errorf("unexpected corrupt regions: %v", report.Corrupt)
	}

	wantBodies := []string{"first body\n", "second body\n", "third body\n"}
	for i, rec := range records {
		loc := rec.Locator
		body := threeMessages[loc.Begin:loc.End()]
		if body != wantBodies[i] {
			t.Errorf("record %d body = %q, want %q", i, body, wantBodies[i])
		}
		if !strings.HasPrefix(threeMessages[loc.Separator:], "From ") {
			t.Errorf("record %d separator offset %d does not point at a separator", i, loc.Separator)
		}
		if !bytes.HasPrefix(rec.Header, []byte("Message-ID:")) {
			t.Errorf("record %d header = %q", i, rec.Header)
		}
		if rec.Arrived.IsZero() {
			t.Errorf("record %d has no arrival time", i)
		}
		if !rec.Flags.Has(msgfolder.FlagRecent) {
			t.Errorf("record %d should be recent, flags %v", i, rec.Flags)
		}
	}
}

func TestScan_CorruptBoundaries(t *testing.T) {
	garbage := "garbage before the first separator\nmore garbage\n"
	broken := "From x@example.com Mon Jan  2 15:00:00 2006\n" +
		"Subject: interrupted\n"
	content := garbage + broken + rec1 + "\n" + rec2

	var report msgfolder.ScanReport
	records, _, err := scan(strings.NewReader(content), 0, &report)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(report.Corrupt) != 2 {
		t.Fatalf("expected 2 corrupt regions, got %d", len(report.Corrupt))
	}
	for _, c := range report.Corrupt {
		if !stderrors.Is(c, errors.ErrCorruptBoundary) {
			t.Errorf("expected ErrCorruptBoundary, got %v", c)
		}
	}
	if want := int64(len(garbage) + len(broken)); report.SkippedBytes != want {
		t.Errorf("SkippedBytes = %d, want %d", report.SkippedBytes, want)
	}

	var be *errors.BoundaryError
	if !stderrors.As(report.Corrupt[1], &be) || be.Offset != int64(len(garbage)) {
		t.Errorf("second region should start at %d, got %v", len(garbage), report.Corrupt[1])
	}
}

func TestScan_EmptyBodyAndHeaderAtEOF(t *testing.T) {
	content := "From a@example.com Mon Jan  2 15:04:05 2006\nSubject: empty\n\n\n" +
		"From b@example.com Mon Jan  2 15:04:05 2006\nSubject: cut off\n"

	var report msgfolder.ScanReport
	records, _, err := scan(strings.NewReader(content), 0, &report)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Locator.Size != 0 {
			t.Errorf("record %d body size = %d, want 0", i, rec.Locator.Size)
		}
	}
	if got := string(records[1].Header); got != "Subject: cut off\n" {
		t.Errorf("header at EOF = %q", got)
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	tests := []struct {
		body   string
		stored string
	}{
		{"plain\n", "plain\n"},
		{"From me\n", ">From me\n"},
		{">From me\n", ">>From me\n"},
		{"a\n>>From x\nFromage\n", "a\n>>>From x\nFromage\n"},
		{"no newline From", "no newline From"},
	}
	for _, tt := range tests {
		got := string(escape([]byte(tt.body)))
		if got != tt.stored {
			t.Errorf("escape(%q) = %q, want %q", tt.body, got, tt.stored)
		}
		back := string(unescape([]byte(got)))
		if back != tt.body {
			t.Errorf("unescape(%q) = %q, want %q", got, back, tt.body)
		}
	}
}

func TestFolder_DeleteRewritesFile(t *testing.T) {
	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadWrite)

	m, ok := f.Find("m2@example.com")
	if !ok {
		t.Fatal("m2 not found")
	}
	if err := f.Delete(m); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.Write(msgfolder.WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok := f.Index().Lookup("m2@example.com"); ok {
		t.Error("index still holds the purged message")
	}
	if f.Len() != 2 {
		t.Errorf("Len after write = %d, want 2", f.Len())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got, want := readFile(t, path), rec1+"\n"+rec3+"\n"; got != want {
		t.Errorf("file after delete:\n%q\nwant:\n%q", got, want)
	}

	f = openFolder(t, path, msgfolder.ReadOnly)
	defer f.Close()
	got := ids(t, f)
	if len(got) != 2 || got[0] != "m1@example.com" || got[1] != "m3@example.com" {
		t.Errorf("ids after delete = %v", got)
	}
	if _, err := os.Stat(path + lock.Suffix); !os.IsNotExist(err) {
		t.Errorf("lock marker left behind: %v", err)
	}
}

func TestFolder_KeepDeletedLeavesFile(t *testing.T) {
	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadWrite)
	defer f.Close()

	m, _ := f.Find("m2@example.com")
	if err := f.Delete(m); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.Write(msgfolder.WriteOptions{KeepDeleted: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := readFile(t, path); got != threeMessages {
		t.Errorf("file changed:\n%q", got)
	}
	if f.Len() != 3 || f.Count() != 2 {
		t.Errorf("Len = %d, Count = %d, want 3 and 2", f.Len(), f.Count())
	}
}

func TestFolder_LazyPromotion(t *testing.T) {
	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadOnly, func(c *msgfolder.Config) {
		c.Extract.Mode = msgfolder.ExtractNever
	})
	defer f.Close()

	if f.DelayedCount() != 3 {
		t.Fatalf("DelayedCount = %d, want 3", f.DelayedCount())
	}
	m, err := f.Message(1)
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if m.State() != msgfolder.PartialHeader {
		t.Fatalf("state = %v, want partial-header", m.State())
	}
	subject, err := m.Get("Subject")
	if err != nil || subject != "two" {
		t.Fatalf("Get Subject = %q, %v", subject, err)
	}
	if m.State() != msgfolder.PartialHeader {
		t.Errorf("Get of a selected field promoted to %v", m.State())
	}

	body, err := m.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if string(body) != "second body\n" {
		t.Errorf("body = %q", body)
	}
	if m.State() != msgfolder.Full {
		t.Errorf("state after Body = %v", m.State())
	}
	if f.DelayedCount() != 2 {
		t.Errorf("DelayedCount = %d, want 2", f.DelayedCount())
	}

	// Promoting again reads nothing and changes nothing.
	if err := f.Promote(m, msgfolder.Full); err != nil {
		t.Errorf("second Promote: %v", err)
	}
	if f.DelayedCount() != 2 {
		t.Errorf("DelayedCount after second promote = %d", f.DelayedCount())
	}
}

func TestFolder_EscapedBodyRoundTrip(t *testing.T) {
	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadWrite)

	body := "From the start\n>From quoted\nend\n"
	h := msgfolder.NewHeader(
		msgfolder.Field{Name: "Message-ID", Value: "<m4@example.com>"},
		msgfolder.Field{Name: "From", Value: "Dora <dora@example.com>"},
	)
	if _, err := f.Add(h, []byte(body)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := readFile(t, path)
	if !strings.HasPrefix(data, threeMessages) {
		t.Error("append modified existing records")
	}
	if !strings.Contains(data, "\nFrom dora@example.com ") {
		t.Errorf("separator line does not use the sender:\n%s", data)
	}
	if !strings.Contains(data, "\n>From the start\n>>From quoted\n") {
		t.Errorf("body not escaped:\n%s", data)
	}

	f = openFolder(t, path, msgfolder.ReadOnly)
	defer f.Close()
	m, ok := f.Find("m4@example.com")
	if !ok {
		t.Fatal("added message not found after reopen")
	}
	got, err := m.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if string(got) != body {
		t.Errorf("body = %q, want %q", got, body)
	}
}

func TestFolder_ReplaceAndFlagsRoundTrip(t *testing.T) {
	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadWrite)

	m1, _ := f.Find("m1@example.com")
	h, err := m1.Header()
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	h = h.Clone()
	h.Set("Subject", "one, edited")
	if err := f.Replace(m1, h, []byte("new body")); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	m3, _ := f.Find("m3@example.com")
	if err := f.SetFlags(m3, msgfolder.FlagSeen|msgfolder.FlagFlagged); err != nil {
		t.Fatalf("SetFlags: %v", err)
	}
	if err := f.Write(msgfolder.WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Locators were updated in place, so the open folder still reads
	// correct bytes.
	m2, _ := f.Find("m2@example.com")
	if body, err := m2.Body(); err != nil || string(body) != "second body\n" {
		t.Errorf("m2 body after rewrite = %q, %v", body, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f = openFolder(t, path, msgfolder.ReadOnly)
	defer f.Close()
	if f.Len() != 3 {
		t.Fatalf("expected 3 messages, got %d", f.Len())
	}
	m1, _ = f.Find("m1@example.com")
	if s, _ := m1.Get("Subject"); s != "one, edited" {
		t.Errorf("subject = %q", s)
	}
	if body, _ := m1.Body(); string(body) != "new body\n" {
		t.Errorf("body = %q", body)
	}
	m3, _ = f.Find("m3@example.com")
	flags := m3.Flags()
	if !flags.Has(msgfolder.FlagSeen|msgfolder.FlagFlagged) || flags.Has(msgfolder.FlagRecent) {
		t.Errorf("flags = %v", flags)
	}
	if m1.Arrived().IsZero() {
		t.Error("separator date of a modified record was lost")
	}
}

func TestFolder_UpdatePicksUpAppendedMail(t *testing.T) {
	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadWrite)
	defer f.Close()

	out, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := out.WriteString("\nFrom d@example.com Mon Jan  2 16:00:00 2006\nMessage-ID: <m4@example.com>\n\nfourth\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = out.Close()

	n, err := f.Update()
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 1 || f.Len() != 4 {
		t.Fatalf("Update added %d, Len = %d", n, f.Len())
	}
	m, ok := f.Find("m4@example.com")
	if !ok {
		t.Fatal("new message not indexed")
	}
	if body, _ := m.Body(); string(body) != "fourth\n" {
		t.Errorf("body = %q", body)
	}
}

func TestFolder_UpdateDetectsShrink(t *testing.T) {
	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadWrite)
	defer f.Close()

	if err := os.WriteFile(path, []byte(rec1), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Update(); !stderrors.Is(err, errors.ErrFolderChanged) {
		t.Errorf("expected ErrFolderChanged, got %v", err)
	}
}

func TestFolder_AppendMode(t *testing.T) {
	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.Append)
	if f.Len() != 0 {
		t.Fatalf("append mode scanned %d messages", f.Len())
	}
	if _, err := f.AddRaw([]byte("Message-ID: <m5@example.com>\nSubject: five\n\nfifth\n")); err != nil {
		t.Fatalf("AddRaw: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := readFile(t, path)
	if !strings.HasPrefix(data, threeMessages+"\n") {
		t.Error("existing records changed")
	}
	f = openFolder(t, path, msgfolder.ReadOnly)
	defer f.Close()
	if f.Len() != 4 {
		t.Errorf("expected 4 messages, got %d", f.Len())
	}
}

func TestFolder_CreateAndRemoveWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new-box")
	f := openFolder(t, path, msgfolder.ReadWrite, func(c *msgfolder.Config) {
		c.Create = true
		c.RemoveWhenEmpty = true
	})
	if f.Len() != 0 {
		t.Fatalf("new folder has %d messages", f.Len())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("empty folder not removed: %v", err)
	}

	_, err := msgfolder.Open(msgfolder.Config{Type: "mbox", Path: path})
	if !stderrors.Is(err, errors.ErrFolderNotFound) {
		t.Errorf("expected ErrFolderNotFound, got %v", err)
	}
}

func TestFolder_RewriteFailureLeavesOriginal(t *testing.T) {
	t.Cleanup(func() { createTemp = os.CreateTemp })
	createTemp = func(string, string) (*os.File, error) {
		return nil, &os.PathError{Op: "open", Path: "tmp", Err: os.ErrPermission}
	}

	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadWrite, func(c *msgfolder.Config) {
		c.Lock.Kind = lock.KindNone
	})
	defer f.Close()

	m, _ := f.Find("m1@example.com")
	if err := f.Delete(m); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	err := f.Write(msgfolder.WriteOptions{})
	if !stderrors.Is(err, errors.ErrRewriteFailed) {
		t.Fatalf("expected ErrRewriteFailed, got %v", err)
	}
	if !stderrors.Is(err, errors.ErrAccessDenied) {
		t.Errorf("expected the permission cause to be kept, got %v", err)
	}
	if got := readFile(t, path); got != threeMessages {
		t.Error("original changed after failed rewrite")
	}
	if !f.Modified() || f.Len() != 3 {
		t.Errorf("failed write committed: Modified=%v Len=%d", f.Modified(), f.Len())
	}
	createTemp = os.CreateTemp
}

func TestFolder_RenameFailureKeepsTempCopy(t *testing.T) {
	t.Cleanup(func() { renameFile = os.Rename })
	renameFile = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrInvalid}
	}

	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadWrite, func(c *msgfolder.Config) {
		c.Lock.Kind = lock.KindNone
	})
	defer f.Close()

	m, _ := f.Find("m2@example.com")
	if err := f.Delete(m); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	err := f.Write(msgfolder.WriteOptions{})
	var re *errors.RewriteError
	if !stderrors.As(err, &re) {
		t.Fatalf("expected *RewriteError, got %v", err)
	}
	if re.Op != "rename" || re.TempPath == "" {
		t.Fatalf("RewriteError = %+v, want the rename op and a temp path", re)
	}
	if got := readFile(t, re.TempPath); got != rec1+"\n"+rec3+"\n" {
		t.Errorf("temporary copy = %q", got)
	}
	if got := readFile(t, path); got != threeMessages {
		t.Error("original changed after failed rename")
	}
	if !f.Modified() || f.Len() != 3 {
		t.Errorf("failed write committed: Modified=%v Len=%d", f.Modified(), f.Len())
	}
	_ = os.Remove(re.TempPath)
	renameFile = os.Rename
}

func TestFolder_DuplicateIDSuppressed(t *testing.T) {
	dup := "From z@example.com Mon Jan  2 17:00:00 2006\n" +
		"Message-ID: <m1@example.com>\n" +
		"Subject: copy\n\ncopy body\n"
	path := writeMbox(t, threeMessages+"\n"+dup)
	f := openFolder(t, path, msgfolder.ReadOnly)
	defer f.Close()

	if f.Len() != 4 || f.Count() != 3 {
		t.Fatalf("Len = %d, Count = %d, want 4 and 3", f.Len(), f.Count())
	}
	last, _ := f.Message(3)
	if !last.IsDeleted() {
		t.Error("later duplicate not marked deleted")
	}
	m, _ := f.Find("m1@example.com")
	if m.Seq() != 0 {
		t.Errorf("index points at seq %d, want 0", m.Seq())
	}
}

func TestFolder_IDLessRecordsSurviveRewrite(t *testing.T) {
	cron := "From cron@example.com Mon Jan  2 18:00:00 2006\n" +
		"From: cron@example.com\n" +
		"Subject: nightly\n\n"
	keep := "From k@example.com Mon Jan  2 18:30:00 2006\n" +
		"Message-ID: <k@example.com>\n" +
		"Subject: keep\n\nk\n"
	path := writeMbox(t, cron+"run 1\n\n"+cron+"run 2\n\n"+keep)

	f := openFolder(t, path, msgfolder.ReadWrite)
	if f.Count() != 3 {
		t.Fatalf("Count = %d, want 3", f.Count())
	}
	m, ok := f.Find("k@example.com")
	if !ok {
		t.Fatal("k not found")
	}
	if err := f.Delete(m); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readFile(t, path)
	if want := cron + "run 1\n\n" + cron + "run 2\n\n"; got != want {
		t.Errorf("file after delete:\n%q\nwant:\n%q", got, want)
	}
}

func TestFolder_UnterminatedBodyStableAcrossRewrite(t *testing.T) {
	last := "From z@example.com Mon Jan  2 19:00:00 2006\n" +
		"Message-ID: <z@example.com>\n" +
		"Subject: cut\n\nno newline"
	path := writeMbox(t, rec1+"\n"+last)

	f := openFolder(t, path, msgfolder.ReadWrite)
	m, ok := f.Find("z@example.com")
	if !ok {
		t.Fatal("z not found")
	}
	before, err := m.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if string(before) != "no newline\n" {
		t.Errorf("body = %q, want it newline-terminated", before)
	}
	if err := f.SetFlags(m, msgfolder.FlagSeen); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f = openFolder(t, path, msgfolder.ReadOnly)
	defer f.Close()
	m, ok = f.Find("z@example.com")
	if !ok {
		t.Fatal("z not found after rewrite")
	}
	after, err := m.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("body changed across rewrite: before %q after %q", before, after)
	}
}

func TestFolder_HeaderValueCannotSplitRecord(t *testing.T) {
	path := writeMbox(t, threeMessages)
	f := openFolder(t, path, msgfolder.ReadWrite)
	h := msgfolder.NewHeader(msgfolder.Field{Name: "Message-ID", Value: "<m4@example.com>"})
	h.Set("Subject", "split\n\nFrom evil@example.com Mon Jan  2 15:04:05 2006")
	if _, err := f.Add(h, []byte("body\n")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f = openFolder(t, path, msgfolder.ReadOnly)
	defer f.Close()
	if f.Len() != 4 || len(f.ScanReport().Corrupt) != 0 {
		t.Fatalf("Len = %d, corrupt regions %d, want 4 and 0", f.Len(), len(f.ScanReport().Corrupt))
	}
	m, ok := f.Find("m4@example.com")
	if !ok {
		t.Fatal("added message not found")
	}
	if body, _ := m.Body(); string(body) != "body\n" {
		t.Errorf("body = %q", body)
	}
}

func TestImportExport(t *testing.T) {
	src := writeMbox(t, threeMessages)
	f := openFolder(t, src, msgfolder.ReadOnly)
	var buf bytes.Buffer
	n, err := Export(f, &buf)
	_ = f.Close()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 3 {
		t.Fatalf("exported %d messages, want 3", n)
	}

	dst := filepath.Join(t.TempDir(), "copy")
	g := openFolder(t, dst, msgfolder.ReadWrite, func(c *msgfolder.Config) { c.Create = true })
	n, err = Import(g, &buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 3 {
		t.Fatalf("imported %d messages, want 3", n)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	g = openFolder(t, dst, msgfolder.ReadOnly)
	defer g.Close()
	got := ids(t, g)
	if len(got) != 3 || got[0] != "m1@example.com" || got[2] != "m3@example.com" {
		t.Errorf("imported ids = %v", got)
	}
	m, _ := g.Find("m2@example.com")
	if body, _ := m.Body(); !strings.HasPrefix(string(body), "second body") {
		t.Errorf("imported body = %q", body)
	}
}
