package msgfolder

import (
	"bufio"
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestParseHeader(t *testing.T) {
	raw := "Message-ID: <a@x>\nSubject: folded\n  subject\nX-Mixed-Case: v\nReceived: one\nReceived: two\n"
	h := ParseHeader([]byte(raw))

	if got := h.MessageID(); got != "a@x" {
		t.Errorf("MessageID = %q", got)
	}
	if got := strings.Join(strings.Fields(h.Get("subject")), " "); got != "folded subject" {
		t.Errorf("Subject = %q", got)
	}
	if got := h.Values("RECEIVED"); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("Received = %v", got)
	}
	if h.Fields()[2].Name != "X-Mixed-Case" {
		t.Errorf("field name case not kept: %q", h.Fields()[2].Name)
	}
	if h.Len() != 5 {
		t.Errorf("Len = %d", h.Len())
	}
}

func TestParseHeader_Malformed(t *testing.T) {
	h := ParseHeader([]byte("Subject: ok\nthis line has no colon\nFrom: a@x\n"))
	if h.Get("Subject") != "ok" {
		t.Errorf("Subject = %q", h.Get("Subject"))
	}
	if h.Get("From") != "a@x" {
		t.Errorf("From = %q", h.Get("From"))
	}
}

func TestHeader_SetDel(t *testing.T) {
	h := NewHeader(
		Field{Name: "To", Value: "a"},
		Field{Name: "Subject", Value: "s"},
		Field{Name: "to", Value: "b"},
	)
	h.Set("TO", "c")
	if got := h.Values("To"); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("To after Set = %v", got)
	}
	if h.Fields()[0].Name != "To" {
		t.Error("Set moved the field")
	}
	h.Set("Date", "now")
	if h.Fields()[h.Len()-1].Name != "Date" {
		t.Error("Set did not append a missing field")
	}
	h.Del("subject")
	if h.Has("Subject") {
		t.Error("Del left the field")
	}

	clone := h.Clone()
	clone.Set("To", "d")
	if h.Get("To") != "c" {
		t.Error("Clone shares fields with the original")
	}
}

func TestHeader_BytesFoldsLineBreaks(t *testing.T) {
	h := NewHeader(Field{Name: "Message-ID", Value: "<a@x>"})
	h.Set("Subject", "hi\nFrom evil@x Mon Jan  2 15:04:05 2006\r\nX-Injected: yes\n\n")

	got := string(h.Bytes())
	want := "Message-ID: <a@x>\nSubject: hi\n From evil@x Mon Jan  2 15:04:05 2006\n X-Injected: yes\n"
	if got != want {
		t.Fatalf("Bytes = %q, want %q", got, want)
	}

	back := ParseHeader([]byte(got))
	if back.Len() != 2 || back.Has("X-Injected") {
		t.Errorf("value injected fields: %v", back.Fields())
	}
	if v := strings.Join(strings.Fields(back.Get("Subject")), " "); v != "hi From evil@x Mon Jan 2 15:04:05 2006 X-Injected: yes" {
		t.Errorf("Subject = %q", v)
	}
}

func TestScanFields(t *testing.T) {
	raw := []byte("From: a@x\nSubject: one\n two\nMessage-ID: <id@x>\n\nFrom: not a header\n")
	got := ScanFields(raw, "Subject", "message-id")
	want := map[string][]string{
		"subject":    {"one two"},
		"message-id": {"<id@x>"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScanFields = %v, want %v", got, want)
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		raw, header, body string
	}{
		{"A: 1\n\nbody\n", "A: 1\n", "body\n"},
		{"A: 1\r\n\r\nbody\r\n", "A: 1\r\n", "body\r\n"},
		{"A: 1\n", "A: 1\n", ""},
		{"\nbody\n", "", "body\n"},
	}
	for _, tt := range tests {
		h, b := SplitMessage([]byte(tt.raw))
		if string(h) != tt.header || string(b) != tt.body {
			t.Errorf("SplitMessage(%q) = %q, %q", tt.raw, h, b)
		}
	}
}

func TestReadHeaderBlock(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("A: 1\nB: 2\n\nbody\n"))
	h, err := ReadHeaderBlock(r)
	if err != nil || string(h) != "A: 1\nB: 2\n" {
		t.Fatalf("ReadHeaderBlock = %q, %v", h, err)
	}
	rest, _ := r.ReadString(0)
	if rest != "body\n" {
		t.Errorf("reader left at %q", rest)
	}

	h, err = ReadHeaderBlock(bufio.NewReader(strings.NewReader("A: 1")))
	if err != nil || string(h) != "A: 1" {
		t.Errorf("header at EOF = %q, %v", h, err)
	}
}

func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	h := NewHeader(Field{Name: "Subject", Value: "s"})
	n, err := WriteMessage(&buf, h, []byte("body\n"))
	if err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Subject: s\n\nbody\n" || n != int64(buf.Len()) {
		t.Errorf("WriteMessage wrote %q (%d bytes)", buf.String(), n)
	}
}
