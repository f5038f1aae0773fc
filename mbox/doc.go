// Package mbox provides the single-file message folder backend.
//
// An mbox file holds records one after another. Each record starts with a
// separator line beginning with "From ", followed by the header block, a
// blank line and the body:
//
//	From alice@example.com Mon Jan  2 15:04:05 2006
//	Message-ID: <1@example.com>
//	Subject: hello
//
//	body text
//
//	From bob@example.com ...
//
// Body lines that would look like a separator are escaped the mboxrd way:
// any line matching ">*From " gains one '>' when written and loses one when
// read, so escaping always round-trips. A body whose last line lacks a
// newline is read with one added, the same bytes any rewrite stores.
//
// The package registers itself with the msgfolder registry under the name
// "mbox". Import it with a blank identifier to enable mbox support:
//
//	import _ "github.com/infodancer/msgfolder/mbox"
//
// Then open a folder:
//
//	f, err := msgfolder.Open(msgfolder.Config{
//	    Type: "mbox",
//	    Path: "/var/mail/alice",
//	})
package mbox
