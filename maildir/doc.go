// Package maildir provides the Maildir folder backend.
//
// Maildir keeps each message in its own file, in a directory with three
// subdirectories:
//
//	folder/
//	├── new/     # delivered, not yet seen by a mail reader
//	├── cur/     # seen; the name carries the flags: key:2,FRS
//	└── tmp/     # files being written
//
// Names are self-describing: the arrival time is the leading number and
// the flags follow the ":2," info marker, so a scan needs no index file.
//
// The package registers itself with the msgfolder registry under the name
// "maildir". Import it with a blank identifier to enable maildir support:
//
//	import _ "github.com/infodancer/msgfolder/maildir"
//
// Options:
//
//	accept_new  move messages from new/ to cur/ on write (default true)
package maildir
