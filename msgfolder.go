// Package msgfolder is a storage engine for mail folders.
//
// A folder is kept either in a single file holding many records separated
// by sentinel lines (mbox), or in a directory holding one file per record
// (MH, Maildir). Opening a folder scans the backing store under a lock and
// produces lazy message handles; header and body data are read only when a
// caller asks for them. Deletions and modifications are applied to disk by
// Write, which replaces the store atomically.
//
// Backends register themselves by type name. Import the ones you need with
// a blank identifier:
//
//	import _ "github.com/infodancer/msgfolder/mbox"
//
// Then open a folder:
//
//	f, err := msgfolder.Open(msgfolder.Config{
//	    Type: "mbox",
//	    Path: "/var/mail/alice",
//	    Mode: msgfolder.ReadWrite,
//	})
//
// A Folder must not be used by more than one goroutine at a time.
package msgfolder

import (
	"fmt"
	"strings"
)

// Organization is the physical layout of a backing store.
type Organization int

const (
	// FileOrganization keeps all records in one file.
	FileOrganization Organization = iota
	// DirectoryOrganization keeps one file per record.
	DirectoryOrganization
)

func (o Organization) String() string {
	switch o {
	case FileOrganization:
		return "file"
	case DirectoryOrganization:
		return "directory"
	default:
		return fmt.Sprintf("Organization(%d)", int(o))
	}
}

// Mode is the access mode a folder is opened with.
type Mode int

const (
	// ReadOnly folders are scanned but never written.
	ReadOnly Mode = iota
	// ReadWrite folders are scanned and rewritten on Write or Close.
	ReadWrite
	// Append folders are not scanned; added messages are appended on Write or Close.
	Append
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read"
	case ReadWrite:
		return "write"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "read"/"r", "write"/"rw" and "append"/"a".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "r", "read", "ro":
		return ReadOnly, nil
	case "w", "rw", "write":
		return ReadWrite, nil
	case "a", "append":
		return Append, nil
	default:
		return ReadOnly, fmt.Errorf("invalid access mode %q", s)
	}
}
