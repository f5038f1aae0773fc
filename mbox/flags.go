package mbox

import (
	"strings"

	"github.com/infodancer/msgfolder"
)

// Status letters: R read, O old. X-Status letters: A answered, F flagged,
// D deleted, T draft.
var xstatusFlags = []struct {
	letter byte
	flag   msgfolder.Flags
}{
	{'A', msgfolder.FlagReplied},
	{'F', msgfolder.FlagFlagged},
	{'D', msgfolder.FlagTrashed},
	{'T', msgfolder.FlagDraft},
}

// parseFlags reads Status and X-Status from a raw header block. A message
// without the O status has not been seen by a mail reader and is recent.
func parseFlags(header []byte) msgfolder.Flags {
	fields := msgfolder.ScanFields(header, "Status", "X-Status")
	var flags msgfolder.Flags
	status := first(fields["status"])
	if strings.ContainsRune(status, 'R') {
		flags |= msgfolder.FlagSeen
	}
	if !strings.ContainsRune(status, 'O') {
		flags |= msgfolder.FlagRecent
	}
	xstatus := first(fields["x-status"])
	for _, x := range xstatusFlags {
		if strings.IndexByte(xstatus, x.letter) >= 0 {
			flags |= x.flag
		}
	}
	return flags
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// applyFlags stores flags in the Status and X-Status fields of h. The
// message is marked old, since it has now been through a mail reader.
func applyFlags(h *msgfolder.Header, flags msgfolder.Flags) {
	status := "O"
	if flags.Has(msgfolder.FlagSeen) {
		status = "RO"
	}
	h.Set("Status", status)

	var xstatus strings.Builder
	for _, x := range xstatusFlags {
		if flags.Has(x.flag) {
			xstatus.WriteByte(x.letter)
		}
	}
	if xstatus.Len() > 0 {
		h.Set("X-Status", xstatus.String())
	} else {
		h.Del("X-Status")
	}
}
