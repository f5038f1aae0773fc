package maildir

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-maildir"

	"github.com/infodancer/msgfolder"
)

// infoMarker separates the unique part of a name from its flags.
const infoMarker = ":2,"

// namer generates unique delivery names. Each store owns one; the counter
// keeps names unique even within the same microsecond.
type namer struct {
	hostname string
	counter  uint64
}

func newNamer() *namer {
	return &namer{hostname: getHostname()}
}

// next creates a unique filename for maildir delivery.
// Format: timestamp.MmicrosPpid.hostname.random
// Example: 1705678901.M123456P12345.hostname.abc123
func (n *namer) next() string {
	now := time.Now()
	n.counter++
	pid := os.Getpid()

	// Generate random suffix for additional uniqueness
	randomBytes := make([]byte, 6)
	if _, err := rand.Read(randomBytes); err != nil {
		// Fallback to counter-based suffix if random fails
		return fmt.Sprintf("%d.M%dP%d.%s.%d",
			now.Unix(),
			now.Nanosecond()/1000,
			pid,
			n.hostname,
			n.counter,
		)
	}

	return fmt.Sprintf("%d.M%dP%dQ%d.%s.%x",
		now.Unix(),
		now.Nanosecond()/1000,
		pid,
		n.counter,
		n.hostname,
		randomBytes,
	)
}

// getHostname returns the sanitized system hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return sanitizeHostname(hostname)
}

// sanitizeHostname removes or replaces characters that are problematic in filenames.
func sanitizeHostname(hostname string) string {
	// Replace slashes and colons with underscores
	hostname = strings.ReplaceAll(hostname, "/", "_")
	hostname = strings.ReplaceAll(hostname, ":", "_")
	// Remove any other potentially problematic characters
	hostname = strings.ReplaceAll(hostname, "\x00", "")
	return hostname
}

// keyOf returns the unique part of a message filename.
func keyOf(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}

// arrivalOf reads the delivery time from the leading number of a name,
// refined by the M<microseconds> part when the name has one.
func arrivalOf(name string) (time.Time, bool) {
	head, rest, _ := strings.Cut(name, ".")
	sec, err := strconv.ParseInt(head, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}, false
	}
	var usec int64
	if digits, ok := strings.CutPrefix(rest, "M"); ok {
		end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' })
		if end < 0 {
			end = len(digits)
		}
		if v, err := strconv.ParseInt(digits[:end], 10, 64); err == nil && v < 1_000_000 {
			usec = v
		}
	}
	return time.Unix(sec, usec*1000), true
}

// flagTable maps msgfolder flags to maildir info letters.
var flagTable = []struct {
	flag   msgfolder.Flags
	letter maildir.Flag
}{
	{msgfolder.FlagDraft, maildir.FlagDraft},
	{msgfolder.FlagFlagged, maildir.FlagFlagged},
	{msgfolder.FlagPassed, maildir.FlagPassed},
	{msgfolder.FlagReplied, maildir.FlagReplied},
	{msgfolder.FlagSeen, maildir.FlagSeen},
	{msgfolder.FlagTrashed, maildir.FlagTrashed},
}

// convertFlags converts go-maildir flags to msgfolder flags.
func convertFlags(flags []maildir.Flag) msgfolder.Flags {
	var out msgfolder.Flags
	for _, f := range flags {
		for _, e := range flagTable {
			if e.letter == f {
				out |= e.flag
			}
		}
	}
	return out
}

// toMaildirFlags converts msgfolder flags to go-maildir flags, in the
// ASCII order required in names. FlagRecent has no letter.
func toMaildirFlags(flags msgfolder.Flags) []maildir.Flag {
	var out []maildir.Flag
	for _, e := range flagTable {
		if flags.Has(e.flag) {
			out = append(out, e.letter)
		}
	}
	return out
}

// flagsOfName parses the info suffix of a filename.
func flagsOfName(name string) msgfolder.Flags {
	_, info, ok := strings.Cut(name, infoMarker)
	if !ok {
		return 0
	}
	flags := make([]maildir.Flag, 0, len(info))
	for _, r := range info {
		flags = append(flags, maildir.Flag(r))
	}
	return convertFlags(flags)
}

// curName returns the cur/ filename for a key with the given flags.
func curName(key string, flags msgfolder.Flags) string {
	var b strings.Builder
	b.WriteString(key)
	b.WriteString(infoMarker)
	for _, f := range toMaildirFlags(flags) {
		b.WriteRune(rune(f))
	}
	return b.String()
}
