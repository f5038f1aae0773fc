package msgfolder

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// IDGenerator synthesizes message-ids for records that carry none. Each
// folder owns its generator; there is no process-wide counter.
type IDGenerator interface {
	// NewID returns an id for a record with the given raw header block.
	NewID(header []byte) string
}

// DigestIDs derives the id from a BLAKE2b digest of the header bytes, so
// a record keeps the same id every time its store is scanned.
type DigestIDs struct {
	// Domain is the right-hand side of generated ids. Defaults to the hostname.
	Domain string
}

// NewID implements IDGenerator.
func (d DigestIDs) NewID(header []byte) string {
	sum := blake2b.Sum256(header)
	return hex.EncodeToString(sum[:16]) + "@" + domainOr(d.Domain)
}

// CounterIDs hands out sequential ids. Ids are unique within one generator
// but not stable across scans.
type CounterIDs struct {
	Domain string
	start  string
	next   uint64
}

// NewCounterIDs returns a counter generator seeded with the current time.
func NewCounterIDs(domain string) *CounterIDs {
	return &CounterIDs{
		Domain: domain,
		start:  fmt.Sprintf("%d.%d", time.Now().Unix(), os.Getpid()),
	}
}

// NewID implements IDGenerator.
func (c *CounterIDs) NewID(header []byte) string {
	c.next++
	return fmt.Sprintf("msgfolder-%s.%d@%s", c.start, c.next, domainOr(c.Domain))
}

func domainOr(domain string) string {
	if domain != "" {
		return domain
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "localhost"
	}
	// Keep ids parseable as addr-spec.
	return strings.NewReplacer("/", "_", ":", "_", "@", "_").Replace(host)
}
