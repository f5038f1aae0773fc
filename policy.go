package msgfolder

// ExtractMode selects how the initial state of scanned messages is chosen.
type ExtractMode int

const (
	// ExtractBySize fully loads messages no larger than the threshold.
	ExtractBySize ExtractMode = iota
	// ExtractAlways fully loads every message at scan time.
	ExtractAlways
	// ExtractNever leaves every body on disk until it is asked for.
	ExtractNever
)

// DefaultExtractThreshold is the size limit used by ExtractBySize when
// Threshold is zero.
const DefaultExtractThreshold = 10_000

// DefaultPartialFields are the header fields cached by a partial header.
var DefaultPartialFields = []string{
	"Message-ID", "Subject", "From", "To", "Date", "In-Reply-To", "References",
}

// ExtractPolicy decides, per message, whether it is fully loaded during the
// scan. Messages that are not extracted start Delayed, or PartialHeader
// when their header bytes were read anyway.
type ExtractPolicy struct {
	Mode ExtractMode

	// Threshold is the ExtractBySize limit in bytes.
	Threshold int64

	// Predicate, when set, overrides Mode. It receives the raw header block
	// and the stored size and returns true to extract the message.
	Predicate func(header []byte, size int64) bool
}

// NeedsHeader reports whether the decision needs the raw header.
func (p ExtractPolicy) NeedsHeader() bool { return p.Predicate != nil }

// Extract reports whether a message should be fully loaded at scan time.
func (p ExtractPolicy) Extract(header []byte, size int64) bool {
	if p.Predicate != nil {
		return p.Predicate(header, size)
	}
	switch p.Mode {
	case ExtractAlways:
		return true
	case ExtractNever:
		return false
	default:
		limit := p.Threshold
		if limit <= 0 {
			limit = DefaultExtractThreshold
		}
		return size <= limit
	}
}
