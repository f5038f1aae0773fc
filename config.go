package msgfolder

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/infodancer/msgfolder/lock"
)

// Config contains settings for opening a folder.
type Config struct {
	// Type is the backend name (e.g., "mbox", "mh", "maildir").
	Type string

	// Path is the folder file or directory.
	Path string

	// Mode is the access mode. The zero value is ReadOnly.
	Mode Mode

	// Create makes Open create a missing folder.
	Create bool

	// Lock configures cross-process locking.
	Lock LockConfig

	// Extract chooses which messages are fully loaded during the scan.
	Extract ExtractPolicy

	// PartialFields are the header fields kept by partial headers.
	// Nil selects DefaultPartialFields. Message-ID is always included.
	PartialFields []string

	// DelayHeaders keeps non-extracted messages Delayed even when the scan
	// had their header bytes at hand.
	DelayHeaders bool

	// KeepDeleted makes Close keep the records of deleted messages.
	KeepDeleted bool

	// RemoveWhenEmpty makes Close delete the store when no record is left.
	RemoveWhenEmpty bool

	// FindWindow bounds the search performed by Find for unindexed ids.
	FindWindow FindWindow

	// IDs synthesizes ids for records without a Message-ID.
	// Defaults to DigestIDs.
	IDs IDGenerator

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Options contains backend-specific settings.
	Options map[string]string
}

// LockConfig selects and tunes the folder's Locker.
type LockConfig struct {
	// Kind is the strategy. Empty selects the backend's default.
	Kind lock.Kind

	// Path overrides the lock resource derived from the folder path.
	Path string

	Retry   time.Duration
	Timeout time.Duration
	Expires time.Duration
}

// FindWindow bounds how far back Find promotes messages looking for an id.
type FindWindow struct {
	// MaxMessages caps the number of messages promoted. Zero means no cap.
	MaxMessages int

	// Since stops the search at the first message that arrived before it.
	Since time.Time
}

// WriteOptions controls a single Write.
type WriteOptions struct {
	// KeepDeleted keeps the records of deleted messages on disk.
	KeepDeleted bool

	// Force writes even when nothing changed.
	Force bool
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) partialFields() []string {
	fields := c.PartialFields
	if fields == nil {
		fields = DefaultPartialFields
	}
	out := []string{"message-id"}
	for _, f := range fields {
		if f = strings.ToLower(f); !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// Option returns a backend option with a fallback.
func (c Config) Option(key, fallback string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// BoolOption interprets a backend option as a boolean.
func (c Config) BoolOption(key string, fallback bool) bool {
	switch strings.ToLower(c.Option(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
