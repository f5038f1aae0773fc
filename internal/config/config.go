// Package config loads the msgfolder command configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/lock"
)

// Extraction modes accepted in the extract section.
const (
	ExtractSize   = "size"
	ExtractAlways = "always"
	ExtractNever  = "never"
)

// Config represents the command configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Folder   FolderConfig  `yaml:"folder"`
	Lock     LockConfig    `yaml:"lock"`
	Extract  ExtractConfig `yaml:"extract"`
	Find     FindConfig    `yaml:"find"`
}

// FolderConfig selects the folder and its backend.
type FolderConfig struct {
	Type            string            `yaml:"type"`
	Path            string            `yaml:"path"`
	Create          bool              `yaml:"create"`
	KeepDeleted     bool              `yaml:"keep_deleted"`
	RemoveWhenEmpty bool              `yaml:"remove_when_empty"`
	Options         map[string]string `yaml:"options"`
}

// LockConfig tunes the folder lock. Durations use time.ParseDuration syntax.
type LockConfig struct {
	Kind    string        `yaml:"kind"`
	Path    string        `yaml:"path"`
	Retry   time.Duration `yaml:"retry"`
	Timeout time.Duration `yaml:"timeout"`
	Expires time.Duration `yaml:"expires"`
}

// ExtractConfig chooses which messages are read fully when a folder is opened.
type ExtractConfig struct {
	Mode      string `yaml:"mode"`
	Threshold int64  `yaml:"threshold"`
}

// FindConfig bounds lookups of messages by id.
type FindConfig struct {
	MaxMessages int           `yaml:"max_messages"`
	MaxAge      time.Duration `yaml:"max_age"`
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Folder:   FolderConfig{Type: "mbox"},
		Lock: LockConfig{
			Retry:   lock.DefaultRetry,
			Timeout: lock.DefaultTimeout,
			Expires: lock.DefaultExpires,
		},
		Extract: ExtractConfig{Mode: ExtractSize, Threshold: msgfolder.DefaultExtractThreshold},
	}
}

// Load reads filename into target, expanding ${VAR} references from the
// environment first. Fields missing from the file keep their value in target.
func Load(filename string, target *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

// LoadOptional loads filename when it exists and keeps the defaults otherwise.
func LoadOptional(filename string, target *Config) error {
	if filename == "" {
		return nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return Load(filename, target)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return err
	}
	if err := c.Folder.Validate(); err != nil {
		return fmt.Errorf("folder: %w", err)
	}
	if err := c.Lock.Validate(); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	if err := c.Extract.Validate(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if err := c.Find.Validate(); err != nil {
		return fmt.Errorf("find: %w", err)
	}
	return nil
}

// Validate validates the folder configuration.
func (c *FolderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Type, validation.Required),
		validation.Field(&c.Path, validation.Required),
	)
}

// Validate validates the lock configuration.
func (c *LockConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.In(
			string(lock.KindDotlock), string(lock.KindFlock), string(lock.KindNFS),
			string(lock.KindMulti), string(lock.KindNone))),
		validation.Field(&c.Retry, validation.Min(time.Duration(0))),
		validation.Field(&c.Expires, validation.Min(time.Duration(0))),
	)
}

// Validate validates the extraction configuration.
func (c *ExtractConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(ExtractSize, ExtractAlways, ExtractNever)),
		validation.Field(&c.Threshold, validation.Min(int64(0))),
	)
}

// Validate validates the find configuration.
func (c *FindConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxMessages, validation.Min(0)),
		validation.Field(&c.MaxAge, validation.Min(time.Duration(0))),
	)
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenConfig builds the library configuration for opening the folder.
func (c *Config) OpenConfig(mode msgfolder.Mode, logger *slog.Logger) msgfolder.Config {
	extract := msgfolder.ExtractPolicy{Threshold: c.Extract.Threshold}
	switch c.Extract.Mode {
	case ExtractAlways:
		extract.Mode = msgfolder.ExtractAlways
	case ExtractNever:
		extract.Mode = msgfolder.ExtractNever
	}

	var window msgfolder.FindWindow
	window.MaxMessages = c.Find.MaxMessages
	if c.Find.MaxAge > 0 {
		window.Since = time.Now().Add(-c.Find.MaxAge)
	}

	return msgfolder.Config{
		Type:   c.Folder.Type,
		Path:   c.Folder.Path,
		Mode:   mode,
		Create: c.Folder.Create,
		Lock: msgfolder.LockConfig{
			Kind:    lock.Kind(c.Lock.Kind),
			Path:    c.Lock.Path,
			Retry:   c.Lock.Retry,
			Timeout: c.Lock.Timeout,
			Expires: c.Lock.Expires,
		},
		Extract:         extract,
		KeepDeleted:     c.Folder.KeepDeleted,
		RemoveWhenEmpty: c.Folder.RemoveWhenEmpty,
		FindWindow:      window,
		Logger:          logger,
		Options:         c.Folder.Options,
	}
}
