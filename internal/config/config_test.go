package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/lock"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "msgfolder.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("MSGFOLDER_TEST_HOME", "/home/alice")
	path := writeConfig(t, `
log_level: debug
folder:
  type: maildir
  path: ${MSGFOLDER_TEST_HOME}/Maildir
  create: true
  options:
    accept_new: "false"
lock:
  kind: flock
  timeout: 2s
extract:
  mode: never
find:
  max_messages: 50
  max_age: 24h
`)

	cfg := NewDefaultConfig()
	if err := Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Folder.Path != "/home/alice/Maildir" {
		t.Errorf("path = %q, env not expanded", cfg.Folder.Path)
	}
	if cfg.Lock.Timeout != 2*time.Second {
		t.Errorf("timeout = %v", cfg.Lock.Timeout)
	}
	if cfg.Lock.Retry != lock.DefaultRetry {
		t.Errorf("retry default lost: %v", cfg.Lock.Retry)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.Level())
	}

	before := time.Now()
	oc := cfg.OpenConfig(msgfolder.ReadWrite, nil)
	if oc.Type != "maildir" || oc.Mode != msgfolder.ReadWrite || !oc.Create {
		t.Errorf("open config = %+v", oc)
	}
	if oc.Lock.Kind != lock.KindFlock {
		t.Errorf("lock kind = %q", oc.Lock.Kind)
	}
	if oc.Extract.Mode != msgfolder.ExtractNever {
		t.Errorf("extract mode = %v", oc.Extract.Mode)
	}
	if oc.FindWindow.MaxMessages != 50 || oc.FindWindow.Since.After(before.Add(-23*time.Hour)) {
		t.Errorf("find window = %+v", oc.FindWindow)
	}
	if oc.Option("accept_new", "") != "false" {
		t.Errorf("options not passed through: %v", oc.Options)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing path", func(c *Config) { c.Folder.Path = "" }},
		{"missing type", func(c *Config) { c.Folder.Type = "" }},
		{"bad lock kind", func(c *Config) { c.Lock.Kind = "fcntl" }},
		{"bad extract mode", func(c *Config) { c.Extract.Mode = "sometimes" }},
		{"negative threshold", func(c *Config) { c.Extract.Threshold = -1 }},
		{"negative retry", func(c *Config) { c.Lock.Retry = -time.Second }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Folder.Path = "/var/mail/alice"
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}

	cfg := NewDefaultConfig()
	cfg.Folder.Path = "/var/mail/alice"
	cfg.Lock.Timeout = lock.Unbounded
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate rejected an unbounded timeout: %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), cfg); err != nil {
		t.Errorf("missing optional file: %v", err)
	}
	if cfg.Folder.Type != "mbox" {
		t.Errorf("defaults changed: %+v", cfg.Folder)
	}

	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), cfg); err == nil {
		t.Error("Load of a missing file succeeded")
	}
	if err := Load(writeConfig(t, "folder: [unclosed"), cfg); err == nil {
		t.Error("Load of malformed YAML succeeded")
	}
}
