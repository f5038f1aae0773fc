// Command msgfolder inspects and maintains mail folders.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/internal/config"
	_ "github.com/infodancer/msgfolder/maildir"
	_ "github.com/infodancer/msgfolder/mbox"
	_ "github.com/infodancer/msgfolder/mh"
)

// app carries the state shared by all subcommands.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func main() {
	root := newRootCommand(&app{})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "msgfolder",
		Short:         "Inspect and maintain mbox, MH and Maildir folders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", envOr("MSGFOLDER_CONFIG", "msgfolder.yaml"), "Path to the YAML config file")
	flags.String("type", "", "Folder type: "+strings.Join(msgfolder.RegisteredTypes(), ", "))
	flags.String("path", "", "Folder file or directory")
	flags.String("lock", "", "Lock strategy: dotlock, flock, nfs, multi, none")
	flags.Duration("lock-timeout", 0, "How long to wait for the folder lock (negative waits forever)")
	flags.String("log-level", "", "Logging level: debug, info, warn, error")

	root.AddCommand(
		newListCommand(a),
		newShowCommand(a),
		newDeleteCommand(a),
		newCompactCommand(a),
		newImportCommand(a),
		newExportCommand(a),
		newLockStatusCommand(a),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setup loads the config file, applies flag overrides and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.NewDefaultConfig()
	if err := config.LoadOptional(a.configPath, cfg); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("type") {
		cfg.Folder.Type, _ = flags.GetString("type")
	}
	if flags.Changed("path") {
		cfg.Folder.Path, _ = flags.GetString("path")
	}
	if flags.Changed("lock") {
		cfg.Lock.Kind, _ = flags.GetString("lock")
	}
	if flags.Changed("lock-timeout") {
		cfg.Lock.Timeout, _ = flags.GetDuration("lock-timeout")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	a.cfg = cfg
	a.logger = setupLogger(cfg.Level())
	slog.SetDefault(a.logger)
	return nil
}

func setupLogger(level slog.Level) *slog.Logger {
	lv := new(slog.LevelVar)
	lv.Set(level)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})
	return slog.New(handler)
}

// open opens the configured folder.
func (a *app) open(mode msgfolder.Mode) (*msgfolder.Folder, error) {
	start := time.Now()
	f, err := msgfolder.Open(a.cfg.OpenConfig(mode, a.logger))
	if err != nil {
		return nil, fmt.Errorf("open %s folder %s: %w", a.cfg.Folder.Type, a.cfg.Folder.Path, err)
	}
	a.logger.Debug("opened folder",
		slog.String("path", f.Path()),
		slog.String("mode", mode.String()),
		slog.Int("messages", f.Len()),
		slog.Duration("duration", time.Since(start)))
	return f, nil
}
