package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"
	"github.com/infodancer/msgfolder/lock"
	"github.com/infodancer/msgfolder/mbox"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the messages of the folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(msgfolder.ReadOnly)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			return list(cmd.OutOrStdout(), f)
		},
	}
}

func list(w io.Writer, f *msgfolder.Folder) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSIZE\tFLAGS\tMESSAGE-ID\tSUBJECT")
	for _, m := range f.Messages() {
		id, err := m.ID()
		if err != nil {
			return err
		}
		subject, err := m.Get("Subject")
		if err != nil {
			return err
		}
		flags := m.Flags().String()
		if m.IsDeleted() {
			flags += "(deleted)"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", m.Seq(), m.Size(), flags, id, subject)
	}
	if report := f.ScanReport(); len(report.Corrupt) > 0 {
		fmt.Fprintf(tw, "\n%d damaged regions skipped (%d bytes)\n", len(report.Corrupt), report.SkippedBytes)
	}
	return tw.Flush()
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <message-id>",
		Short: "Print one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(msgfolder.ReadOnly)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			m, ok := f.Find(args[0])
			if !ok {
				return fmt.Errorf("%s: %w", args[0], errors.ErrMessageNotFound)
			}
			h, err := m.Header()
			if err != nil {
				return err
			}
			body, err := m.Body()
			if err != nil {
				return err
			}
			_, err = msgfolder.WriteMessage(cmd.OutOrStdout(), h, body)
			return err
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "delete <message-id>...",
		Short: "Delete messages by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(msgfolder.ReadWrite)
			if err != nil {
				return err
			}

			var missing []error
			for _, id := range args {
				m, ok := f.Find(id)
				if !ok {
					missing = append(missing, fmt.Errorf("%s: %w", id, errors.ErrMessageNotFound))
					continue
				}
				if err := f.Delete(m); err != nil {
					_ = f.Close()
					return err
				}
			}
			if err := f.Write(msgfolder.WriteOptions{KeepDeleted: keep}); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d messages\n", len(args)-len(missing), len(args))
			return stderrors.Join(missing...)
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "Only mark messages deleted, keep their records")
	return cmd
}

func newCompactCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Rewrite the folder, dropping records marked deleted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(msgfolder.ReadWrite)
			if err != nil {
				return err
			}
			before := f.Len()
			for _, m := range f.Messages() {
				if m.Flags().Has(msgfolder.FlagTrashed) && !m.IsDeleted() {
					if err := f.Delete(m); err != nil {
						_ = f.Close()
						return err
					}
				}
			}
			if err := f.Write(msgfolder.WriteOptions{Force: true}); err != nil {
				_ = f.Close()
				return err
			}
			after := f.Len()
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d messages, %d removed\n", after, before-after)
			return nil
		},
	}
}

func newImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <mbox-file>",
		Short: "Append the messages of an mbox file to the folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			f, err := a.open(msgfolder.ReadWrite)
			if err != nil {
				return err
			}
			n, err := mbox.Import(f, src)
			if err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d messages\n", n)
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <mbox-file>",
		Short: "Write the folder's messages to an mbox file (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(msgfolder.ReadOnly)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			var dst io.Writer = cmd.OutOrStdout()
			if args[0] != "-" {
				file, err := os.OpenFile(args[0], os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
				if err != nil {
					return err
				}
				defer func() { _ = file.Close() }()
				dst = file
			}
			n, err := mbox.Export(f, dst)
			if err != nil {
				return err
			}
			a.logger.Info("exported messages", slog.Int("count", n), slog.String("target", args[0]))
			return nil
		},
	}
}

func newLockStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lock-status",
		Short: "Report whether the folder lock is held",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Append mode opens the folder without scanning it, so no lock is taken.
			f, err := a.open(msgfolder.Append)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			return lockStatus(cmd.OutOrStdout(), f.Locker())
		},
	}
}

func lockStatus(w io.Writer, l lock.Locker) error {
	state := "free"
	if l.IsLocked() {
		state = "held"
	}
	_, err := fmt.Fprintf(w, "%s lock on %s: %s\n", l.Kind(), l.Path(), state)
	return err
}
