package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrd/ca-drive/internal/journal"
	"github.com/mrd/ca-drive/internal/models"
	ustr "github.com/mrd/ca-drive/internal/util/strings"
)

func newUploadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "Inspect the local upload journal",
		Long: `Every 'drive upload' records the outcome of each file in a local SQLite
journal. Use these commands to find files that were rejected or failed.`,
	}
	cmd.AddCommand(newUploadsHistoryCmd(), newUploadsPruneCmd())
	return cmd
}

func openJournal() (*journal.Journal, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.JournalPath == "" {
		return nil, fmt.Errorf("journal_path is not set")
	}
	return journal.Open(cfg.JournalPath)
}

func newUploadsHistoryCmd() *cobra.Command {
	var failed bool
	var clientID, batchID string
	var limit int
	var since time.Duration

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List recorded uploads, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			f := journal.Filter{ClientID: clientID, BatchID: batchID, Limit: limit}
			if failed {
				f.Status = models.UploadStatusFailed
			}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			recs, err := j.List(GetContext(), f)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), outputFormat, recs, func(tw *tabwriter.Writer) {
				if len(recs) == 0 {
					fmt.Fprintln(tw, "No uploads recorded")
					return
				}
				row(tw, "TIME", "STATUS", "FILE", "SIZE", "FOLDER", "BATCH", "ERROR")
				for _, r := range recs {
					row(tw, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.FileName,
						ustr.FormatBytes(r.Size), r.FolderPath, shortBatch(r.BatchID), ustr.Truncate(r.Error, 50))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "Only failed uploads")
	cmd.Flags().StringVar(&clientID, "client", "", "Only uploads for this client ID")
	cmd.Flags().StringVar(&batchID, "batch", "", "Only uploads of this batch")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Show at most this many records (0 for all)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only uploads newer than this, e.g. 24h")
	return cmd
}

func newUploadsPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old journal records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			j, err := openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			n, err := j.Prune(GetContext(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", ustr.Count(int(n), "record"))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Remove records older than this")
	return cmd
}

func shortBatch(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
