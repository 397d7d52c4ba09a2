package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrd/ca-drive/internal/drive"
	"github.com/mrd/ca-drive/internal/models"
	ustr "github.com/mrd/ca-drive/internal/util/strings"
)

func newBinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bin",
		Short: "Inspect and empty the recycle bin",
	}
	cmd.AddCommand(newBinLsCmd(), newBinRestoreCmd(), newBinPurgeCmd())
	return cmd
}

func newBinLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list <client-id>",
		Aliases: []string{"ls"},
		Short:   "List deleted folders and files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			items, err := client.GetBinItems(GetContext(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), outputFormat, items, func(tw *tabwriter.Writer) {
				if len(items.Folders)+len(items.Files) == 0 {
					fmt.Fprintln(tw, "Bin is empty")
					return
				}
				row(tw, "TYPE", "NAME", "ID", "DELETED")
				for _, f := range items.Folders {
					row(tw, models.ItemTypeFolder, drive.DisplayName(f.Name), f.ID, shortDate(f.DeletedAt))
				}
				for _, f := range items.Files {
					row(tw, models.ItemTypeFile, f.FileName, f.ID, shortDate(f.DeletedAt))
				}
			})
		},
	}
}

func newBinRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file|folder> <id> [id...]",
		Short: "Restore items from the bin",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, err := parseItemType(args[0])
			if err != nil {
				return err
			}
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			for _, id := range args[1:] {
				if err := client.RestoreItem(GetContext(), itemType, id); err != nil {
					return fmt.Errorf("restore %s %s: %w", itemType, id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Restored %s %s\n", itemType, id)
			}
			return nil
		},
	}
}

func newBinPurgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge <file|folder> <id> [id...]",
		Short: "Delete items from the bin permanently",
		Long: `Delete items from the bin permanently. Purged files are removed from
storage and cannot be restored.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, err := parseItemType(args[0])
			if err != nil {
				return err
			}
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			ids := args[1:]
			q := fmt.Sprintf("Permanently delete %s? This cannot be undone.", ustr.Count(len(ids), string(itemType)))
			if !yes && !confirm(stdinReader, os.Stderr, q) {
				return nil
			}
			for _, id := range ids {
				if err := client.PermanentDelete(GetContext(), itemType, id); err != nil {
					return fmt.Errorf("purge %s %s: %w", itemType, id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Purged %s %s\n", itemType, id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func parseItemType(s string) (models.ItemType, error) {
	t, ok := models.ParseItemType(s)
	if !ok {
		return "", fmt.Errorf("unknown item type %q (want file or folder)", s)
	}
	return t, nil
}
