package cli

import (
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrd/ca-drive/internal/models"
	ustr "github.com/mrd/ca-drive/internal/util/strings"
)

func newActivityCmd() *cobra.Command {
	var limit int
	var clientName string

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the firm's activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			entries, err := client.ListActivity(GetContext())
			if err != nil {
				return err
			}
			entries = filterActivity(entries, clientName, limit)
			return render(cmd.OutOrStdout(), outputFormat, entries, func(tw *tabwriter.Writer) {
				row(tw, "TIME", "ACTION", "CLIENT", "DETAILS")
				for _, e := range entries {
					name := e.ClientName
					if name == "" {
						name = "-"
					}
					row(tw, e.Timestamp.Local().Format("2006-01-02 15:04"), e.ActionLabel(), name, ustr.Truncate(e.Details, 70))
				}
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Show at most this many entries (0 for all)")
	cmd.Flags().StringVar(&clientName, "client", "", "Only entries whose client name contains this text")
	return cmd
}

func filterActivity(entries []models.ActivityEntry, clientName string, limit int) []models.ActivityEntry {
	if clientName != "" {
		q := strings.ToLower(clientName)
		out := entries[:0:0]
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.ClientName), q) {
				out = append(out, e)
			}
		}
		entries = out
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
