package cli

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrd/ca-drive/internal/models"
)

func newClientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List the firm's clients",
	}
	cmd.AddCommand(newClientsListCmd(), newClientsShowCmd())
	return cmd
}

func newClientsListCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List clients",
		Long: `List clients, optionally filtered by name, PAN or mobile number.

Examples:
  ca-drive clients list
  ca-drive clients list --search ABCDE1234F
  ca-drive clients list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			all, err := client.ListClients(GetContext())
			if err != nil {
				return err
			}

			clients := make([]models.Client, 0, len(all))
			for _, c := range all {
				if c.Matches(search) {
					clients = append(clients, c)
				}
			}

			return render(cmd.OutOrStdout(), outputFormat, clients, func(tw *tabwriter.Writer) {
				row(tw, "ID", "NAME", "TYPE", "PAN", "MOBILE")
				for _, c := range clients {
					row(tw, c.ID, c.Name, c.Type, c.PANNumber, c.MobileNumber)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by name, PAN or mobile number")
	return cmd
}

func newClientsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <client-id>",
		Short: "Show one client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			c, err := client.GetClient(GetContext(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), outputFormat, c, func(tw *tabwriter.Writer) {
				row(tw, "ID:", c.ID)
				row(tw, "Name:", c.Name)
				row(tw, "Type:", c.Type)
				row(tw, "PAN:", c.PANNumber)
				row(tw, "Mobile:", c.MobileNumber)
				if c.Email != "" {
					row(tw, "Email:", c.Email)
				}
				if c.GSTNumber != "" {
					row(tw, "GST:", c.GSTNumber)
				}
				if c.TANNumber != "" {
					row(tw, "TAN:", c.TANNumber)
				}
				row(tw, "Device approved:", c.DeviceApproved)
			})
		},
	}
}
