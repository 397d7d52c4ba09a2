package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrd/ca-drive/internal/models"
	ustr "github.com/mrd/ca-drive/internal/util/strings"
)

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "Read and manage notifications",
	}
	cmd.AddCommand(newNotificationsLsCmd(), newNotificationsReadCmd(), newNotificationsRmCmd())
	return cmd
}

func newNotificationsLsCmd() *cobra.Command {
	var unread bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notifications, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			all, err := client.ListNotifications(GetContext())
			if err != nil {
				return err
			}
			list := all
			if unread {
				list = list[:0:0]
				for _, n := range all {
					if !n.IsRead {
						list = append(list, n)
					}
				}
			}
			return render(cmd.OutOrStdout(), outputFormat, list, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "%s unread\n\n", ustr.Count(models.UnreadCount(all), "notification"))
				row(tw, "", "ID", "DATE", "TITLE", "MESSAGE")
				for _, n := range list {
					mark := " "
					if !n.IsRead {
						mark = "●"
					}
					row(tw, mark, n.ID, shortDate(n.CreatedAt), n.Title, ustr.Truncate(n.Message, 60))
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&unread, "unread", "u", false, "Only unread notifications")
	return cmd
}

func newNotificationsReadCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "read [id...]",
		Short: "Mark notifications as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("give notification IDs or --all")
			}
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			if all {
				if err := client.MarkAllNotificationsRead(GetContext()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ All notifications marked read")
				return nil
			}
			for _, id := range args {
				if err := client.MarkNotificationRead(GetContext(), id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s marked read\n", ustr.Count(len(args), "notification"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Mark every notification read")
	return cmd
}

func newNotificationsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id> [id...]",
		Aliases: []string{"rm"},
		Short:   "Delete notifications",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := client.DeleteNotification(GetContext(), id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", id)
			}
			return nil
		},
	}
}
