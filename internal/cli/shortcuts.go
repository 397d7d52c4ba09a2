package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// AddShortcuts adds top-level aliases for the most used drive commands.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(shortcut(newDriveLsCmd(), "drive ls"))
	rootCmd.AddCommand(shortcut(newDriveUploadCmd(), "drive upload"))
	rootCmd.AddCommand(shortcut(newDriveGetCmd(), "drive get", "download"))
	rootCmd.AddCommand(shortcut(newDriveBrowseCmd(), "drive browse"))
}

// shortcut marks cmd as an alias of target. An optional name replaces the
// command's own name.
func shortcut(cmd *cobra.Command, target string, name ...string) *cobra.Command {
	if len(name) > 0 {
		_, rest, _ := strings.Cut(cmd.Use, " ")
		cmd.Use = name[0] + " " + rest
	}
	cmd.Short += " (shortcut for '" + target + "')"
	cmd.Long = "Shortcut for 'ca-drive " + target + "'.\n\n" + cmd.Long
	cmd.Aliases = nil
	return cmd
}
