package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusdesk/notisync/internal/version"
)

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "notisync %s\n", version.String())
		},
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
