package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newUnreadCmd creates the unread command.
func newUnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Show the unread notification count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			count, err := rt.gw.UnreadCount(cmd.Context())
			if err != nil {
				return fmt.Errorf("unread: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newUnreadCmd())
}
