package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCheckProfileCmd creates the check-profile command.
func newCheckProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-profile",
		Short: "Ask the server to check profile completeness",
		Long: `Ask the server to check profile completeness. If the profile is
incomplete, the server emits a notification about the missing fields.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			if err := rt.gw.CheckProfile(cmd.Context()); err != nil {
				return fmt.Errorf("check-profile: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile check requested")
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newCheckProfileCmd())
}
