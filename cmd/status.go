package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusdesk/notisync/internal/snapshot"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "server:        %s\n", rt.cfg.ServerURL)
			fmt.Fprintf(out, "push:          %s\n", rt.cfg.PushURL)
			fmt.Fprintf(out, "poll interval: %s\n", rt.cfg.PollInterval)

			tokenState := "present"
			if rt.tokens.Token() == "" {
				tokenState = "missing"
			}
			fmt.Fprintf(out, "token:         %s (%s)\n", tokenState, rt.cfg.TokenFile)

			snap, err := snapshot.Open(rt.cfg.SnapshotDB)
			if err != nil {
				fmt.Fprintf(out, "snapshot:      unavailable (%v)\n", err)
				return nil
			}
			defer func() { _ = snap.Close() }()
			cached, err := snap.Load()
			if err != nil {
				fmt.Fprintf(out, "snapshot:      unreadable (%v)\n", err)
				return nil
			}
			unread := 0
			for _, n := range cached {
				if !n.Read {
					unread++
				}
			}
			fmt.Fprintf(out, "snapshot:      %d notifications, %d unread (%s)\n",
				len(cached), unread, rt.cfg.SnapshotDB)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newStatusCmd())
}
