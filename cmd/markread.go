package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// markReadClient is the gateway surface the mark-read commands need.
type markReadClient interface {
	MarkRead(ctx context.Context, id int) error
	MarkAllRead(ctx context.Context) error
}

// NewMarkReadCmd creates the mark-read command with explicit dependencies.
func NewMarkReadCmd(client func() (markReadClient, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("mark-read: invalid id %q", args[0])
			}
			gw, err := client()
			if err != nil {
				return err
			}
			if err := gw.MarkRead(cmd.Context(), id); err != nil {
				return fmt.Errorf("mark-read: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Notification %d marked as read\n", id)
			return nil
		},
	}
}

// NewMarkAllReadCmd creates the mark-all-read command with explicit
// dependencies.
func NewMarkAllReadCmd(client func() (markReadClient, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-all-read",
		Short: "Mark all notifications as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := client()
			if err != nil {
				return err
			}
			if err := gw.MarkAllRead(cmd.Context()); err != nil {
				return fmt.Errorf("mark-all-read: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read")
			return nil
		},
	}
}

func gatewayClient() (markReadClient, error) {
	rt, err := buildRuntime()
	if err != nil {
		return nil, err
	}
	return rt.gw, nil
}

func init() {
	rootCmd.AddCommand(NewMarkReadCmd(gatewayClient))
	rootCmd.AddCommand(NewMarkAllReadCmd(gatewayClient))
}
