package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/campusdesk/notisync/internal/gateway"
	"github.com/campusdesk/notisync/internal/notification"
	"github.com/campusdesk/notisync/internal/snapshot"
)

// newListCmd creates the list command.
func newListCmd() *cobra.Command {
	var (
		page       int
		unreadOnly bool
		typeFilter string
		prioFilter string
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		Long: `List notifications from the server, or with --offline from the local
snapshot written by a previous listen session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}

			if offline {
				snap, err := snapshot.Open(rt.cfg.SnapshotDB)
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				defer func() { _ = snap.Close() }()
				notifications, err := snap.Load()
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				printNotificationTable(cmd.OutOrStdout(), notifications)
				return nil
			}

			params := gateway.ListParams{Page: page}
			if unreadOnly {
				f := false
				params.IsRead = &f
			}
			if typeFilter != "" {
				t, err := notification.ParseType(typeFilter)
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				params.Type = t
			}
			if prioFilter != "" {
				p, err := notification.ParsePriority(prioFilter)
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				params.Priority = p
			}

			result, err := rt.gw.List(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			printNotificationTable(cmd.OutOrStdout(), result.Notifications)
			if result.Next != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "(more pages; use --page %d)\n", page+1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only unread notifications")
	cmd.Flags().StringVar(&typeFilter, "type", "", "filter by notification type")
	cmd.Flags().StringVar(&prioFilter, "priority", "", "filter by priority (low, medium, high, urgent)")
	cmd.Flags().BoolVar(&offline, "offline", false, "read from the local snapshot instead of the server")
	return cmd
}

func printNotificationTable(out io.Writer, notifications []notification.Notification) {
	if len(notifications) == 0 {
		fmt.Fprintln(out, "No notifications.")
		return
	}
	notification.SortForDisplay(notifications)
	for _, n := range notifications {
		marker := " "
		if !n.Read {
			marker = "•"
		}
		fmt.Fprintf(out, "%s %5d  %-16s %-6s  %s  %s\n",
			marker, n.ID, n.Type, n.Priority,
			n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Title)
	}
}

func init() {
	rootCmd.AddCommand(newListCmd())
}
