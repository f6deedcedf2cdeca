package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusdesk/notisync/internal/gateway"
	"github.com/campusdesk/notisync/internal/notification"
)

// newCreateCmd creates the create command. Creation is privileged; the
// server rejects it for non-staff tokens.
func newCreateCmd() *cobra.Command {
	var (
		recipient int
		broadcast bool
		typ       string
		title     string
		message   string
		priority  string
		actionURL string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a notification for a user or broadcast it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("create: --title is required")
			}
			if recipient <= 0 && !broadcast {
				return fmt.Errorf("create: either --recipient or --broadcast is required")
			}
			t, err := notification.ParseType(typ)
			if err != nil {
				return fmt.Errorf("create: %w", err)
			}
			p, err := notification.ParsePriority(priority)
			if err != nil {
				return fmt.Errorf("create: %w", err)
			}

			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			req := gateway.CreateRequest{
				RecipientID: recipient,
				Broadcast:   broadcast,
				Type:        t,
				Title:       title,
				Message:     message,
				Priority:    p,
				ActionURL:   actionURL,
			}
			if err := rt.gw.Create(cmd.Context(), req); err != nil {
				return fmt.Errorf("create: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Notification created")
			return nil
		},
	}

	cmd.Flags().IntVar(&recipient, "recipient", 0, "recipient user id")
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "send to all users")
	cmd.Flags().StringVar(&typ, "type", string(notification.TypeSystemAnnouncement), "notification type")
	cmd.Flags().StringVar(&title, "title", "", "notification title")
	cmd.Flags().StringVar(&message, "message", "", "notification body")
	cmd.Flags().StringVar(&priority, "priority", string(notification.PriorityMedium), "priority (low, medium, high, urgent)")
	cmd.Flags().StringVar(&actionURL, "action-url", "", "optional action link")
	return cmd
}

func init() {
	rootCmd.AddCommand(newCreateCmd())
}
