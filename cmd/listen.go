package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campusdesk/notisync/internal/alert"
	"github.com/campusdesk/notisync/internal/notification"
	"github.com/campusdesk/notisync/internal/poll"
	"github.com/campusdesk/notisync/internal/push"
	"github.com/campusdesk/notisync/internal/snapshot"
	"github.com/campusdesk/notisync/internal/store"
	"github.com/campusdesk/notisync/internal/syncer"
	"github.com/campusdesk/notisync/internal/tui"
)

// newListenCmd creates the listen command.
func newListenCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run the sync engine with a live inbox",
		Long: `Run the notification sync engine: connect to the push channel, fall back
to polling when it is unavailable, and show a live inbox. With --plain, new
notifications are printed as lines instead of the interactive view.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}

			st := store.New(rt.gw, rt.log)

			snap, err := snapshot.Open(rt.cfg.SnapshotDB)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			defer func() { _ = snap.Close() }()

			// Warm start: show the last known state before the first round
			// trip completes.
			if cached, err := snap.Load(); err == nil && len(cached) > 0 {
				st.ReplaceAll(cached)
			}

			manager := push.NewManager(rt.cfg.PushURL, push.NewWebsocketDialer(), rt.tokens, rt.log,
				push.WithBackoff(push.NewBackoff(rt.cfg.ReconnectBase, rt.cfg.ReconnectCap)),
			)
			poller := poll.New(rt.gw, st, rt.log, poll.WithInterval(rt.cfg.PollInterval))

			opts := []syncer.Option{
				syncer.WithRefresher(rt.gw),
				syncer.WithSnapshotter(snap),
			}
			switch {
			case rt.cfg.AlertCommand != "":
				sink := alert.NewCommandSink(rt.cfg.AlertCommand, rt.log,
					alert.WithTimeout(rt.cfg.AlertTimeout))
				defer sink.Wait()
				opts = append(opts, syncer.WithAlertSink(sink))
			case plain:
				opts = append(opts, syncer.WithAlertSink(bellSink{out: cmd.ErrOrStderr()}))
			}
			coordinator := syncer.New(manager, poller, st, rt.log, opts...)

			coordinator.Start()
			defer coordinator.Stop()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if plain {
				return runPlain(ctx, cmd, st, coordinator)
			}
			refresh := func(ctx context.Context) error {
				notifications, err := rt.gw.FetchAll(ctx)
				if err != nil {
					return err
				}
				st.ReplaceAll(notifications)
				return nil
			}
			return tui.Run(ctx, st, st, coordinator.IsLive, refresh)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print new notifications as lines instead of the interactive inbox")
	return cmd
}

// runPlain prints arriving notifications until interrupted.
func runPlain(ctx context.Context, cmd *cobra.Command, st *store.Store, coordinator *syncer.Coordinator) error {
	out := cmd.OutOrStdout()
	events, unsub := st.Subscribe()
	defer unsub()

	fmt.Fprintln(out, "Listening for notifications (Ctrl+C to stop)...")
	seen := make(map[int]bool)
	for _, n := range st.Snapshot() {
		seen[n.ID] = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			for i := len(ev.Notifications) - 1; i >= 0; i-- {
				n := ev.Notifications[i]
				if seen[n.ID] {
					continue
				}
				seen[n.ID] = true
				printNotification(out, n, coordinator.IsLive())
			}
		}
	}
}

func printNotification(out io.Writer, n notification.Notification, live bool) {
	channel := "poll"
	if live {
		channel = "push"
	}
	fmt.Fprintf(out, "[%s] %s %-6s %s: %s\n",
		n.CreatedAt.Local().Format("15:04:05"), channel, n.Priority, n.Title, n.Message)
}

// bellSink rings the terminal bell for high-priority arrivals in plain mode.
type bellSink struct {
	out io.Writer
}

func (s bellSink) Alert(n notification.Notification) {
	fmt.Fprintf(s.out, "\a%s: %s\n", n.Priority, n.Title)
}

func init() {
	rootCmd.AddCommand(newListenCmd())
}
