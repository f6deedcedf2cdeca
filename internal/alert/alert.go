// Package alert delivers high-priority arrivals to the local desktop by
// running a user-configured command, e.g. notify-send.
package alert

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/campusdesk/notisync/internal/logging"
	"github.com/campusdesk/notisync/internal/notification"
)

// DefaultTimeout bounds a single alert command run.
const DefaultTimeout = 30 * time.Second

// CommandSink runs a shell command for every alert. The notification fields
// are passed through NOTISYNC_* environment variables so the command needs
// no argument parsing. Implements ports.AlertSink.
type CommandSink struct {
	command string
	timeout time.Duration
	log     logging.Logger

	wg sync.WaitGroup
}

// Option configures a CommandSink.
type Option func(*CommandSink)

// WithTimeout overrides the per-run command timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *CommandSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewCommandSink creates a sink running the given shell command.
func NewCommandSink(command string, log logging.Logger, opts ...Option) *CommandSink {
	s := &CommandSink{
		command: command,
		timeout: DefaultTimeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Alert runs the command asynchronously; delivery never blocks the sync
// engine. Failures are logged and otherwise ignored.
func (s *CommandSink) Alert(n notification.Notification) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(n)
	}()
}

// Wait blocks until all in-flight alert commands finish, used on shutdown.
func (s *CommandSink) Wait() {
	s.wg.Wait()
}

func (s *CommandSink) run(n notification.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	cmd.Env = append(os.Environ(),
		"NOTISYNC_ID="+strconv.Itoa(n.ID),
		"NOTISYNC_TYPE="+n.Type.String(),
		"NOTISYNC_TITLE="+n.Title,
		"NOTISYNC_MESSAGE="+n.Message,
		"NOTISYNC_PRIORITY="+n.Priority.String(),
		"NOTISYNC_ACTION_URL="+n.ActionURL,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		s.log.Warn("alert: command failed", "error", err, "output", string(out))
		return
	}
	s.log.Debug("alert: command ran", "id", n.ID)
}
