package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/campusdesk/notisync/internal/notification"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	liveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pollingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	unreadStyle   = lipgloss.NewStyle().Bold(true)
	readStyle     = lipgloss.NewStyle().Faint(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	priorityStyles = map[notification.Priority]lipgloss.Style{
		notification.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		notification.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		notification.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		notification.PriorityUrgent: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

// View renders the inbox.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	if len(m.notifications) == 0 {
		b.WriteString(readStyle.Render("  No notifications."))
		b.WriteString("\n")
	} else {
		for i, n := range m.notifications {
			b.WriteString(m.rowView(i, n))
			b.WriteString("\n")
		}
	}

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("  " + m.lastErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) headerView() string {
	indicator := pollingStyle.Render(m.spinner.View() + "polling")
	if m.live {
		indicator = liveStyle.Render("● live")
	}
	title := titleStyle.Render("Notifications")
	return fmt.Sprintf("  %s  %s  %s", title, indicator,
		readStyle.Render(fmt.Sprintf("(%d unread)", m.unread)))
}

func (m Model) rowView(i int, n notification.Notification) string {
	marker := " "
	if !n.Read {
		marker = "•"
	}
	line := fmt.Sprintf("  %s %s %s  %s",
		marker,
		priorityStyles[n.Priority].Render(fmt.Sprintf("%-6s", n.Priority)),
		n.CreatedAt.Local().Format("Jan 02 15:04"),
		n.Title,
	)
	style := readStyle
	if !n.Read {
		style = unreadStyle
	}
	if i == m.cursor {
		return selectedStyle.Render(line)
	}
	return style.Render(line)
}
