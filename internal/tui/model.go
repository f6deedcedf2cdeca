// Package tui renders the live notification inbox for the listen command.
// It is one subscriber of the notification store among potentially many.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/campusdesk/notisync/internal/notification"
	"github.com/campusdesk/notisync/internal/store"
)

// Engine is the surface of the sync engine the inbox needs.
type Engine interface {
	MarkRead(ctx context.Context, id int) error
	MarkAllRead(ctx context.Context) error
	Snapshot() []notification.Notification
	UnreadCount() int
}

// LiveFunc reports whether the push channel is currently delivering.
type LiveFunc func() bool

// RefreshFunc forces a full re-fetch from the server. May be nil.
type RefreshFunc func(ctx context.Context) error

// StoreEventMsg wraps a store event for bubbletea dispatch.
type StoreEventMsg store.Event

// liveTickMsg refreshes the live/polling indicator.
type liveTickMsg struct{}

// actionDoneMsg reports the outcome of a mark-read action.
type actionDoneMsg struct{ err error }

const liveTickInterval = time.Second

// Model is the bubbletea model for the live inbox.
type Model struct {
	engine  Engine
	isLive  LiveFunc
	refresh RefreshFunc

	notifications []notification.Notification
	unread        int
	live          bool
	cursor        int
	width         int
	height        int
	lastErr       error

	keys    keyMap
	help    help.Model
	spinner spinner.Model
}

// NewModel creates the inbox model seeded from the engine's current state.
func NewModel(engine Engine, isLive LiveFunc, refresh RefreshFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		engine:        engine,
		isLive:        isLive,
		refresh:       refresh,
		notifications: engine.Snapshot(),
		unread:        engine.UnreadCount(),
		keys:          defaultKeyMap(),
		help:          help.New(),
		spinner:       sp,
	}
}

// Init starts the spinner and the live indicator tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, liveTick())
}

func liveTick() tea.Cmd {
	return tea.Tick(liveTickInterval, func(time.Time) tea.Msg {
		return liveTickMsg{}
	})
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case StoreEventMsg:
		return m.handleStoreEvent(store.Event(msg)), nil
	case liveTickMsg:
		if m.isLive != nil {
			m.live = m.isLive()
		}
		return m, liveTick()
	case actionDoneMsg:
		m.lastErr = msg.err
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleStoreEvent(ev store.Event) Model {
	m.notifications = ev.Notifications
	m.unread = ev.UnreadCount
	if ev.Err != nil {
		m.lastErr = ev.Err
	}
	if m.cursor >= len(m.notifications) {
		m.cursor = len(m.notifications) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.notifications)-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.MarkRead):
		return m, m.markSelectedRead()
	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.markAllRead()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

func (m Model) markSelectedRead() tea.Cmd {
	if m.cursor >= len(m.notifications) {
		return nil
	}
	selected := m.notifications[m.cursor]
	if selected.Read {
		return nil
	}
	engine := m.engine
	return func() tea.Msg {
		return actionDoneMsg{err: engine.MarkRead(context.Background(), selected.ID)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	if m.unread == 0 {
		return nil
	}
	engine := m.engine
	return func() tea.Msg {
		return actionDoneMsg{err: engine.MarkAllRead(context.Background())}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	if m.refresh == nil {
		return nil
	}
	refresh := m.refresh
	return func() tea.Msg {
		return actionDoneMsg{err: refresh(context.Background())}
	}
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (notification.Notification, bool) {
	if m.cursor < 0 || m.cursor >= len(m.notifications) {
		return notification.Notification{}, false
	}
	return m.notifications[m.cursor], true
}

// Run wires the model to a bubbletea program, pumping store events into it
// until the program exits or ctx is cancelled.
func Run(ctx context.Context, engine Engine, st *store.Store, isLive LiveFunc, refresh RefreshFunc) error {
	model := NewModel(engine, isLive, refresh)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	events, unsub := st.Subscribe()
	defer unsub()
	go func() {
		for ev := range events {
			program.Send(StoreEventMsg(ev))
		}
	}()

	_, err := program.Run()
	return err
}
