// Package tui renders a live activity dashboard for the watch engine.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/cc-log-viewer/internal/watch"
	"github.com/2389-research/cc-log-viewer/pkg/models"
)

const maxFeedLines = 500

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	streamStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// feedLine is one rendered row of the activity feed.
type feedLine struct {
	at      time.Time
	stream  string
	kind    string
	summary string
}

// Model is the root Bubble Tea model: a scrolling feed of broadcast events.
type Model struct {
	root    string
	sub     *watch.Subscription
	feed    []feedLine
	total   int
	width   int
	height  int
	stopped bool
}

// eventMsg carries one broadcast event into the update loop.
type eventMsg models.WatchEvent

// subClosedMsg indicates the subscription ended underneath the TUI.
type subClosedMsg struct{}

// New creates the dashboard model over an existing subscription.
func New(root string, sub *watch.Subscription) Model {
	return Model{root: root, sub: sub}
}

// Init starts listening for events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("cc-log-viewer"),
		waitForEvent(m.sub),
	)
}

// waitForEvent blocks until the next broadcast event arrives.
func waitForEvent(sub *watch.Subscription) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-sub.Events():
			return eventMsg(ev)
		case <-sub.Done():
			return subClosedMsg{}
		}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.sub.Close()
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		m.total++
		m.feed = append(m.feed, toFeedLine(models.WatchEvent(msg)))
		if len(m.feed) > maxFeedLines {
			m.feed = m.feed[len(m.feed)-maxFeedLines:]
		}
		return m, waitForEvent(m.sub)

	case subClosedMsg:
		m.stopped = true
		return m, nil
	}

	return m, nil
}

func toFeedLine(ev models.WatchEvent) feedLine {
	line := feedLine{
		at:     ev.Timestamp,
		stream: ev.Project + "/" + ev.Session,
		kind:   "entry",
	}
	if ev.Entry != nil {
		if ev.Entry.Type != "" {
			line.kind = ev.Entry.Type
		}
		line.summary = ev.Entry.Summary
	}
	return line
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf("Live Activity: %s", m.root)
	status := fmt.Sprintf("%d events", m.total)
	if n := m.sub.Dropped(); n > 0 {
		status += fmt.Sprintf(", %d dropped", n)
	}
	if m.stopped {
		status += " (stopped)"
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("  ")
	b.WriteString(kindStyle.Render(status))
	b.WriteString("\n\n")

	visible := m.height - 4
	if visible < 1 {
		visible = 1
	}
	start := len(m.feed) - visible
	if start < 0 {
		start = 0
	}

	for _, line := range m.feed[start:] {
		b.WriteString(timeStyle.Render(line.at.Local().Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(streamStyle.Render(line.stream))
		b.WriteString(" ")
		b.WriteString(kindStyle.Render(line.kind))
		if line.summary != "" {
			b.WriteString(" ")
			b.WriteString(truncate(line.summary, m.width-30))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: quit"))

	return b.String()
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
