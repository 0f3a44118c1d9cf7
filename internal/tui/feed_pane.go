package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"

	"grindstone/internal/events"
)

// maxFeedLines bounds the in-memory feed history.
const maxFeedLines = 500

// FeedPaneModel is a scrollable feed of iteration outcomes.
type FeedPaneModel struct {
	lines    []string
	viewport viewport.Model
	width    int
	height   int
	focused  bool
}

// NewFeedPaneModel creates a new feed pane model.
func NewFeedPaneModel() FeedPaneModel {
	return FeedPaneModel{
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the feed pane.
func (m FeedPaneModel) Update(msg tea.Msg) (FeedPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.focused {
			switch msg.String() {
			case KeyJ, KeyDown:
				m.viewport.LineDown(1)
			case KeyK, KeyUp:
				m.viewport.LineUp(1)
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// Apply appends a feed line for an iteration-topic event.
func (m FeedPaneModel) Apply(event events.Event) FeedPaneModel {
	var line string

	switch ev := event.(type) {
	case events.IterationStartedEvent:
		line = fmt.Sprintf("#%d  %s  %s", ev.Iteration, ev.TaskID,
			StyleRunning.Render("invoking"))
	case events.IterationCommittedEvent:
		line = fmt.Sprintf("#%d  %s  %s  %s (%.1fs)", ev.Iteration, ev.TaskID,
			StyleCommitted.Render("committed"), ev.Checkpoint, ev.Duration.Seconds())
	case events.IterationFailedEvent:
		line = fmt.Sprintf("#%d  %s  %s  %s (stall %d)", ev.Iteration, ev.TaskID,
			StyleFailed.Render(ev.Outcome), ev.Reason, ev.Stalls)
	default:
		return m
	}

	wasAtBottom := m.viewport.AtBottom()

	m.lines = append(m.lines, line)
	if len(m.lines) > maxFeedLines {
		m.lines = m.lines[len(m.lines)-maxFeedLines:]
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))

	// Follow the feed unless the operator scrolled away.
	if wasAtBottom {
		m.viewport.GotoBottom()
	}

	return m
}

// SetSize resizes the pane.
func (m FeedPaneModel) SetSize(width, height int) FeedPaneModel {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 1 // Title line
	return m
}

// SetFocused toggles key handling.
func (m FeedPaneModel) SetFocused(focused bool) FeedPaneModel {
	m.focused = focused
	return m
}

// View renders the pane.
func (m FeedPaneModel) View() string {
	return StyleTitle.Render("Iterations") + "\n" + m.viewport.View()
}
