// Package tui implements the optional live monitor for a harness run: a
// backlog progress pane and a scrolling iteration feed, both fed from the
// event bus. The monitor is purely observational and never writes state.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grindstone/internal/events"
)

// Model is the root Bubble Tea model for the monitor.
type Model struct {
	progressPane ProgressPaneModel
	feedPane     FeedPaneModel
	eventSub     <-chan events.Event
	width        int
	height       int
	quitting     bool
}

// New creates a monitor model subscribed to all events on the bus.
func New(bus *events.Bus) Model {
	return Model{
		progressPane: NewProgressPaneModel(),
		feedPane:     NewFeedPaneModel().SetFocused(true),
		eventSub:     bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.feedPane, cmd = m.feedPane.Update(msg)
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progressPane = m.progressPane.SetWidth(msg.Width - 4)
		// Progress pane takes 6 rows; the feed gets the rest.
		feedHeight := msg.Height - 8
		if feedHeight < 3 {
			feedHeight = 3
		}
		m.feedPane = m.feedPane.SetSize(msg.Width-4, feedHeight)

	case events.Event:
		m.progressPane = m.progressPane.Apply(msg)
		m.feedPane = m.feedPane.Apply(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the monitor.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	progress := StyleUnfocusedBorder.Width(m.width - 2).Render(m.progressPane.View())
	feed := StyleFocusedBorder.Width(m.width - 2).Render(m.feedPane.View())

	return lipgloss.JoinVertical(lipgloss.Left, progress, feed, HelpView())
}
