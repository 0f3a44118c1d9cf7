package tui

import (
	"fmt"
	"strings"

	"grindstone/internal/events"
)

// ProgressPaneModel renders backlog progress: completed/total counts, the
// current iteration, and a bar.
type ProgressPaneModel struct {
	total     int
	completed int
	iteration int
	reason    string // Set once the run finishes
	width     int
}

// NewProgressPaneModel creates a new progress pane model.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Apply updates the pane from a run-topic event.
func (m ProgressPaneModel) Apply(event events.Event) ProgressPaneModel {
	switch ev := event.(type) {
	case events.RunProgressEvent:
		m.total = ev.Total
		m.completed = ev.Completed
		m.iteration = ev.Iteration
	case events.RunFinishedEvent:
		m.reason = ev.Reason
	}
	return m
}

// SetWidth sets the rendering width.
func (m ProgressPaneModel) SetWidth(w int) ProgressPaneModel {
	m.width = w
	return m
}

// View renders the pane.
func (m ProgressPaneModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Backlog"))
	b.WriteString("\n")

	if m.total == 0 {
		b.WriteString(StylePending.Render("waiting for first iteration..."))
		return b.String()
	}

	fmt.Fprintf(&b, "%d / %d tasks completed (iteration %d)\n", m.completed, m.total, m.iteration)
	b.WriteString(m.renderBar())

	if m.reason != "" {
		b.WriteString("\n")
		switch m.reason {
		case "exhausted":
			b.WriteString(StyleCommitted.Render("run finished: backlog exhausted"))
		default:
			b.WriteString(StyleFailed.Render("run finished: " + m.reason))
		}
	}

	return b.String()
}

// renderBar draws a fixed-width completion bar.
func (m ProgressPaneModel) renderBar() string {
	barWidth := m.width - 4
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 60 {
		barWidth = 60
	}

	filled := 0
	if m.total > 0 {
		filled = barWidth * m.completed / m.total
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return StyleProgressBar.Render(bar)
}
