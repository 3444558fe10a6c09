package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/cargo-build-deps/internal/events"
)

// ProgressPaneModel shows build progress counts and a bar.
type ProgressPaneModel struct {
	progress events.DAGProgressEvent
	finished bool
	width    int
	height   int
	focused  bool
}

// NewProgressPaneModel creates a new progress pane model.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.DAGProgressEvent:
		m.progress = msg

	case runFinishedMsg:
		m.finished = true
	}

	return m, nil
}

// Done returns the number of units in a terminal state.
func (m ProgressPaneModel) Done() int {
	return m.progress.Executed + m.progress.Skipped + m.progress.Failed
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	p := m.progress
	var b strings.Builder

	heading := "Build Progress"
	if m.finished {
		heading = "Build Finished"
	}
	title := StyleTitle.Render(heading)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:    %d\n", p.Total))
	b.WriteString(fmt.Sprintf("Executed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", p.Executed))))
	b.WriteString(fmt.Sprintf("Skipped:  %s\n", StyleStatusSkipped.Render(fmt.Sprintf("%d", p.Skipped))))
	b.WriteString(fmt.Sprintf("Running:  %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", p.Running))))
	b.WriteString(fmt.Sprintf("Failed:   %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", p.Failed))))
	b.WriteString(fmt.Sprintf("Pending:  %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", p.Pending))))

	b.WriteString("\n")

	if p.Total > 0 {
		barWidth := min(m.width-4, 40)
		executedWidth := (p.Executed * barWidth) / p.Total
		skippedWidth := (p.Skipped * barWidth) / p.Total
		failedWidth := (p.Failed * barWidth) / p.Total
		runningWidth := (p.Running * barWidth) / p.Total
		pendingWidth := barWidth - executedWidth - skippedWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, executedWidth)))
		bar += StyleStatusSkipped.Render(strings.Repeat("~", max(0, skippedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, m.Done(), p.Total))
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
