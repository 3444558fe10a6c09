package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/cargo-build-deps/internal/events"
)

// Unit status values shown in the list.
const (
	UnitRunning  = "running"
	UnitExecuted = "executed"
	UnitSkipped  = "skipped"
	UnitFailed   = "failed"
)

// UnitState represents the state of a single compile unit.
type UnitState struct {
	TaskID     string
	Name       string
	Package    string
	Origin     string
	Status     string
	MarkerPath string
	Err        error
	StartTime  time.Time
	Duration   time.Duration
}

// UnitPaneModel represents the unit list and detail viewport pane.
type UnitPaneModel struct {
	units       map[string]*UnitState // taskID -> state
	unitOrder   []string              // start order for display
	selectedIdx int                   // which unit is selected in list
	viewport    viewport.Model        // scrollable detail viewport
	width       int
	height      int
	focused     bool
}

// NewUnitPaneModel creates a new unit pane model.
func NewUnitPaneModel() UnitPaneModel {
	vp := viewport.New(0, 0)
	return UnitPaneModel{
		units:    make(map[string]*UnitState),
		viewport: vp,
	}
}

// Update handles messages for the unit pane.
func (m UnitPaneModel) Update(msg tea.Msg) (UnitPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.unitOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		if _, exists := m.units[msg.ID]; !exists {
			m.units[msg.ID] = &UnitState{
				TaskID:    msg.ID,
				Name:      msg.Name,
				Package:   msg.Package,
				Origin:    msg.Origin,
				Status:    UnitRunning,
				StartTime: msg.Timestamp,
			}
			m.unitOrder = append(m.unitOrder, msg.ID)
			if len(m.unitOrder) == 1 {
				m.selectedIdx = 0
			}
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskExecutedEvent:
		if unit, exists := m.units[msg.ID]; exists {
			unit.Status = UnitExecuted
			unit.Duration = msg.Duration
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskSkippedEvent:
		if unit, exists := m.units[msg.ID]; exists {
			unit.Status = UnitSkipped
			unit.MarkerPath = msg.MarkerPath
			unit.Duration = msg.Timestamp.Sub(unit.StartTime)
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskFailedEvent:
		if unit, exists := m.units[msg.ID]; exists {
			unit.Status = UnitFailed
			unit.Err = msg.Err
			unit.Duration = msg.Duration
			m.refreshIfSelected(msg.ID)
		}
	}

	return m, cmd
}

// View renders the unit pane.
func (m UnitPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 32
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderUnitList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderUnitList renders the unit list column.
func (m UnitPaneModel) renderUnitList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Units")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.unitOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, taskID := range m.unitOrder {
			unit := m.units[taskID]
			name := unit.Name
			if len(name) > width-4 {
				name = name[:width-7] + "..."
			}

			line := fmt.Sprintf("%s %s", StatusIcon(unit.Status), name)
			if i == m.selectedIdx {
				line = StyleSelected.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	switch status {
	case UnitRunning:
		return StyleStatusRunning.Render("●")
	case UnitExecuted:
		return StyleStatusComplete.Render("✓")
	case UnitSkipped:
		return StyleStatusSkipped.Render("↷")
	case UnitFailed:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// Selected returns the selected unit, or nil when the list is empty.
func (m UnitPaneModel) Selected() *UnitState {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.unitOrder) {
		return m.units[m.unitOrder[m.selectedIdx]]
	}
	return nil
}

func (m *UnitPaneModel) refreshIfSelected(taskID string) {
	if unit := m.Selected(); unit != nil && unit.TaskID == taskID {
		m.updateViewportContent()
	}
}

// updateViewportContent shows the selected unit's details.
func (m *UnitPaneModel) updateViewportContent() {
	m.viewport.SetContent(renderUnitDetail(m.Selected()))
}

func renderUnitDetail(unit *UnitState) string {
	if unit == nil {
		return "Waiting for units..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Unit:     %s\n", unit.Name)
	fmt.Fprintf(&b, "Package:  %s\n", unit.Package)
	fmt.Fprintf(&b, "Origin:   %s\n", unit.Origin)
	fmt.Fprintf(&b, "Status:   %s\n", unit.Status)
	if unit.Status != UnitRunning {
		fmt.Fprintf(&b, "Duration: %v\n", unit.Duration.Round(time.Millisecond))
	}
	if unit.MarkerPath != "" {
		fmt.Fprintf(&b, "\nMarker:\n  %s\n", unit.MarkerPath)
	}
	if unit.Err != nil {
		fmt.Fprintf(&b, "\nError:\n  %v\n", unit.Err)
	}
	return b.String()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *UnitPaneModel) resizeViewport() {
	listWidth := 32
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *UnitPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *UnitPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
