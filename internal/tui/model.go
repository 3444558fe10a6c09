package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/cargo-build-deps/internal/config"
	"github.com/aristath/cargo-build-deps/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneUnits PaneID = iota
	PaneProgress
)

const paneCount = 2

// runFinishedMsg is sent when the event bus closes at the end of a build.
type runFinishedMsg struct{}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	unitPane     UnitPaneModel
	progressPane ProgressPaneModel
	settingsPane SettingsPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	width        int
	height       int
	quitting     bool
	finished     bool
	showSettings bool
	settingsNote string
}

// New creates a new TUI model subscribed to every event on the bus.
func New(eventBus *events.EventBus, cfg *config.BuildDepsConfig, globalPath, projectPath string) Model {
	return Model{
		unitPane:     NewUnitPaneModel(),
		progressPane: NewProgressPaneModel(),
		settingsPane: NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:  PaneUnits,
		eventSub:     eventBus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return runFinishedMsg{}
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// The settings form is modal
		if m.showSettings {
			switch msg.String() {
			case KeyEsc:
				m.showSettings = false
				m.settingsPane.SetVisible(false)
			default:
				var cmd tea.Cmd
				m.settingsPane, cmd = m.settingsPane.Update(msg)
				cmds = append(cmds, cmd)

				if !m.settingsPane.IsVisible() {
					m.showSettings = false
					if m.settingsPane.Saved() {
						m.settingsNote = "settings saved"
					}
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneUnits
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneProgress
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneUnits {
				var cmd tea.Cmd
				m.unitPane, cmd = m.unitPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case events.TaskStartedEvent, events.TaskExecutedEvent, events.TaskSkippedEvent, events.TaskFailedEvent:
		var cmd tea.Cmd
		m.unitPane, cmd = m.unitPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.DAGProgressEvent:
		var cmd tea.Cmd
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case runFinishedMsg:
		m.finished = true
		m.progressPane, _ = m.progressPane.Update(msg)

	default:
		// Form internals (cursor blink etc.) while settings are open
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// Finished reports whether the build behind the event bus has ended.
func (m Model) Finished() bool {
	return m.finished
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	help := HelpView()
	if m.settingsNote != "" {
		help += "  " + StyleStatusComplete.Render(m.settingsNote)
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top, m.unitPane.View(), m.progressPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, panes, help)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 65) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // help bar

	m.unitPane.SetSize(leftWidth, availableHeight)
	m.progressPane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.unitPane.SetFocused(m.focusedPane == PaneUnits)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}
