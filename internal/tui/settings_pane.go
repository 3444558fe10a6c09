package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/cargo-build-deps/internal/config"
)

// SettingsPaneModel manages the settings form overlay. Changes apply to the
// next build; the running one keeps its settings.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.BuildDepsConfig
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings
	saveTarget     string
	cargoCommand   string
	toolchain      string
	jobs           string
	release        bool
	historyEnabled bool
	logLevel       string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.BuildDepsConfig, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
	}
	m.loadFromConfig()
	m.buildForm()
	return m
}

// loadFromConfig copies config values into the form bindings.
func (m *SettingsPaneModel) loadFromConfig() {
	m.saveTarget = "project"
	m.cargoCommand = m.config.Cargo.Command
	m.toolchain = m.config.Cargo.Toolchain
	m.jobs = strconv.Itoa(m.config.Jobs)
	m.release = m.config.Release
	m.historyEnabled = m.config.History.Enabled
	m.logLevel = m.config.Log.Level
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Project (.build-deps/config.json)", "project"),
					huh.NewOption("Global (~/.build-deps/config.json)", "global"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("cargoCommand").
				Title("Cargo Command").
				Value(&m.cargoCommand).
				Placeholder("cargo"),

			huh.NewInput().
				Key("toolchain").
				Title("Build Plan Toolchain").
				Description("Only for -in-process plan generation; wrapper builds use cargo's default toolchain").
				Value(&m.toolchain).
				Placeholder("nightly"),

			huh.NewInput().
				Key("jobs").
				Title("Jobs (0 = all CPUs)").
				Value(&m.jobs).
				Validate(validateJobs),

			huh.NewConfirm().
				Key("release").
				Title("Release Profile").
				Value(&m.release),
		).Title("Build Settings"),

		huh.NewGroup(
			huh.NewConfirm().
				Key("historyEnabled").
				Title("Record Build History").
				Value(&m.historyEnabled),

			huh.NewSelect[string]().
				Key("logLevel").
				Title("Log Level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&m.logLevel),
		).Title("Diagnostics"),
	)
}

func validateJobs(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("jobs must be a non-negative number")
	}
	return nil
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		// Cancel without saving
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.save()
	}

	return m, cmd
}

// save applies the form to the config and writes it to the chosen file.
func (m *SettingsPaneModel) save() {
	m.applyFormToConfig()

	targetPath := m.projectPath
	if m.saveTarget == "global" {
		targetPath = m.globalPath
	}

	if err := config.Save(m.config, targetPath); err != nil {
		m.err = err
		m.saved = false
		return
	}

	m.saved = true
	m.err = nil
	m.visible = false
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsPaneModel) applyFormToConfig() {
	m.config.Cargo.Command = m.cargoCommand
	m.config.Cargo.Toolchain = m.toolchain
	if n, err := strconv.Atoi(m.jobs); err == nil && n >= 0 {
		m.config.Jobs = n
	}
	m.config.Release = m.release
	m.config.History.Enabled = m.historyEnabled
	m.config.Log.Level = m.logLevel
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings (next build)")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	if v {
		m.loadFromConfig()
		m.buildForm()
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last form submission was written to disk.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}
