// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     ui
// Description: Bubbletea model for the voice assistant
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/msto63/vortex/internal/tui/voiceassistant/client"
	"github.com/msto63/vortex/internal/tui/voiceassistant/visualizer"
	"github.com/msto63/vortex/pkg/core/version"
)

const (
	// DefaultCanvasHeight is the visualizer height in rows
	DefaultCanvasHeight = 8

	headerHeight = 3
	footerHeight = 5
)

// Controller is the app side of the UI. Methods other than ToggleSpeech
// may block and are run as commands.
type Controller interface {
	ToggleRecording()
	SubmitText(text string)
	ToggleSpeech() bool
	StopSpeaking()
	NextDevice()
}

// Config holds UI settings
type Config struct {
	// Canvas is optional; without it no visualizer panel is shown
	Canvas        *visualizer.TerminalCanvas
	CanvasHeight  int
	FrameInterval time.Duration

	SpeechEnabled bool
	Device        string
	BackendURL    string
}

// Model is the Bubbletea model for the voice assistant
type Model struct {
	ctrl Controller
	cfg  Config

	// State
	width     int
	height    int
	ready     bool
	state     string
	icon      string
	recording bool
	busy      bool
	speaking  bool
	backend   string
	speechOn  bool
	device    string
	health    client.HealthStatus
	checked   bool
	err       error
	frameGen  int

	// Components
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	messages []Message
}

// New creates the UI model
func New(ctrl Controller, cfg Config) Model {
	if cfg.CanvasHeight <= 0 {
		cfg.CanvasHeight = DefaultCanvasHeight
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = visualizer.DefaultFrameInterval
	}

	ti := textinput.New()
	ti.Placeholder = "Frage eingeben... (Enter senden, Ctrl+R Aufnahme)"
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return Model{
		ctrl:     ctrl,
		cfg:      cfg,
		state:    "Bereit",
		icon:     "⏸",
		speechOn: cfg.SpeechEnabled,
		device:   cfg.Device,
		input:    ti,
		spinner:  sp,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Messages returns the transcript
func (m Model) Messages() []Message {
	return m.messages
}

// Recording reports whether the last state update was a recording
func (m Model) Recording() bool {
	return m.recording
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case StateMsg:
		m.state, m.icon, m.busy = msg.State, msg.Icon, msg.Busy
		if msg.Recording == m.recording {
			return m, nil
		}
		m.recording = msg.Recording
		m.frameGen++
		if m.recording && m.cfg.Canvas != nil {
			return m, m.nextFrame()
		}
		return m, nil

	case frameMsg:
		if msg.gen != m.frameGen || !m.recording {
			return m, nil
		}
		return m, m.nextFrame()

	case TranscriptMsg:
		m.appendMessage(Message(msg))
		return m, nil

	case HealthMsg:
		m.health = msg.Status
		m.checked = true
		return m, nil

	case SpeakingMsg:
		m.speaking, m.backend = msg.Speaking, msg.Backend
		return m, nil

	case DeviceMsg:
		m.device = msg.Device
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) nextFrame() tea.Cmd {
	gen := m.frameGen
	return tea.Tick(m.cfg.FrameInterval, func(time.Time) tea.Msg {
		return frameMsg{gen: gen}
	})
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	if m.cfg.Canvas != nil {
		m.cfg.Canvas.SetDisplaySize(max(width-4, 1), m.cfg.CanvasHeight)
	}

	vpHeight := height - headerHeight - footerHeight - m.visualizerHeight() - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(width-4, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width - 4
		m.viewport.Height = vpHeight
	}
	m.input.Width = width - 8
	m.refreshViewport()
}

func (m Model) visualizerHeight() int {
	if m.cfg.Canvas == nil {
		return 0
	}
	return m.cfg.CanvasHeight + 2
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyCtrlR:
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.ToggleRecording()
			return nil
		}

	case tea.KeyCtrlS:
		m.speechOn = m.ctrl.ToggleSpeech()
		return m, nil

	case tea.KeyCtrlD:
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.NextDevice()
			return nil
		}

	case tea.KeyEsc:
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.StopSpeaking()
			return nil
		}

	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.busy {
			return m, nil
		}
		m.input.Reset()
		m.err = nil
		m.appendMessage(Message{Role: RoleUser, Text: text})
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.SubmitText(text)
			return nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) appendMessage(msg Message) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	m.messages = append(m.messages, msg)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	width := m.viewport.Width - 2
	if width < 10 {
		width = 10
	}

	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case RoleUser:
			b.WriteString(UserLabelStyle.Render("Du"))
			b.WriteString("\n")
			b.WriteString(MessageTextStyle.Width(width).Render(msg.Text))
		case RoleAssistant:
			b.WriteString(AssistantLabelStyle.Render("VORTEX"))
			b.WriteString("\n")
			b.WriteString(MessageTextStyle.Width(width).Render(msg.Text))
		default:
			b.WriteString(SystemMessageStyle.Width(width).Render(msg.Text))
		}
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Lade VORTEX..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.cfg.Canvas != nil {
		b.WriteString(m.renderVisualizer())
		b.WriteString("\n")
	}

	b.WriteString(ChatPanelStyle.Width(m.width - 2).Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())

	return b.String()
}

// renderHeader renders the logo and backend status
func (m Model) renderHeader() string {
	logo := LogoStyle.Render(Logo)

	var status string
	switch {
	case !m.checked:
		status = HelpDescStyle.Render("Backend wird geprüft...")
	case m.health.Online:
		info := "Backend verbunden"
		if m.health.AIProvider != "" {
			info += " (" + m.health.AIProvider
			if m.health.UsingWhisper {
				info += ", Whisper"
			}
			info += ")"
		}
		status = StatusOnlineStyle.Render("● " + info)
	default:
		reason := m.health.ErrorMessage
		if reason == "" {
			reason = "offline"
		}
		target := "Backend"
		if m.cfg.BackendURL != "" {
			target += " " + m.cfg.BackendURL
		}
		status = StatusOfflineStyle.Render("○ " + target + ": " + reason)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center, logo, strings.Repeat(" ", 3), status)
	return TitlePanelStyle.Width(m.width - 4).Render(header)
}

// renderVisualizer renders the frequency bars
func (m Model) renderVisualizer() string {
	style := VisualizerPanelStyle
	if m.recording {
		style = RecordingPanelStyle
	}
	return style.Width(m.width - 2).Render(m.cfg.Canvas.View())
}

// renderInput renders the input line or the busy spinner
func (m Model) renderInput() string {
	var content string
	switch {
	case m.recording:
		content = RecordingStyle.Render("● Aufnahme läuft (Ctrl+R beendet)")
	case m.busy:
		content = m.spinner.View() + HelpDescStyle.Render(" "+m.state)
	default:
		content = m.input.View()
	}
	return InputStyle.Width(m.width - 2).Render(content)
}

// renderStatusBar renders state, speech output and device
func (m Model) renderStatusBar() string {
	left := m.icon + " " + m.state
	if m.speaking {
		left += SpeakingStyle.Render(fmt.Sprintf("  🔊 %s", m.backend))
	}
	if m.err != nil {
		left += "  " + ErrorStyle.Render(m.err.Error())
	}

	speech := "Sprachausgabe aus"
	if m.speechOn {
		speech = "Sprachausgabe an"
	}
	right := fmt.Sprintf("%s | Mikrofon: %s | v%s", speech, m.device, version.Client)

	space := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if space < 1 {
		space = 1
	}
	return StatusBarStyle.Width(m.width - 2).Render(left + strings.Repeat(" ", space) + right)
}

// renderHelpBar renders the key hints
func (m Model) renderHelpBar() string {
	items := []string{
		RenderKeyHint("Ctrl+R", "Aufnahme"),
		RenderKeyHint("Enter", "senden"),
		RenderKeyHint("Ctrl+S", "Sprachausgabe"),
		RenderKeyHint("Esc", "Stille"),
		RenderKeyHint("Ctrl+D", "Mikrofon"),
		RenderKeyHint("Ctrl+C", "beenden"),
	}
	return strings.Join(items, "  ")
}
