package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bt-bridge/voicerag/agents"
	"github.com/bt-bridge/voicerag/shared"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"
)

// Controller is what the TUI drives. *agents.VoiceAgent implements it.
type Controller interface {
	ToggleListening(ctx context.Context) error
	SubmitSystemPrompt(prompt string) error
	SelectFile(i int)
	CloseFile()
	State() agents.State
}

// PanelFocus tracks which part of the screen has keyboard focus.
type PanelFocus int

const (
	FocusControls PanelFocus = iota
	FocusEditor
)

// Model is the root bubbletea model.
type Model struct {
	ctx  context.Context
	ctrl Controller

	editor PromptEditor
	state  agents.State

	focus  PanelFocus
	cursor int
	width  int
	height int

	notice   string
	errorMsg string
	quitting bool
}

func New(ctx context.Context, ctrl Controller) Model {
	m := Model{
		ctx:   ctx,
		ctrl:  ctrl,
		state: ctrl.State(),
		focus: FocusControls,
	}
	m.editor = NewPromptEditor(func(prompt string) tea.Cmd {
		return submitPromptCmd(ctrl, prompt)
	})
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) State() agents.State {
	return m.state
}

func (m Model) Quitting() bool {
	return m.quitting
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.editor.SetWidth(max(20, min(msg.Width-2, 100)))
		return m, nil

	case StateChangedMsg:
		m.setState(msg.State)
		return m, nil

	case ToggleDoneMsg:
		m.setState(m.ctrl.State())
		if errors.Is(msg.Err, shared.ErrToggleInProgress) {
			m.notice = "Still switching, try again in a moment"
			return m, clearNoticeCmd()
		}
		return m, nil

	case PromptSubmittedMsg:
		if msg.Err != nil {
			m.errorMsg = msg.Err.Error()
			return m, nil
		}
		m.errorMsg = ""
		m.notice = "System prompt sent"
		return m, clearNoticeCmd()

	case ClearNoticeMsg:
		m.notice = ""
		return m, nil
	}

	if m.focus == FocusEditor {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setState(s agents.State) {
	m.state = s
	if m.cursor >= len(s.GroundingFiles) {
		m.cursor = max(0, len(s.GroundingFiles)-1)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case KeyCtrlR:
		return m.toggle()
	}

	if m.focus == FocusEditor {
		switch msg.String() {
		case KeyTab, KeyEsc:
			m.focus = FocusControls
			m.editor.Blur()
			return m, nil
		case KeyCtrlS:
			return m, m.editor.Submit()
		}
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case KeyQuit, KeyQuitUpper:
		m.quitting = true
		return m, tea.Quit

	case KeySpace:
		return m.toggle()

	case KeyTab:
		m.focus = FocusEditor
		return m, m.editor.Focus()

	case KeyJ, KeyDown:
		if m.cursor < len(m.state.GroundingFiles)-1 {
			m.cursor++
		}
		return m, nil

	case KeyK, KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case KeyEnter:
		if m.cursor < len(m.state.GroundingFiles) {
			m.ctrl.SelectFile(m.cursor)
			m.setState(m.ctrl.State())
		}
		return m, nil

	case KeyEsc:
		if m.state.Selected != nil {
			m.ctrl.CloseFile()
			m.setState(m.ctrl.State())
		}
		return m, nil
	}
	return m, nil
}

func (m Model) toggle() (tea.Model, tea.Cmd) {
	if m.state.Toggling {
		return m, nil
	}
	m.state = m.state.WithToggling(true)
	return m, toggleCmd(m.ctx, m.ctrl)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderEditor())
	sections = append(sections, m.renderRecordButton()+"  "+m.renderStatusMessage())
	sections = append(sections, DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderGroundingFiles())
	sections = append(sections, DividerStyle.Render(strings.Repeat("─", m.width)))
	if m.state.Selected != nil {
		sections = append(sections, m.renderViewer())
	} else {
		sections = append(sections, m.renderTranscript())
	}
	if bar := m.renderErrorBar(); bar != "" {
		sections = append(sections, bar)
	}
	if m.notice != "" {
		sections = append(sections, NoticeStyle.Render(m.notice))
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("VOICERAG") + SubtitleStyle.Render(" talk to your data")
	if m.state.Connected {
		return title + "  " + ConnectedStyle.Render("● connected")
	}
	return title + "  " + DisconnectedStyle.Render("○ offline")
}

func (m Model) renderEditor() string {
	label := PanelTitleStyle.Render("SYSTEM PROMPT")
	if m.focus == FocusEditor {
		label = PanelTitleActiveStyle.Render("SYSTEM PROMPT") + DimStyle.Render("  ctrl+s send")
	}
	return label + "\n" + m.editor.View()
}

func (m Model) renderRecordButton() string {
	switch {
	case m.state.Toggling:
		return BusyButtonStyle.Render("… working")
	case m.state.Recording:
		return StopButtonStyle.Render("■ Stop conversation")
	}
	return StartButtonStyle.Render("● Start conversation")
}

func (m Model) renderStatusMessage() string {
	if m.state.Recording {
		return StatusStyle.Render("Conversation in progress")
	}
	return StatusStyle.Render("Ask anything about your documents")
}

func (m Model) renderGroundingFiles() string {
	files := m.state.GroundingFiles
	lines := []string{PanelTitleStyle.Render(fmt.Sprintf("SOURCES (%d)", len(files)))}
	if len(files) == 0 {
		lines = append(lines, DimStyle.Render("  Sources cited by the assistant appear here"))
		return strings.Join(lines, "\n")
	}
	for i, f := range files {
		name := truncateToWidth(f.Name, max(10, m.width-4))
		if i == m.cursor && m.focus == FocusControls {
			lines = append(lines, SelectedStyle.Render("> "+name))
		} else {
			lines = append(lines, "  "+name)
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderViewer() string {
	f := m.state.Selected
	width := max(20, m.width-4)
	body := strings.Join(wrapText(f.Content, width), "\n")
	header := PanelTitleActiveStyle.Render(f.Name) + DimStyle.Render("  "+f.ID)
	return ViewerStyle.Width(width).Render(header + "\n\n" + body)
}

func (m Model) renderTranscript() string {
	lines := []string{PanelTitleStyle.Render("TRANSCRIPTION")}
	logs := m.state.Logs
	if len(logs) == 0 {
		lines = append(lines, DimStyle.Render("  No conversation yet"))
		return strings.Join(lines, "\n")
	}
	visible := m.transcriptVisibleLines()
	if len(logs) > visible {
		logs = logs[len(logs)-visible:]
	}
	for _, l := range logs {
		l = truncateToWidth(l, max(10, m.width))
		if strings.HasPrefix(l, agents.LogPrefixAssistant) {
			lines = append(lines, AssistantLogStyle.Render(l))
		} else {
			lines = append(lines, UserLogStyle.Render(l))
		}
	}
	return strings.Join(lines, "\n")
}

// transcriptVisibleLines is what is left after the fixed sections.
func (m Model) transcriptVisibleLines() int {
	used := 12 + max(1, len(m.state.GroundingFiles))
	return max(3, m.height-used)
}

func (m Model) renderErrorBar() string {
	msg := m.errorMsg
	if msg == "" {
		msg = m.state.LastError
	}
	if msg == "" {
		return ""
	}
	return ErrorStyle.Render("Error: ") + ErrorTextStyle.Render(msg)
}

func (m Model) renderFooter() string {
	var parts []string
	if m.focus == FocusEditor {
		parts = append(parts, FooterKeyStyle.Render("ctrl+s")+FooterDescStyle.Render(" Send"))
		parts = append(parts, FooterKeyStyle.Render("Tab/Esc")+FooterDescStyle.Render(" Leave editor"))
		parts = append(parts, FooterKeyStyle.Render("ctrl+r")+FooterDescStyle.Render(" Record"))
		parts = append(parts, FooterKeyStyle.Render("ctrl+c")+FooterDescStyle.Render(" Quit"))
		return strings.Join(parts, "  ")
	}
	if m.state.Recording {
		parts = append(parts, FooterKeyStyle.Render("Space")+FooterDescStyle.Render(" Stop"))
	} else {
		parts = append(parts, FooterKeyStyle.Render("Space")+FooterDescStyle.Render(" Record"))
	}
	parts = append(parts, FooterKeyStyle.Render("Tab")+FooterDescStyle.Render(" Edit prompt"))
	parts = append(parts, FooterKeyStyle.Render("j/k")+FooterDescStyle.Render(" Nav"))
	parts = append(parts, FooterKeyStyle.Render("Enter")+FooterDescStyle.Render(" Open"))
	if m.state.Selected != nil {
		parts = append(parts, FooterKeyStyle.Render("Esc")+FooterDescStyle.Render(" Close"))
	}
	parts = append(parts, FooterKeyStyle.Render("q")+FooterDescStyle.Render(" Quit"))
	return strings.Join(parts, "  ")
}

// Helpers

func truncateToWidth(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
