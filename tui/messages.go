package tui

import (
	"context"
	"time"

	"github.com/bt-bridge/voicerag/agents"
	tea "github.com/charmbracelet/bubbletea"
)

// StateChangedMsg carries a new agent state snapshot.
type StateChangedMsg struct {
	State agents.State
}

// ToggleDoneMsg reports the end of a start/stop toggle.
type ToggleDoneMsg struct {
	Err error
}

// PromptSubmittedMsg reports the outcome of a system prompt update.
type PromptSubmittedMsg struct {
	Prompt string
	Err    error
}

// ClearNoticeMsg clears a transient notice after a timeout.
type ClearNoticeMsg struct{}

func toggleCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return ToggleDoneMsg{Err: ctrl.ToggleListening(ctx)}
	}
}

func submitPromptCmd(ctrl Controller, prompt string) tea.Cmd {
	return func() tea.Msg {
		return PromptSubmittedMsg{Prompt: prompt, Err: ctrl.SubmitSystemPrompt(prompt)}
	}
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return ClearNoticeMsg{}
	})
}
