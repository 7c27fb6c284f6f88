package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
)

const promptPlaceholder = "Type a system prompt for the assistant..."

// SubmitFunc receives the prompt text on submission.
type SubmitFunc func(prompt string) tea.Cmd

// PromptEditor is a multi-line system prompt input. Submitting never clears it.
type PromptEditor struct {
	input    textarea.Model
	onSubmit SubmitFunc
}

func NewPromptEditor(onSubmit SubmitFunc) PromptEditor {
	ta := textarea.New()
	ta.Placeholder = promptPlaceholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(4)
	ta.SetWidth(60)
	return PromptEditor{input: ta, onSubmit: onSubmit}
}

func (e PromptEditor) Value() string {
	return e.input.Value()
}

func (e *PromptEditor) SetValue(s string) {
	e.input.SetValue(s)
}

func (e *PromptEditor) SetWidth(w int) {
	e.input.SetWidth(w)
}

func (e *PromptEditor) Focus() tea.Cmd {
	return e.input.Focus()
}

func (e *PromptEditor) Blur() {
	e.input.Blur()
}

func (e PromptEditor) Focused() bool {
	return e.input.Focused()
}

// Submit passes the raw text to onSubmit. Blank text is ignored.
func (e PromptEditor) Submit() tea.Cmd {
	value := e.input.Value()
	if strings.TrimSpace(value) == "" || e.onSubmit == nil {
		return nil
	}
	return e.onSubmit(value)
}

func (e PromptEditor) Update(msg tea.Msg) (PromptEditor, tea.Cmd) {
	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	return e, cmd
}

func (e PromptEditor) View() string {
	return e.input.View()
}
