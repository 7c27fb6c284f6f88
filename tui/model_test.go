package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bt-bridge/voicerag/agents"
	"github.com/bt-bridge/voicerag/shared"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu        sync.Mutex
	state     agents.State
	toggles   int
	toggleErr error
	prompts   []string
	promptErr error
}

func (f *fakeController) ToggleListening(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	if f.toggleErr == nil {
		f.state = f.state.WithRecording(!f.state.Recording)
	}
	return f.toggleErr
}

func (f *fakeController) SubmitSystemPrompt(prompt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.promptErr
}

func (f *fakeController) SelectFile(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = f.state.Select(i)
}

func (f *fakeController) CloseFile() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = f.state.CloseSelected()
}

func (f *fakeController) State() agents.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func newTestModel(ctrl *fakeController) Model {
	m := New(context.Background(), ctrl)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return updated.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case KeySpace:
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	case KeyTab:
		return tea.KeyMsg{Type: tea.KeyTab}
	case KeyEsc:
		return tea.KeyMsg{Type: tea.KeyEsc}
	case KeyEnter:
		return tea.KeyMsg{Type: tea.KeyEnter}
	case KeyCtrlS:
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case KeyCtrlR:
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case KeyCtrlC:
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds a key. For toggle and submit keys it also runs the returned
// command and feeds its result back; editor commands are cursor blinks.
func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	runs := k == KeyCtrlR || k == KeyCtrlS || (k == KeySpace && m.focus == FocusControls)
	updated, cmd := m.Update(key(k))
	m = updated.(Model)
	if cmd == nil || !runs {
		return m
	}
	msg := cmd()
	switch msg.(type) {
	case ToggleDoneMsg, PromptSubmittedMsg:
		updated, _ = m.Update(msg)
		return updated.(Model)
	}
	return m
}

func withFiles(n int) agents.State {
	var files []agents.GroundingFile
	for i := range n {
		files = append(files, agents.GroundingFile{
			ID:      string(rune('a' + i)),
			Name:    "Doc " + string(rune('A'+i)),
			Content: "content " + string(rune('a'+i)),
		})
	}
	return agents.State{}.AppendGroundingFiles(files...)
}

func TestNewModel(t *testing.T) {
	m := New(context.Background(), &fakeController{})
	assert.Equal(t, FocusControls, m.focus)
	assert.False(t, m.State().Recording)
	assert.Equal(t, "Initializing...", m.View())
}

func TestSpaceTogglesListening(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl)

	m = press(t, m, KeySpace)
	assert.Equal(t, 1, ctrl.toggles)
	assert.True(t, m.State().Recording)

	m = press(t, m, KeySpace)
	assert.Equal(t, 2, ctrl.toggles)
	assert.False(t, m.State().Recording)
}

func TestToggleIgnoredWhileToggling(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl)

	updated, cmd := m.Update(key(KeySpace))
	require.NotNil(t, cmd)
	m = updated.(Model)
	assert.True(t, m.State().Toggling)

	_, second := m.Update(key(KeySpace))
	assert.Nil(t, second)
}

func TestToggleInProgressShowsNotice(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl)

	updated, cmd := m.Update(ToggleDoneMsg{Err: shared.ErrToggleInProgress})
	m = updated.(Model)

	assert.NotNil(t, cmd)
	assert.NotEmpty(t, m.notice)
}

func TestStateChangedMsgReplacesState(t *testing.T) {
	m := newTestModel(&fakeController{})
	s := agents.State{}.AppendAssistantLog("hi").AppendUserLog("hello").WithConnected(true)

	updated, _ := m.Update(StateChangedMsg{State: s})
	m = updated.(Model)

	assert.Equal(t, s, m.State())
	view := m.View()
	assert.Contains(t, view, "[AI Assistant]: hi")
	assert.Contains(t, view, "[User]: hello")
	assert.Contains(t, view, "connected")
}

func TestFileNavigationAndViewer(t *testing.T) {
	ctrl := &fakeController{state: withFiles(3)}
	m := newTestModel(ctrl)

	m = press(t, m, KeyJ)
	m = press(t, m, KeyJ)
	m = press(t, m, KeyJ)
	assert.Equal(t, 2, m.cursor)

	m = press(t, m, KeyK)
	m = press(t, m, KeyEnter)
	require.NotNil(t, m.State().Selected)
	assert.Equal(t, "b", m.State().Selected.ID)
	assert.Contains(t, m.View(), "content b")

	m = press(t, m, KeyEsc)
	assert.Nil(t, m.State().Selected)
	assert.NotContains(t, m.View(), "content b")
}

func TestCursorClampedWhenFilesShrink(t *testing.T) {
	m := newTestModel(&fakeController{state: withFiles(3)})
	m.cursor = 2

	updated, _ := m.Update(StateChangedMsg{State: withFiles(1)})

	assert.Equal(t, 0, updated.(Model).cursor)
}

func TestEditorSubmitForwardsPrompt(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl)

	m = press(t, m, KeyTab)
	require.Equal(t, FocusEditor, m.focus)
	m = press(t, m, "be brief")
	m = press(t, m, KeyCtrlS)

	assert.Equal(t, []string{"be brief"}, ctrl.prompts)
	assert.Equal(t, "be brief", m.editor.Value())
	assert.Equal(t, "System prompt sent", m.notice)
}

func TestEditorBlankSubmitSendsNothing(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl)

	m = press(t, m, KeyTab)
	m = press(t, m, KeySpace)
	m = press(t, m, KeyCtrlS)

	assert.Empty(t, ctrl.prompts)
	assert.Zero(t, ctrl.toggles)
}

func TestEditorSubmitErrorIsShown(t *testing.T) {
	ctrl := &fakeController{promptErr: errors.New("not connected")}
	m := newTestModel(ctrl)

	m = press(t, m, KeyTab)
	m = press(t, m, "x")
	m = press(t, m, KeyCtrlS)

	assert.Contains(t, m.View(), "not connected")
}

func TestEditorKeysDoNotQuit(t *testing.T) {
	m := newTestModel(&fakeController{})
	m = press(t, m, KeyTab)

	updated, _ := m.Update(key(KeyQuit))
	m = updated.(Model)

	assert.False(t, m.Quitting())
	assert.Equal(t, "q", m.editor.Value())
}

func TestCtrlRTogglesFromEditor(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl)
	m = press(t, m, KeyTab)

	m = press(t, m, KeyCtrlR)

	assert.Equal(t, 1, ctrl.toggles)
	assert.True(t, m.State().Recording)
}

func TestQuit(t *testing.T) {
	m := newTestModel(&fakeController{})

	updated, cmd := m.Update(key(KeyQuit))

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, updated.(Model).Quitting())
}

func TestLastErrorRendered(t *testing.T) {
	m := newTestModel(&fakeController{})

	updated, _ := m.Update(StateChangedMsg{State: agents.State{}.WithError(errors.New("parsing tool result"))})

	assert.Contains(t, updated.(Model).View(), "Error: ")
	assert.True(t, strings.Contains(updated.(Model).View(), "parsing tool result"))
}

func TestTranscriptShowsNewestLines(t *testing.T) {
	s := agents.State{}
	for i := range 50 {
		s = s.AppendAssistantLog(string(rune('A' + i%26)))
	}
	m := newTestModel(&fakeController{})
	updated, _ := m.Update(StateChangedMsg{State: s})
	view := updated.(Model).View()

	assert.Contains(t, view, "[AI Assistant]: X")
	assert.NotContains(t, view, "[AI Assistant]: A\n")
}
