package agents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_TransitionsDoNotMutateReceiver(t *testing.T) {
	s := State{}.AppendGroundingFiles(GroundingFile{ID: "a"}).AppendAssistantLog("x")

	next := s.AppendGroundingFiles(GroundingFile{ID: "b"}).AppendUserLog("y").Select(0).WithRecording(true)

	assert.Len(t, s.GroundingFiles, 1)
	assert.Equal(t, []string{"[AI Assistant]: x"}, s.Logs)
	assert.Nil(t, s.Selected)
	assert.False(t, s.Recording)
	assert.Len(t, next.GroundingFiles, 2)
	assert.Equal(t, []string{"[AI Assistant]: x", "[User]: y"}, next.Logs)
	assert.True(t, next.Recording)
}

func TestState_SelectOutOfRange(t *testing.T) {
	s := State{}.AppendGroundingFiles(GroundingFile{ID: "a"})

	assert.Nil(t, s.Select(-1).Selected)
	assert.Nil(t, s.Select(1).Selected)
	assert.Equal(t, "a", s.Select(0).Selected.ID)
	assert.Nil(t, s.Select(0).CloseSelected().Selected)
}

func TestState_WithError(t *testing.T) {
	s := State{}.WithError(errors.New("boom"))
	assert.Equal(t, "boom", s.LastError)
	assert.Empty(t, s.WithError(nil).LastError)
}
