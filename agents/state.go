package agents

import "slices"

const (
	LogPrefixAssistant = "[AI Assistant]: "
	LogPrefixUser      = "[User]: "
)

// GroundingFile is a source chunk referenced by a tool call.
type GroundingFile struct {
	ID      string
	Name    string
	Content string
}

// State is the view state of a voice session. Transitions never mutate the
// receiver; they return a copy so snapshots handed out stay stable.
type State struct {
	Recording      bool
	Connected      bool
	Toggling       bool
	GroundingFiles []GroundingFile
	Selected       *GroundingFile
	Logs           []string
	LastError      string
}

func (s State) clone() State {
	s.GroundingFiles = slices.Clone(s.GroundingFiles)
	s.Logs = slices.Clone(s.Logs)
	if s.Selected != nil {
		f := *s.Selected
		s.Selected = &f
	}
	return s
}

func (s State) WithRecording(recording bool) State {
	s = s.clone()
	s.Recording = recording
	return s
}

func (s State) WithConnected(connected bool) State {
	s = s.clone()
	s.Connected = connected
	return s
}

func (s State) WithToggling(toggling bool) State {
	s = s.clone()
	s.Toggling = toggling
	return s
}

// AppendGroundingFiles keeps prior entries; duplicates are not filtered.
func (s State) AppendGroundingFiles(files ...GroundingFile) State {
	s = s.clone()
	s.GroundingFiles = append(s.GroundingFiles, files...)
	return s
}

// Select picks the grounding file at i. Out of range leaves the state unchanged.
func (s State) Select(i int) State {
	if i < 0 || i >= len(s.GroundingFiles) {
		return s
	}
	s = s.clone()
	f := s.GroundingFiles[i]
	s.Selected = &f
	return s
}

func (s State) CloseSelected() State {
	s = s.clone()
	s.Selected = nil
	return s
}

func (s State) AppendAssistantLog(transcript string) State {
	return s.appendLog(LogPrefixAssistant + transcript)
}

func (s State) AppendUserLog(transcript string) State {
	return s.appendLog(LogPrefixUser + transcript)
}

func (s State) appendLog(line string) State {
	s = s.clone()
	s.Logs = append(s.Logs, line)
	return s
}

func (s State) WithError(err error) State {
	s = s.clone()
	if err == nil {
		s.LastError = ""
	} else {
		s.LastError = err.Error()
	}
	return s
}
