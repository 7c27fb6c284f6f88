package shared

import "errors"

var (
	ErrNoLogger              = errors.New("no logger provided")
	ErrNoConfig              = errors.New("no config provided")
	ErrNoEndpoint            = errors.New("no endpoint provided")
	ErrNotConnected          = errors.New("client not connected")
	ErrAlreadyConnected      = errors.New("client already connected")
	ErrNoEventHandler        = errors.New("no event handler provided")
	ErrEHandlerAlreadySet    = errors.New("event handler already set")
	ErrBackendUnreachable    = errors.New("backend unreachable")
	ErrUnknownEvent          = errors.New("unknown event type")
	ErrNoSession             = errors.New("no realtime session provided")
	ErrNoAudioPlayer         = errors.New("no audio player provided")
	ErrNoAudioRecorder       = errors.New("no audio recorder provided")
	ErrToggleInProgress      = errors.New("toggle already in progress")
	ErrAgentClosed           = errors.New("agent shut down")
	ErrRecorderAlreadyActive = errors.New("recorder already active")
	ErrPlayerClosed          = errors.New("player closed")
)
