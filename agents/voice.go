package agents

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"sync"

	pkg "github.com/bt-bridge/voicerag"
	"github.com/bt-bridge/voicerag/shared"
	"go.uber.org/zap"
)

// Session is the imperative side of the realtime connection.
type Session interface {
	StartSession() error
	AddUserAudio(chunk []byte) error
	InputAudioBufferClear() error
	SetSystemPrompt(prompt string) error
}

type AudioPlayer interface {
	Reset() error
	Play(pcm []byte) error
	Stop() error
}

type AudioRecorder interface {
	Start(ctx context.Context) error
	Stop() error
}

type StateListener func(State)

// VoiceAgent owns the session view state and drives the session, the
// microphone and the speaker in response to user actions and server events.
type VoiceAgent struct {
	logger   shared.LoggerAdapter
	session  Session
	player   AudioPlayer
	recorder AudioRecorder

	mu        sync.Mutex
	state     State
	listeners []StateListener
	// toggled is closed when the running toggle finishes.
	toggled chan struct{}
	closed  bool
}

func NewVoiceAgent(logger shared.LoggerAdapter, session Session, player AudioPlayer, recorder AudioRecorder) (*VoiceAgent, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if session == nil {
		return nil, shared.ErrNoSession
	}
	if player == nil {
		return nil, shared.ErrNoAudioPlayer
	}
	if recorder == nil {
		return nil, shared.ErrNoAudioRecorder
	}
	return &VoiceAgent{
		logger:   logger.With(zap.String("component", "agent")),
		session:  session,
		player:   player,
		recorder: recorder,
	}, nil
}

// OnStateChange registers l to receive every new state.
func (a *VoiceAgent) OnStateChange(l StateListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

func (a *VoiceAgent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// update applies fn under the lock and notifies listeners outside it.
func (a *VoiceAgent) update(fn func(State) State) State {
	a.mu.Lock()
	a.state = fn(a.state)
	s := a.state
	listeners := slices.Clone(a.listeners)
	a.mu.Unlock()
	for _, l := range listeners {
		l(s)
	}
	return s
}

// ToggleListening starts a conversation when idle and stops it when recording.
// A toggle issued while another is running returns shared.ErrToggleInProgress.
func (a *VoiceAgent) ToggleListening(ctx context.Context) error {
	recording, _, err := a.claimToggle(false)
	if err != nil {
		a.logger.Warn("toggle ignored", zap.Error(err))
		return err
	}

	if recording {
		err = a.stop()
	} else {
		err = a.start(ctx)
	}
	if err != nil {
		a.logger.Error("toggling listening failed", err, zap.Bool("wasRecording", recording))
	} else {
		a.logger.Info("listening toggled", zap.Bool("recording", !recording))
	}
	a.finishToggle(func(s State) State {
		return s.WithRecording(!recording && err == nil).WithError(err)
	})
	return err
}

// claimToggle marks a toggle as running. When another toggle holds the claim
// it returns shared.ErrToggleInProgress and a channel closed once that toggle
// finishes. A final claim also refuses every later toggle.
func (a *VoiceAgent) claimToggle(final bool) (recording bool, wait <-chan struct{}, err error) {
	a.update(func(s State) State {
		switch {
		case a.closed:
			err = shared.ErrAgentClosed
			return s
		case s.Toggling:
			err = shared.ErrToggleInProgress
			wait = a.toggled
			return s
		}
		recording = s.Recording
		a.toggled = make(chan struct{})
		a.closed = final
		return s.WithToggling(true)
	})
	return recording, wait, err
}

func (a *VoiceAgent) finishToggle(fn func(State) State) {
	a.update(func(s State) State {
		close(a.toggled)
		a.toggled = nil
		return fn(s).WithToggling(false)
	})
}

// start acquires session, capture and playback in order. On failure the
// steps already acquired are released in reverse.
func (a *VoiceAgent) start(ctx context.Context) (err error) {
	var releases []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(releases) - 1; i >= 0; i-- {
			if rerr := releases[i](); rerr != nil {
				err = errors.Join(err, fmt.Errorf("releasing after failed start: %w", rerr))
			}
		}
	}()

	if err = a.session.StartSession(); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	releases = append(releases, a.session.InputAudioBufferClear)

	if err = a.recorder.Start(ctx); err != nil {
		return fmt.Errorf("starting audio capture: %w", err)
	}
	releases = append(releases, a.recorder.Stop)

	if err = a.player.Reset(); err != nil {
		return fmt.Errorf("resetting audio playback: %w", err)
	}
	return nil
}

// stop runs every step even if an earlier one fails.
func (a *VoiceAgent) stop() error {
	var errs []error
	if err := a.recorder.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping audio capture: %w", err))
	}
	if err := a.player.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping audio playback: %w", err))
	}
	if err := a.session.InputAudioBufferClear(); err != nil {
		errs = append(errs, fmt.Errorf("clearing input audio buffer: %w", err))
	}
	return errors.Join(errs...)
}

// Shutdown waits for a running toggle, stops the conversation if one is live
// and refuses later toggles. Calling it again is a no-op.
func (a *VoiceAgent) Shutdown() error {
	for {
		recording, wait, err := a.claimToggle(true)
		if errors.Is(err, shared.ErrAgentClosed) {
			return nil
		}
		if wait != nil {
			<-wait
			continue
		}
		if recording {
			err = a.stop()
		}
		a.finishToggle(func(s State) State {
			return s.WithRecording(false)
		})
		return err
	}
}

// SubmitSystemPrompt forwards prompt verbatim. The view state is untouched.
func (a *VoiceAgent) SubmitSystemPrompt(prompt string) error {
	if err := a.session.SetSystemPrompt(prompt); err != nil {
		a.logger.Error("submitting system prompt failed", err)
		return fmt.Errorf("submitting system prompt: %w", err)
	}
	a.logger.Info("system prompt submitted", zap.Int("length", len(prompt)))
	return nil
}

func (a *VoiceAgent) SelectFile(i int) {
	a.update(func(s State) State { return s.Select(i) })
}

func (a *VoiceAgent) CloseFile() {
	a.update(func(s State) State { return s.CloseSelected() })
}

// Handlers binds the realtime callbacks to this agent.
func (a *VoiceAgent) Handlers() pkg.Handlers {
	return pkg.Handlers{
		OnWebSocketOpen:  a.onWebSocketOpen,
		OnWebSocketClose: a.onWebSocketClose,
		OnWebSocketError: a.onWebSocketError,

		OnReceivedError:                            a.onReceivedError,
		OnReceivedResponseAudioDelta:               a.onReceivedResponseAudioDelta,
		OnReceivedInputAudioBufferSpeechStarted:    a.onReceivedSpeechStarted,
		OnReceivedExtensionMiddleTierToolResponse:  a.onReceivedToolResponse,
		OnReceivedTranscriptResponseDone:           a.onReceivedTranscriptDone,
		OnReceivedInputAudioTranscriptionCompleted: a.onReceivedInputTranscription,
	}
}

func (a *VoiceAgent) onWebSocketOpen() {
	a.logger.Info("websocket connection opened")
	a.update(func(s State) State { return s.WithConnected(true) })
}

func (a *VoiceAgent) onWebSocketClose() {
	a.logger.Info("websocket connection closed")
	a.update(func(s State) State { return s.WithConnected(false) })
}

func (a *VoiceAgent) onWebSocketError(err error) {
	a.logger.Error("websocket error", err)
	a.update(func(s State) State { return s.WithConnected(false).WithError(err) })
}

func (a *VoiceAgent) onReceivedError(p *pkg.ServerEventParamError) {
	a.logger.Error("received error event", p, zap.String("code", p.Code))
	a.update(func(s State) State { return s.WithError(p) })
}

func (a *VoiceAgent) onReceivedResponseAudioDelta(p *pkg.ServerEventParamAudioDelta) {
	if !a.State().Recording {
		a.logger.Trace("dropping audio delta while not recording", zap.String("item_id", p.ItemId))
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(p.Delta)
	if err != nil {
		a.logger.Error("decoding audio delta", err, zap.String("item_id", p.ItemId))
		return
	}
	if err := a.player.Play(pcm); err != nil {
		a.logger.Error("playing audio delta", err)
	}
}

func (a *VoiceAgent) onReceivedSpeechStarted(p *pkg.ServerEventParamSpeechStarted) {
	a.logger.Debug("user speech started", zap.Int("audio_start_ms", p.AudioStartMs))
	if err := a.player.Stop(); err != nil {
		a.logger.Error("stopping audio playback", err)
	}
}

func (a *VoiceAgent) onReceivedToolResponse(p *pkg.ServerEventParamToolResponse) {
	a.logger.Info("received tool response",
		zap.String("tool_name", p.ToolName),
		zap.String("previous_item_id", p.PreviousItemId),
	)
	result, err := ParseToolResult(p.ToolName, p.ToolResult)
	if err != nil {
		a.logger.Error("parsing tool result", err, zap.String("tool_result", p.ToolResult))
		a.update(func(s State) State { return s.WithError(err) })
		return
	}
	files := result.GroundingFiles()
	a.update(func(s State) State { return s.AppendGroundingFiles(files...) })
}

func (a *VoiceAgent) onReceivedTranscriptDone(p *pkg.ServerEventParamTranscriptDone) {
	a.logger.Info("assistant transcript completed", zap.String("transcript", p.Transcript))
	a.update(func(s State) State { return s.AppendAssistantLog(p.Transcript) })
}

func (a *VoiceAgent) onReceivedInputTranscription(p *pkg.ServerEventParamInputAudioTranscriptionCompleted) {
	a.logger.Info("user transcript completed", zap.String("transcript", p.Transcript))
	a.update(func(s State) State { return s.AppendUserLog(p.Transcript) })
}
