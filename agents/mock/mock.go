// Package mock provides in-memory collaborators for the voice agent that
// record every call in order and fail on demand.
package mock

import (
	"context"
	"slices"
	"sync"
)

const (
	CallStartSession          = "session.start"
	CallAddUserAudio          = "session.append"
	CallInputAudioBufferClear = "session.clear"
	CallSetSystemPrompt       = "session.prompt"
	CallRecorderStart         = "recorder.start"
	CallRecorderStop          = "recorder.stop"
	CallPlayerReset           = "player.reset"
	CallPlayerPlay            = "player.play"
	CallPlayerStop            = "player.stop"
)

// Calls is the ordered call log shared by the fakes.
type Calls struct {
	mu    sync.Mutex
	names []string
	errs  map[string]error
}

func NewCalls() *Calls {
	return &Calls{errs: map[string]error{}}
}

// FailOn makes every later call named name return err.
func (c *Calls) FailOn(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[name] = err
}

func (c *Calls) record(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
	return c.errs[name]
}

func (c *Calls) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.names)
}

func (c *Calls) Count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.names {
		if v == name {
			n++
		}
	}
	return n
}

func (c *Calls) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = nil
}

type Session struct {
	*Calls
	mu      sync.Mutex
	prompts []string
	audio   [][]byte
}

func (s *Session) StartSession() error { return s.record(CallStartSession) }

func (s *Session) AddUserAudio(chunk []byte) error {
	s.mu.Lock()
	s.audio = append(s.audio, chunk)
	s.mu.Unlock()
	return s.record(CallAddUserAudio)
}

func (s *Session) InputAudioBufferClear() error { return s.record(CallInputAudioBufferClear) }

func (s *Session) SetSystemPrompt(prompt string) error {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.record(CallSetSystemPrompt)
}

func (s *Session) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.prompts)
}

type Player struct {
	*Calls
	mu     sync.Mutex
	played [][]byte
}

func (p *Player) Reset() error { return p.record(CallPlayerReset) }

func (p *Player) Play(pcm []byte) error {
	p.mu.Lock()
	p.played = append(p.played, pcm)
	p.mu.Unlock()
	return p.record(CallPlayerPlay)
}

func (p *Player) Stop() error { return p.record(CallPlayerStop) }

func (p *Player) Played() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.played)
}

// Recorder blocks Start on Gate when it is set.
type Recorder struct {
	*Calls
	Gate chan struct{}
}

func (r *Recorder) Start(ctx context.Context) error {
	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.record(CallRecorderStart)
}

func (r *Recorder) Stop() error { return r.record(CallRecorderStop) }

// Set bundles fakes that share one call log.
type Set struct {
	Calls    *Calls
	Session  *Session
	Player   *Player
	Recorder *Recorder
}

func NewSet() *Set {
	calls := NewCalls()
	return &Set{
		Calls:    calls,
		Session:  &Session{Calls: calls},
		Player:   &Player{Calls: calls},
		Recorder: &Recorder{Calls: calls},
	}
}
