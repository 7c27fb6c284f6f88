package tools

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bt-bridge/voicerag/shared"
	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// Player plays PCM16 deltas on the default output device.
// oto allows a single context per process, so create one Player only.
type Player struct {
	logger shared.LoggerAdapter
	buffer *AudioBuffer
	player *oto.Player

	mu     sync.Mutex
	closed bool
}

func NewPlayer(logger shared.LoggerAdapter, cfg shared.AudioConfig) (*Player, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	otoCtx, ready, err := oto.NewContext(
		&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(cfg.PlaybackBufferMs) * time.Millisecond,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating oto context: %w", err)
	}
	<-ready
	buffer := NewAudioBuffer(FrameBytes(time.Duration(cfg.RingBufferSeconds)*time.Second, cfg.SampleRate, cfg.Channels))
	p := &Player{
		logger: logger.With(zap.String("component", "player")),
		buffer: buffer,
		player: otoCtx.NewPlayer(buffer),
	}
	p.logger.Info("audio output ready",
		zap.Int("sampleRate", cfg.SampleRate),
		zap.Int("channels", cfg.Channels),
	)
	return p, nil
}

// flush drops queued audio in both our buffer and oto's.
func (p *Player) flush() error {
	if _, err := p.player.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("flushing player: %w", err)
	}
	return nil
}

// Reset clears queued audio for a new conversation. Playback starts with
// the first Play.
func (p *Player) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return shared.ErrPlayerClosed
	}
	return p.flush()
}

// Play queues a PCM16 chunk.
func (p *Player) Play(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return shared.ErrPlayerClosed
	}
	if dropped := p.buffer.Write(pcm); dropped > 0 {
		p.logger.Warn("audio buffer dropped data", zap.Int("droppedBytes", dropped))
	}
	if !p.player.IsPlaying() {
		p.player.Play()
	}
	return nil
}

// Stop silences playback at once, dropping whatever is queued.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return shared.ErrPlayerClosed
	}
	p.player.Pause()
	return p.flush()
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.player.Pause()
	if err := p.player.Err(); err != nil {
		p.logger.Error("player reported error", err)
	}
	return p.buffer.Close()
}
