package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bt-bridge/voicerag/shared"
	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/mediadevices/pkg/wave"
	"go.uber.org/zap"
)

const (
	maxConsecutiveReadErrors = 10
	readRetryDelay           = 50 * time.Millisecond
)

// AudioHandler receives little-endian PCM16 mono chunks.
type AudioHandler func(chunk []byte)

// Recorder captures the default microphone and hands PCM16 chunks to a callback.
type Recorder struct {
	logger          shared.LoggerAdapter
	sampleRate      int
	onAudioRecorded AudioHandler

	mu     sync.Mutex
	track  mediadevices.Track
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRecorder(logger shared.LoggerAdapter, cfg shared.AudioConfig, onAudioRecorded AudioHandler) (*Recorder, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if onAudioRecorded == nil {
		return nil, errors.New("audio handler is required")
	}
	return &Recorder{
		logger:          logger.With(zap.String("component", "recorder")),
		sampleRate:      cfg.SampleRate,
		onAudioRecorded: onAudioRecorded,
	}, nil
}

// Start opens the microphone and streams until ctx ends or Stop is called.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.track != nil {
		return shared.ErrRecorderAlreadyActive
	}
	micStream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(r.sampleRate)
			c.ChannelCount = prop.Int(1)
			c.SampleSize = prop.Int(16)
		},
		Codec: mediadevices.NewCodecSelector(),
	})
	if err != nil {
		return fmt.Errorf("getting microphone stream: %w", err)
	}
	tracks := micStream.GetAudioTracks()
	if len(tracks) == 0 {
		return errors.New("no audio track found in microphone stream")
	}
	audioTrack, ok := tracks[0].(*mediadevices.AudioTrack)
	if !ok {
		_ = tracks[0].Close()
		return fmt.Errorf("unexpected track type %T", tracks[0])
	}

	ctx, cancel := context.WithCancel(ctx)
	r.track = audioTrack
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.stream(ctx, audioTrack.NewReader(false), r.done)
	r.logger.Info("microphone opened", zap.Int("sampleRate", r.sampleRate))
	return nil
}

// stream delivers chunks until ctx ends, the reader hits EOF or reads keep
// failing maxConsecutiveReadErrors times in a row.
func (r *Recorder) stream(ctx context.Context, reader audio.Reader, done chan struct{}) {
	defer close(done)
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		chunk, release, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			failures++
			r.logger.Error("reading from microphone", err, zap.Int("consecutiveFailures", failures))
			if failures >= maxConsecutiveReadErrors {
				r.logger.Warn("giving up on microphone after repeated read errors")
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		failures = 0
		pcm := encodeChunk(chunk)
		release()
		if pcm == nil {
			r.logger.Warn("unsupported audio chunk", zap.String("type", fmt.Sprintf("%T", chunk)))
			continue
		}
		if len(pcm) > 0 {
			r.onAudioRecorded(pcm)
		}
	}
}

// encodeChunk returns nil for sample formats it does not know.
func encodeChunk(chunk wave.Audio) []byte {
	switch c := chunk.(type) {
	case *wave.Int16Interleaved:
		return Int16ToPCM16(DownmixFirstChannel(c.Data, c.Size.Channels))
	case *wave.Float32Interleaved:
		return Float32ToPCM16(DownmixFirstChannel(c.Data, c.Size.Channels))
	}
	return nil
}

// Stop closes the microphone and waits for the reader goroutine to exit.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	track, cancel, done := r.track, r.cancel, r.done
	r.track, r.cancel, r.done = nil, nil, nil
	r.mu.Unlock()
	if track == nil {
		return nil
	}
	cancel()
	err := track.Close()
	<-done
	r.logger.Info("microphone closed")
	if err != nil {
		return fmt.Errorf("closing microphone track: %w", err)
	}
	return nil
}
