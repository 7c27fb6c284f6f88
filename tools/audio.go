package tools

import (
	"io"
	"sync"
)

// AudioBuffer is a bounded PCM queue. Writes past capacity drop the oldest
// bytes. Reads never block: an empty buffer reads as silence until closed.
type AudioBuffer struct {
	buffer []byte
	mu     sync.Mutex
	cap    int
	closed bool
}

func NewAudioBuffer(fixedCap int) *AudioBuffer {
	return &AudioBuffer{
		buffer: make([]byte, 0, fixedCap),
		cap:    fixedCap,
	}
}

func (ab *AudioBuffer) Write(data []byte) (dropped int) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	if ab.closed {
		return len(data)
	}
	if len(data) > ab.cap {
		dropped = len(ab.buffer) + len(data) - ab.cap
		ab.buffer = append(ab.buffer[:0], data[len(data)-ab.cap:]...)
		return dropped
	}
	if over := len(ab.buffer) + len(data) - ab.cap; over > 0 {
		ab.buffer = append(ab.buffer[:0], ab.buffer[over:]...)
		dropped = over
	}
	ab.buffer = append(ab.buffer, data...)
	return dropped
}

// Read drains queued bytes. oto may pull synchronously and expects a full
// read, so an empty open buffer fills p with zeros.
func (ab *AudioBuffer) Read(p []byte) (n int, err error) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	if len(ab.buffer) == 0 {
		if ab.closed {
			return 0, io.EOF
		}
		clear(p)
		return len(p), nil
	}
	n = copy(p, ab.buffer)
	ab.buffer = append(ab.buffer[:0], ab.buffer[n:]...)
	return n, nil
}

// Seek discards everything queued regardless of offset. It lets oto flush
// its own buffer together with ours.
func (ab *AudioBuffer) Seek(offset int64, whence int) (int64, error) {
	ab.Reset()
	return 0, nil
}

func (ab *AudioBuffer) Reset() {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.buffer = ab.buffer[:0]
}

func (ab *AudioBuffer) Len() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return len(ab.buffer)
}

// Close ends the stream once queued data has been read.
func (ab *AudioBuffer) Close() error {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.closed = true
	return nil
}
