package tools

import (
	"encoding/binary"
	"math"
	"time"
)

func FrameSamples(duration time.Duration, rate, channels int) int {
	return int(duration.Seconds() * float64(channels) * float64(rate))
}

// FrameBytes is FrameSamples for PCM16.
func FrameBytes(duration time.Duration, rate, channels int) int {
	return FrameSamples(duration, rate, channels) * 2
}

// Int16ToPCM16 encodes samples as little-endian PCM16.
func Int16ToPCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Float32ToPCM16 clamps samples to [-1, 1] and encodes them as little-endian PCM16.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(math.Round(v*math.MaxInt16))))
	}
	return out
}

// DownmixFirstChannel keeps the first channel of interleaved samples.
func DownmixFirstChannel[T int16 | float32](samples []T, channels int) []T {
	if channels <= 1 {
		return samples
	}
	out := make([]T, 0, len(samples)/channels)
	for i := 0; i+channels <= len(samples); i += channels {
		out = append(out, samples[i])
	}
	return out
}
