package sound

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	DefaultThreshold  = 0.02
	DefaultSampleRate = 44100
	DefaultWindow     = time.Second
)

// RMS of signed 16-bit samples, normalised to the -1..1 range
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ReadWindow reads n little-endian signed 16-bit mono samples
func ReadWindow(r io.Reader, n int) ([]int16, error) {
	buf := make([]byte, n*2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read pcm window: %w", err)
	}
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return samples, nil
}

// WindowSamples is how many samples one window holds at rate
func WindowSamples(window time.Duration, rate int) int {
	n := int(window.Seconds() * float64(rate))
	if n < 1 {
		return 1
	}
	return n
}
