package audio

import (
	"encoding/binary"
	"math"
)

// amplitudeFullScale is the RMS level (in 16-bit PCM units) reported as
// amplitude 1.0. Speech rarely exceeds a quarter of full scale.
const amplitudeFullScale = 8192.0

// ToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. Any trailing odd byte is
// silently ignored.
func ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// FromInt16 encodes samples as 16-bit little-endian PCM.
func FromInt16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// RMS returns the root-mean-square energy of 16-bit PCM audio in PCM units.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Amplitude maps the RMS energy of pcm onto [0, 1] for waveform rendering.
func Amplitude(pcm []byte) float64 {
	return math.Min(1, RMS(pcm)/amplitudeFullScale)
}
