package audio

import "time"

const (
	// SampleRate is the only sample rate accepted by the recognition core.
	SampleRate = 16000

	// Channels is the only channel count accepted by the recognition core.
	Channels = 1

	// BytesPerSample is fixed at 2 for 16-bit little-endian PCM.
	BytesPerSample = 2
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Mono16k is the capture format expected by the recognition core.
var Mono16k = Format{SampleRate: SampleRate, Channels: Channels}

// Frame represents a single chunk of captured audio. Frames are immutable
// once handed to a consumer; the consumer must copy Data if it retains it
// beyond the delivery call.
type Frame struct {
	// PCM16LE audio data.
	Data []byte

	// SampleRate in Hz. The recognition core only accepts 16000.
	SampleRate int

	// Channels: the recognition core only accepts 1 (mono).
	Channels int

	// Timestamp marks when this frame was captured, relative to capture start.
	Timestamp time.Duration
}

// Format returns the frame's sample rate and channel count.
func (f Frame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}

// Duration returns the playback duration of the frame's PCM data.
func (f Frame) Duration() time.Duration {
	return BytesDuration(len(f.Data), f.SampleRate, f.Channels)
}

// BytesDuration converts a PCM16 byte count to a playback duration. Returns 0
// for invalid formats.
func BytesDuration(n, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := n / (BytesPerSample * channels)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// DurationBytes converts a playback duration to a PCM16 byte count, rounded
// down to a whole sample.
func DurationBytes(d time.Duration, sampleRate, channels int) int {
	samples := int(d * time.Duration(sampleRate) / time.Second)
	return samples * BytesPerSample * channels
}
