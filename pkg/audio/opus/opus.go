// Package opus decodes Opus packets into the 16 kHz mono PCM16LE audio the
// recognition core consumes. libopus resamples and downmixes internally, so
// packets of any encoder rate and channel count decode to that format.
package opus

import (
	"errors"
	"fmt"

	"layeh.com/gopus"

	"github.com/MrWong99/voxkey/pkg/audio"
)

// maxFrameSamples is the longest Opus frame, 120 ms, at 16 kHz.
const maxFrameSamples = audio.SampleRate * 120 / 1000

// ErrEmptyPacket is returned for zero-length packets.
var ErrEmptyPacket = errors.New("opus: empty packet")

// Decoder holds the state of one Opus stream. Packets must be decoded in
// order; create one Decoder per stream. It is not safe for concurrent use.
type Decoder struct {
	dec *gopus.Decoder
}

// NewDecoder creates a decoder producing [audio.Mono16k] output.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("opus: create decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decodes one packet and returns its PCM16LE samples.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	if len(packet) == 0 {
		return nil, ErrEmptyPacket
	}
	pcm, err := d.dec.Decode(packet, maxFrameSamples, false)
	if err != nil {
		return nil, fmt.Errorf("opus: decode: %w", err)
	}
	return audio.FromInt16(pcm), nil
}
