package audio

import (
	"errors"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// MaxChannels bounds the channel count accepted by [NewConverter].
const MaxChannels = 8

// ErrUnsupportedFormat is returned by [NewConverter] for formats it cannot
// convert.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// Quality selects the resampler used by a [Converter].
type Quality string

const (
	// QualityFast interpolates linearly. It adds no latency.
	QualityFast Quality = "fast"
	// QualityHigh runs a windowed-sinc filter from go-audio-resampling. The
	// filter delays output by a few milliseconds and drops that tail when
	// the stream ends.
	QualityHigh Quality = "high"
)

// IsValid reports whether q is a known quality.
func (q Quality) IsValid() bool { return q == QualityFast || q == QualityHigh }

// Converter turns PCM16LE audio of a fixed input format into the 16 kHz mono
// format expected by the recognition core. Channels are averaged first, then
// the mono signal is resampled.
//
// A Converter keeps resampler state and partial sample frames across chunks,
// so consecutive chunks of one stream convert without seams. It is not safe
// for concurrent use; create one per stream.
type Converter struct {
	in    Format
	rs    resampler
	carry []byte
}

type resampler interface {
	resample(mono []int16) ([]int16, error)
}

// ConverterOption configures a [Converter].
type ConverterOption func(*converterOptions)

type converterOptions struct{ quality Quality }

// WithQuality selects the resampler. Default: [QualityFast].
func WithQuality(q Quality) ConverterOption {
	return func(o *converterOptions) {
		if q.IsValid() {
			o.quality = q
		}
	}
}

// NewConverter returns a converter from in to [Mono16k].
func NewConverter(in Format, opts ...ConverterOption) (*Converter, error) {
	if in.SampleRate < 8000 || in.SampleRate > 192000 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, in.SampleRate)
	}
	if in.Channels < 1 || in.Channels > MaxChannels {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, in.Channels)
	}
	o := converterOptions{quality: QualityFast}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Converter{in: in}
	switch {
	case in.SampleRate == SampleRate:
	case o.quality == QualityHigh:
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(in.SampleRate),
			OutputRate: SampleRate,
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("audio: resampler %d Hz: %w", in.SampleRate, err)
		}
		c.rs = &sincResampler{r: r}
	default:
		c.rs = &linearResampler{step: float64(in.SampleRate) / SampleRate}
	}
	return c, nil
}

// Passthrough reports whether input already is 16 kHz mono.
func (c *Converter) Passthrough() bool { return c.in == Mono16k }

// Convert converts one chunk. Trailing bytes that do not form a whole
// sample frame are kept for the next call.
func (c *Converter) Convert(pcm []byte) ([]byte, error) {
	frameBytes := BytesPerSample * c.in.Channels
	if len(c.carry) > 0 {
		pcm = append(c.carry, pcm...)
		c.carry = nil
	}
	if rest := len(pcm) % frameBytes; rest != 0 {
		c.carry = append([]byte(nil), pcm[len(pcm)-rest:]...)
		pcm = pcm[:len(pcm)-rest]
	}
	if c.Passthrough() {
		return pcm, nil
	}
	mono := Downmix(pcm, c.in.Channels)
	if c.rs == nil || len(mono) == 0 {
		return FromInt16(mono), nil
	}
	out, err := c.rs.resample(mono)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}
	return FromInt16(out), nil
}

// linearResampler interpolates between neighbouring samples. pos is the
// read position relative to the start of the next chunk; it is negative
// while it still points into prev.
type linearResampler struct {
	step    float64
	pos     float64
	prev    int16
	hasPrev bool
}

func (l *linearResampler) resample(mono []int16) ([]int16, error) {
	at := func(i int) int16 {
		if i < 0 {
			return l.prev
		}
		return mono[i]
	}
	if !l.hasPrev {
		l.prev = mono[0]
		l.hasPrev = true
	}

	out := make([]int16, 0, int(float64(len(mono))/l.step)+1)
	last := float64(len(mono) - 1)
	for l.pos < last {
		i := int(l.pos)
		if l.pos < 0 {
			i = -1
		}
		frac := l.pos - float64(i)
		s0, s1 := float64(at(i)), float64(at(i+1))
		out = append(out, int16(s0+(s1-s0)*frac))
		l.pos += l.step
	}
	l.pos -= float64(len(mono))
	l.prev = mono[len(mono)-1]
	return out, nil
}

type sincResampler struct {
	r resampling.Resampler
}

func (s *sincResampler) resample(mono []int16) ([]int16, error) {
	in := make([]float64, len(mono))
	for i, v := range mono {
		in[i] = float64(v) / 32768
	}
	res, err := s.r.Process(in)
	if err != nil {
		return nil, err
	}
	out := make([]int16, len(res))
	for i, v := range res {
		switch {
		case v >= 1:
			out[i] = 32767
		case v < -1:
			out[i] = -32768
		default:
			out[i] = int16(v * 32767)
		}
	}
	return out, nil
}

// Downmix averages interleaved PCM16LE channels into mono samples.
func Downmix(pcm []byte, channels int) []int16 {
	if channels < 1 {
		return nil
	}
	n := len(pcm) / (BytesPerSample * channels)
	out := make([]int16, n)
	for i := range n {
		var sum int32
		for ch := range channels {
			off := (i*channels + ch) * BytesPerSample
			sum += int32(int16(uint16(pcm[off]) | uint16(pcm[off+1])<<8))
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}
