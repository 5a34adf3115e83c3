package audio_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/voxkey/pkg/audio"
)

func toInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}

// convert runs one chunk through c and returns the samples.
func convert(t *testing.T, c *audio.Converter, pcm []byte) []int16 {
	t.Helper()
	out, err := c.Convert(pcm)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	return toInt16(out)
}

func TestNewConverter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      audio.Format
		wantErr bool
	}{
		{name: "16k mono", in: audio.Mono16k},
		{name: "48k stereo", in: audio.Format{SampleRate: 48000, Channels: 2}},
		{name: "zero rate", in: audio.Format{SampleRate: 0, Channels: 1}, wantErr: true},
		{name: "absurd rate", in: audio.Format{SampleRate: 1_000_000, Channels: 1}, wantErr: true},
		{name: "no channels", in: audio.Format{SampleRate: 16000, Channels: 0}, wantErr: true},
		{name: "too many channels", in: audio.Format{SampleRate: 16000, Channels: 9}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := audio.NewConverter(tt.in)
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, audio.ErrUnsupportedFormat) {
				t.Errorf("err = %v, want ErrUnsupportedFormat", err)
			}
		})
	}
}

func TestConverter_Passthrough(t *testing.T) {
	c, err := audio.NewConverter(audio.Mono16k)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Passthrough() {
		t.Fatal("16 kHz mono is not passthrough")
	}
	in := audio.FromInt16([]int16{1, 2, 3})
	if got := convert(t, c, in); len(got) != 3 || got[2] != 3 {
		t.Errorf("Convert = %v", got)
	}
}

func TestConverter_CarriesPartialSamples(t *testing.T) {
	c, err := audio.NewConverter(audio.Format{SampleRate: 16000, Channels: 2})
	if err != nil {
		t.Fatal(err)
	}
	stereo := audio.FromInt16([]int16{100, 300, -100, -300})

	got := append(convert(t, c, stereo[:5]), convert(t, c, stereo[5:])...)
	want := []int16{200, -200}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("samples = %v, want %v", got, want)
	}
}

func TestConverter_Downsample48kStereo(t *testing.T) {
	c, err := audio.NewConverter(audio.Format{SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatal(err)
	}

	// 100 ms of a constant signal, sent in uneven chunks.
	samples := make([]int16, 4800*2)
	for i := range samples {
		samples[i] = 1000
	}
	pcm := audio.FromInt16(samples)

	var out []int16
	for _, cut := range [][2]int{{0, 1000}, {1000, 7001}, {7001, len(pcm)}} {
		out = append(out, convert(t, c, pcm[cut[0]:cut[1]])...)
	}
	if len(out) < 1598 || len(out) > 1600 {
		t.Fatalf("output samples = %d, want about 1600", len(out))
	}
	for i, s := range out {
		if s != 1000 {
			t.Fatalf("sample %d = %d, want 1000", i, s)
		}
	}
}

func TestConverter_UpsampleInterpolates(t *testing.T) {
	c, err := audio.NewConverter(audio.Format{SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	got := convert(t, c, audio.FromInt16([]int16{0, 100, 200}))
	want := []int16{0, 50, 100, 150}
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}

	// The next chunk continues from the last sample without a seam.
	got = convert(t, c, audio.FromInt16([]int16{300}))
	want = []int16{200, 250}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("next chunk = %v, want %v", got, want)
	}
}

func TestConverter_HighQuality(t *testing.T) {
	c, err := audio.NewConverter(audio.Format{SampleRate: 48000, Channels: 2}, audio.WithQuality(audio.QualityHigh))
	if err != nil {
		t.Fatal(err)
	}

	// 200 ms of a constant signal in 20 ms chunks.
	chunk := make([]int16, 960*2)
	for i := range chunk {
		chunk[i] = 8000
	}
	var out []int16
	for range 10 {
		out = append(out, convert(t, c, audio.FromInt16(chunk))...)
	}
	// The filter holds back its delay line, so fewer than 3200 samples
	// come out.
	if len(out) < 1600 || len(out) > 3210 {
		t.Fatalf("output samples = %d, want close to 3200", len(out))
	}
	if mid := out[len(out)/2]; mid < 7600 || mid > 8400 {
		t.Errorf("steady-state sample = %d, want about 8000", mid)
	}
}

func TestConverter_HighQualityPassthroughRate(t *testing.T) {
	c, err := audio.NewConverter(audio.Format{SampleRate: 16000, Channels: 2}, audio.WithQuality(audio.QualityHigh))
	if err != nil {
		t.Fatal(err)
	}
	if got := convert(t, c, audio.FromInt16([]int16{10, 30, 50, 70})); len(got) != 2 || got[0] != 20 || got[1] != 60 {
		t.Errorf("samples = %v, want [20 60]", got)
	}
}

func TestDownmix(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		channels int
		want     []int16
	}{
		{name: "stereo", in: []int16{100, 200, -100, -200}, channels: 2, want: []int16{150, -150}},
		{name: "no overflow", in: []int16{32767, 32767}, channels: 2, want: []int16{32767}},
		{name: "quad", in: []int16{4, 8, 12, 16}, channels: 4, want: []int16{10}},
		{name: "bad channels", in: []int16{1}, channels: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.Downmix(audio.FromInt16(tt.in), tt.channels)
			if len(got) != len(tt.want) {
				t.Fatalf("Downmix = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}
