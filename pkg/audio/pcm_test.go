package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestToFloat32_Empty(t *testing.T) {
	if out := ToFloat32(nil); len(out) != 0 {
		t.Fatalf("expected 0 samples, got %d", len(out))
	}
}

func TestToFloat32_FullScale(t *testing.T) {
	tests := []struct {
		name  string
		value int16
		want  float32
	}{
		{"max positive", 32767, 32767.0 / 32768.0},
		{"max negative", -32768, -1.0},
		{"zero", 0, 0.0},
		{"mid positive", 16384, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pcm := make([]byte, 2)
			binary.LittleEndian.PutUint16(pcm, uint16(tc.value))
			out := ToFloat32(pcm)
			if len(out) != 1 {
				t.Fatalf("expected 1 sample, got %d", len(out))
			}
			if math.Abs(float64(out[0]-tc.want)) > 1e-6 {
				t.Errorf("sample = %f; want %f", out[0], tc.want)
			}
		})
	}
}

func TestToFloat32_OddByteIgnored(t *testing.T) {
	if out := ToFloat32([]byte{0, 0, 1}); len(out) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(out))
	}
}

func TestFromInt16_RoundTripsThroughFloat(t *testing.T) {
	pcm := FromInt16([]int16{-32768, 0, 16384})
	out := ToFloat32(pcm)
	want := []float32{-1, 0, 0.5}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d = %f; want %f", i, out[i], want[i])
		}
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %f; want 0", got)
	}
	pcm := FromInt16([]int16{1000, -1000, 1000, -1000})
	if got := RMS(pcm); math.Abs(got-1000) > 1e-9 {
		t.Errorf("RMS = %f; want 1000", got)
	}
}

func TestAmplitude_Clamped(t *testing.T) {
	loud := FromInt16([]int16{32767, -32768, 32767, -32768})
	if got := Amplitude(loud); got != 1 {
		t.Errorf("Amplitude(loud) = %f; want 1", got)
	}
	quiet := FromInt16([]int16{4096, -4096})
	if got := Amplitude(quiet); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Amplitude(quiet) = %f; want 0.5", got)
	}
}

func TestBytesDuration(t *testing.T) {
	tests := []struct {
		n, rate, ch int
		want        time.Duration
	}{
		{6400, 16000, 1, 200 * time.Millisecond},
		{3200, 16000, 1, 100 * time.Millisecond},
		{3200, 16000, 2, 50 * time.Millisecond},
		{3200, 0, 1, 0},
	}
	for _, tc := range tests {
		if got := BytesDuration(tc.n, tc.rate, tc.ch); got != tc.want {
			t.Errorf("BytesDuration(%d, %d, %d) = %v; want %v", tc.n, tc.rate, tc.ch, got, tc.want)
		}
	}
	if got := DurationBytes(600*time.Millisecond, 16000, 1); got != 19200 {
		t.Errorf("DurationBytes(600ms) = %d; want 19200", got)
	}
}
