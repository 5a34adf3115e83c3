package asr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestOfflineStream_DecodesAfterInterval(t *testing.T) {
	var calls []int
	s := NewOfflineStream(func(samples []float32) (string, error) {
		calls = append(calls, len(samples))
		return fmt.Sprintf("n=%d", len(samples)), nil
	}, 200*time.Millisecond, nil)

	s.AcceptWaveform(16000, make([]float32, 1600))
	if s.IsReady() {
		t.Fatal("ready after 100 ms of audio with a 200 ms interval")
	}
	s.AcceptWaveform(16000, make([]float32, 1600))
	if !s.IsReady() {
		t.Fatal("not ready after 200 ms of audio")
	}
	if err := s.Decode(); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.IsReady() {
		t.Fatal("still ready after decoding all pending audio")
	}
	if got := s.Text(); got != "n=3200" {
		t.Errorf("Text = %q, want n=3200", got)
	}

	s.AcceptWaveform(16000, make([]float32, 160))
	s.InputFinished()
	if !s.IsReady() {
		t.Fatal("finished stream with pending audio should be ready")
	}
	_ = s.Decode()
	if got := s.Text(); got != "n=3360" {
		t.Errorf("Text = %q, want n=3360", got)
	}
	if len(calls) != 2 {
		t.Errorf("decode calls = %d, want 2", len(calls))
	}
}

func TestOfflineStream_ErrorConsumesPendingAudio(t *testing.T) {
	errBoom := errors.New("boom")
	s := NewOfflineStream(func([]float32) (string, error) { return "", errBoom }, time.Millisecond, nil)
	s.AcceptWaveform(16000, make([]float32, 320))
	if err := s.Decode(); !errors.Is(err, errBoom) {
		t.Fatalf("Decode err = %v, want boom", err)
	}
	if s.IsReady() {
		t.Fatal("failed decode should not leave the stream ready")
	}
}

func TestOfflineStream_RejectsOtherRates(t *testing.T) {
	s := NewOfflineStream(func([]float32) (string, error) { return "", nil }, time.Millisecond, nil)
	s.AcceptWaveform(8000, make([]float32, 320))
	if s.Samples() != 0 {
		t.Errorf("Samples = %d, want 0", s.Samples())
	}
}

func TestOfflineStream_CloseReleasesOnce(t *testing.T) {
	released := 0
	s := NewOfflineStream(func([]float32) (string, error) { return "", nil }, 0, func() { released++ })
	_ = s.Close()
	_ = s.Close()
	if released != 1 {
		t.Errorf("release calls = %d, want 1", released)
	}
	if err := s.Decode(); err == nil {
		t.Error("Decode after Close should fail")
	}
}

func TestModelConfig_Equal(t *testing.T) {
	base := ModelConfig{
		Backend:    BackendSenseVoice,
		TokensPath: "/m/tokens.txt",
		ModelPaths: []string{"/m/model.onnx"},
		Language:   "auto",
		NumThreads: 2,
		Vocabulary: []string{"Kubernetes"},
	}
	tests := []struct {
		name   string
		mutate func(*ModelConfig)
		want   bool
	}{
		{"identical", func(*ModelConfig) {}, true},
		{"model path", func(c *ModelConfig) { c.ModelPaths = []string{"/m/other.onnx"} }, false},
		{"threads", func(c *ModelConfig) { c.NumThreads = 4 }, false},
		{"vocabulary", func(c *ModelConfig) { c.Vocabulary = nil }, false},
		{"backend", func(c *ModelConfig) { c.Backend = BackendParaformer }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			other := base.Clone()
			tc.mutate(&other)
			if got := base.Equal(other); got != tc.want {
				t.Errorf("Equal = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestModelConfig_CloneIsDeep(t *testing.T) {
	c := ModelConfig{ModelPaths: []string{"a"}}
	cp := c.Clone()
	cp.ModelPaths[0] = "b"
	if c.ModelPaths[0] != "a" {
		t.Error("Clone shares the ModelPaths backing array")
	}
}

func TestBackend_IsValid(t *testing.T) {
	for _, b := range Backends {
		if !b.IsValid() {
			t.Errorf("%q should be valid", b)
		}
	}
	if Backend("kaldi").IsValid() {
		t.Error("kaldi should be invalid")
	}
}
