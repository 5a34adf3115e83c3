package sherpa_test

import (
	"os"
	"testing"

	"github.com/MrWong99/voxkey/pkg/audio"
	"github.com/MrWong99/voxkey/pkg/provider/vad"
	"github.com/MrWong99/voxkey/pkg/provider/vad/sherpa"
)

func TestNew_EmptyPath_ReturnsError(t *testing.T) {
	if _, err := sherpa.New(""); err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewSession_BadThreshold(t *testing.T) {
	e, err := sherpa.New("/nonexistent/silero_vad.onnx")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.NewSession(vad.Config{SpeechThreshold: 0}); err == nil {
		t.Fatal("expected error for zero threshold")
	}
}

func TestSession_SilenceIsNotSpeech(t *testing.T) {
	p := os.Getenv("VOXKEY_SILERO_MODEL")
	if p == "" {
		t.Skip("VOXKEY_SILERO_MODEL not set; skipping native silero test")
	}
	e, err := sherpa.New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h, err := e.NewSession(vad.Config{SampleRate: 16000, SpeechThreshold: 0.5})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer h.Close()

	silence := audio.FromInt16(make([]int16, 3200))
	for i := 0; i < 5; i++ {
		ev, err := h.ProcessFrame(silence)
		if err != nil {
			t.Fatalf("ProcessFrame: %v", err)
		}
		if ev.IsSpeech() {
			t.Fatalf("frame %d: silence classified as speech", i)
		}
	}
}
