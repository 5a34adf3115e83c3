package sherpa_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/voxkey/pkg/provider/asr"
	"github.com/MrWong99/voxkey/pkg/provider/asr/sherpa"
)

func TestLoader_RejectsWrongComponentCount(t *testing.T) {
	load := sherpa.Loader()
	_, err := load(context.Background(), asr.ModelConfig{
		Backend:    asr.BackendZipformer,
		TokensPath: "/x/tokens.txt",
		ModelPaths: []string{"/x/encoder.onnx"},
	})
	if err == nil {
		t.Fatal("expected error for a single zipformer component")
	}
}

func TestLoader_MissingFiles(t *testing.T) {
	load := sherpa.Loader()
	_, err := load(context.Background(), asr.ModelConfig{
		Backend:    asr.BackendSenseVoice,
		TokensPath: filepath.Join(t.TempDir(), "tokens.txt"),
		ModelPaths: []string{"/nonexistent/model.onnx"},
	})
	if !errors.Is(err, asr.ErrModelFiles) {
		t.Fatalf("err = %v, want ErrModelFiles", err)
	}
}

func TestLoader_UnsupportedBackend(t *testing.T) {
	load := sherpa.Loader()
	if _, err := load(context.Background(), asr.ModelConfig{Backend: asr.BackendWhisper}); err == nil {
		t.Fatal("expected error for whisper on the sherpa loader")
	}
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sherpa.Loader()(ctx, asr.ModelConfig{Backend: asr.BackendSenseVoice}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewPunctuator_EmptyPath(t *testing.T) {
	if _, err := sherpa.NewPunctuator("", 1); err == nil {
		t.Fatal("expected error for empty path")
	}
}

// TestSenseVoice_DecodesSilence runs against a real model directory laid out
// as <dir>/model.int8.onnx and <dir>/tokens.txt.
func TestSenseVoice_DecodesSilence(t *testing.T) {
	dir := os.Getenv("VOXKEY_SHERPA_MODEL_DIR")
	if dir == "" {
		t.Skip("VOXKEY_SHERPA_MODEL_DIR not set; skipping native sherpa test")
	}
	eng, err := sherpa.Loader()(context.Background(), asr.ModelConfig{
		Backend:    asr.BackendSenseVoice,
		TokensPath: filepath.Join(dir, "tokens.txt"),
		ModelPaths: []string{filepath.Join(dir, "model.int8.onnx")},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer eng.Close()

	st, err := eng.NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer st.Close()
	st.AcceptWaveform(16000, make([]float32, 16000))
	st.InputFinished()
	for i := 0; i < 8 && st.IsReady(); i++ {
		if err := st.Decode(); err != nil {
			t.Fatalf("Decode: %v", err)
		}
	}
	if st.IsReady() {
		t.Fatal("stream still ready after decoding")
	}
}
