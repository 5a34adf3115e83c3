package whisper_test

import (
	"context"
	"os"
	"testing"

	"github.com/MrWong99/voxkey/pkg/provider/asr"
	"github.com/MrWong99/voxkey/pkg/provider/asr/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// If WHISPER_MODEL_PATH is unset the test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNew_EmptyPath_ReturnsError(t *testing.T) {
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNew_InvalidPath_ReturnsError(t *testing.T) {
	if _, err := whisper.New("/nonexistent/path/to/model.bin"); err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
}

func TestLoader_RejectsOtherBackends(t *testing.T) {
	load := whisper.Loader()
	_, err := load(context.Background(), asr.ModelConfig{
		Backend:    asr.BackendSenseVoice,
		ModelPaths: []string{"/x/model.bin"},
	})
	if err == nil {
		t.Fatal("expected error for sensevoice on the whisper loader")
	}
}

func TestLoader_RequiresOneModelFile(t *testing.T) {
	load := whisper.Loader()
	_, err := load(context.Background(), asr.ModelConfig{Backend: asr.BackendWhisper})
	if err == nil {
		t.Fatal("expected error with no model paths")
	}
}

func TestEngine_DecodesSilence(t *testing.T) {
	modelPath := testModelPath(t)
	eng, err := whisper.New(modelPath, whisper.WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	st, err := eng.NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer st.Close()

	st.AcceptWaveform(16000, make([]float32, 16000))
	st.InputFinished()
	if !st.IsReady() {
		t.Fatal("stream not ready after InputFinished")
	}
	if err := st.Decode(); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st.IsReady() {
		t.Error("stream still ready after final decode")
	}
}
