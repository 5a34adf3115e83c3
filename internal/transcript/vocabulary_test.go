package transcript_test

import (
	"context"
	"testing"

	"github.com/MrWong99/voxkey/internal/transcript"
	"github.com/MrWong99/voxkey/internal/transcript/phonetic"
)

func TestVocabularyCorrector_Correct(t *testing.T) {
	t.Parallel()

	c := transcript.NewVocabularyCorrector([]string{"Eldrinax", "Tower of Whispers", "Kubernetes"})

	tests := []struct {
		name  string
		input string
		want  string
		count int
	}{
		{
			name:  "split word and multi-word term",
			input: "elder nacks lives in the tower of wispers.",
			want:  "Eldrinax lives in the Tower of Whispers.",
			count: 2,
		},
		{
			name:  "nothing to correct",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "already correct",
			input: "Eldrinax waits",
			want:  "Eldrinax waits",
		},
		{
			name:  "CJK text untouched",
			input: "你好 世界",
			want:  "你好 世界",
		},
		{
			name:  "leading punctuation kept",
			input: "deploy to (elder nacks) now",
			want:  "deploy to (Eldrinax) now",
			count: 1,
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, corrections := c.Correct(tt.input)
			if got != tt.want {
				t.Errorf("Correct(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if len(corrections) != tt.count {
				t.Errorf("Correct(%q): %d corrections, want %d (%+v)", tt.input, len(corrections), tt.count, corrections)
			}
		})
	}
}

func TestVocabularyCorrector_CorrectionDetails(t *testing.T) {
	t.Parallel()

	c := transcript.NewVocabularyCorrector([]string{"Eldrinax"})
	_, corrections := c.Correct("ask elder nacks")
	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrections))
	}
	got := corrections[0]
	if got.Original != "elder nacks" || got.Corrected != "Eldrinax" {
		t.Errorf("correction = %+v, want elder nacks -> Eldrinax", got)
	}
	if got.Confidence < 0.7 || got.Confidence > 1 {
		t.Errorf("Confidence = %f, want within [0.7, 1]", got.Confidence)
	}
}

func TestVocabularyCorrector_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	c := transcript.NewVocabularyCorrector(nil)
	got, err := c.Process(context.Background(), "elder nacks")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got != "elder nacks" {
		t.Errorf("Process = %q, want input unchanged", got)
	}
}

func TestVocabularyCorrector_Options(t *testing.T) {
	t.Parallel()

	strict := transcript.NewVocabularyCorrector(
		[]string{"Eldrinax"},
		transcript.WithMatcher(phonetic.New(
			phonetic.WithPhoneticThreshold(0.99),
			phonetic.WithFuzzyThreshold(0.99),
		)),
	)
	if got, _ := strict.Correct("elder nacks"); got != "elder nacks" {
		t.Errorf("strict matcher corrected to %q", got)
	}

	long := transcript.NewVocabularyCorrector([]string{"Eldrinax"}, transcript.WithMinPhraseLength(20))
	if got, _ := long.Correct("elder nacks"); got != "elder nacks" {
		t.Errorf("min phrase length 20 corrected to %q", got)
	}
}

func TestProcessorFunc(t *testing.T) {
	t.Parallel()

	var p transcript.Processor = transcript.ProcessorFunc(func(_ context.Context, text string) (string, error) {
		return text + "!", nil
	})
	got, err := p.Process(context.Background(), "hi")
	if err != nil || got != "hi!" {
		t.Errorf("Process = %q, %v; want hi!, nil", got, err)
	}
}
