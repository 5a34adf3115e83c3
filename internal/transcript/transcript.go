// Package transcript post-processes the final text of a recognition session.
//
// A session runs its processors in order on the final transcript only;
// partial results are never touched. Each [Processor] must be safe for
// concurrent use because one instance may serve sessions on several
// connections.
//
// Two processors ship with the module:
//
//   - [VocabularyCorrector] replaces phrases that sound like a configured
//     domain term with that term (see package phonetic).
//   - polish.Polisher rewrites the text through an OpenAI-compatible chat
//     model.
package transcript

import "context"

// Processor transforms a final transcript. On error the caller keeps the
// text it passed in.
type Processor interface {
	Process(ctx context.Context, text string) (string, error)
}

// ProcessorFunc adapts a plain function to [Processor].
type ProcessorFunc func(ctx context.Context, text string) (string, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Correction captures a single substitution.
type Correction struct {
	// Original is the phrase as recognised.
	Original string

	// Corrected is the vocabulary term that replaced it.
	Corrected string

	// Confidence is the match score (0.0-1.0).
	Confidence float64
}
