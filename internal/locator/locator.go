// Package locator resolves logical model variants to validated model files.
//
// A variant names a model directory below the model root and the files it
// must contain. Each file may have several accepted names (for example the
// int8-quantised and the float export of the same model); the first that
// exists wins.
package locator

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/MrWong99/voxkey/pkg/provider/asr"
)

// ErrNotFound is returned when a variant is unknown or its files are missing.
var ErrNotFound = errors.New("locator: model not found")

// Variant describes the on-disk layout of one model.
type Variant struct {
	Backend asr.Backend

	// Dir is relative to the locator root.
	Dir string

	// Tokens lists accepted tokens file names; empty for models that embed
	// their vocabulary.
	Tokens []string

	// Components lists, per model component in backend order, the accepted
	// file names.
	Components [][]string
}

// DefaultVariants maps variant identifiers to the layouts of the published
// sherpa-onnx and whisper.cpp model archives.
var DefaultVariants = map[string]Variant{
	"sensevoice-small": {
		Backend:    asr.BackendSenseVoice,
		Dir:        "sherpa-onnx-sense-voice-zh-en-ja-ko-yue-2024-07-17",
		Tokens:     []string{"tokens.txt"},
		Components: [][]string{{"model.int8.onnx", "model.onnx"}},
	},
	"paraformer-zh": {
		Backend:    asr.BackendParaformer,
		Dir:        "sherpa-onnx-paraformer-zh-2024-03-09",
		Tokens:     []string{"tokens.txt"},
		Components: [][]string{{"model.int8.onnx", "model.onnx"}},
	},
	"telespeech-ctc": {
		Backend:    asr.BackendTeleSpeech,
		Dir:        "sherpa-onnx-telespeech-ctc-int8-zh-2024-06-04",
		Tokens:     []string{"tokens.txt"},
		Components: [][]string{{"model.int8.onnx", "model.onnx"}},
	},
	"zipformer-bilingual": {
		Backend: asr.BackendZipformer,
		Dir:     "sherpa-onnx-streaming-zipformer-bilingual-zh-en-2023-02-20",
		Tokens:  []string{"tokens.txt"},
		Components: [][]string{
			{"encoder-epoch-99-avg-1.int8.onnx", "encoder-epoch-99-avg-1.onnx"},
			{"decoder-epoch-99-avg-1.onnx"},
			{"joiner-epoch-99-avg-1.int8.onnx", "joiner-epoch-99-avg-1.onnx"},
		},
	},
	"whisper-base": {
		Backend:    asr.BackendWhisper,
		Dir:        "whisper",
		Components: [][]string{{"ggml-base.bin", "ggml-base.en.bin"}},
	},
	"whisper-small": {
		Backend:    asr.BackendWhisper,
		Dir:        "whisper",
		Components: [][]string{{"ggml-small.bin", "ggml-small.en.bin"}},
	},
}

// Paths are the validated absolute files of a located model.
type Paths struct {
	Backend    asr.Backend
	TokensPath string
	ModelPaths []string
}

// Option is a functional option for [NewDirLocator].
type Option func(*DirLocator)

// WithVariants replaces the variant table.
func WithVariants(v map[string]Variant) Option {
	return func(l *DirLocator) { l.variants = maps.Clone(v) }
}

// WithVariant adds or replaces one variant.
func WithVariant(name string, v Variant) Option {
	return func(l *DirLocator) { l.variants[name] = v }
}

// DirLocator finds models below a root directory.
type DirLocator struct {
	root     string
	variants map[string]Variant
}

// NewDirLocator returns a locator rooted at root.
func NewDirLocator(root string, opts ...Option) *DirLocator {
	l := &DirLocator{root: root, variants: maps.Clone(DefaultVariants)}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Variants returns the known variant identifiers in sorted order.
func (l *DirLocator) Variants() []string {
	return slices.Sorted(maps.Keys(l.variants))
}

// Lookup returns the layout of a variant.
func (l *DirLocator) Lookup(variant string) (Variant, bool) {
	v, ok := l.variants[variant]
	return v, ok
}

// Locate resolves variant to absolute, existing files.
func (l *DirLocator) Locate(variant string) (Paths, error) {
	v, ok := l.variants[variant]
	if !ok {
		return Paths{}, fmt.Errorf("%w: unknown variant %q", ErrNotFound, variant)
	}
	root, err := filepath.Abs(l.root)
	if err != nil {
		return Paths{}, fmt.Errorf("locator: resolve root %q: %w", l.root, err)
	}
	dir := filepath.Join(root, v.Dir)

	p := Paths{Backend: v.Backend}
	if len(v.Tokens) > 0 {
		if p.TokensPath, err = first(dir, v.Tokens); err != nil {
			return Paths{}, fmt.Errorf("%w: %s tokens: %v", ErrNotFound, variant, err)
		}
	}
	for i, names := range v.Components {
		path, err := first(dir, names)
		if err != nil {
			return Paths{}, fmt.Errorf("%w: %s component %d: %v", ErrNotFound, variant, i, err)
		}
		p.ModelPaths = append(p.ModelPaths, path)
	}
	return p, nil
}

func first(dir string, names []string) (string, error) {
	for _, n := range names {
		path := filepath.Join(dir, n)
		if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Size() > 0 {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %v in %s", names, dir)
}
