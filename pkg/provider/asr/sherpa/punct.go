package sherpa

import (
	"errors"
	"fmt"
	"sync"

	so "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/MrWong99/voxkey/pkg/provider/asr"
)

// Punctuator restores punctuation with a CT-Transformer model.
type Punctuator struct {
	mu sync.Mutex
	p  *so.OfflinePunctuation
}

// NewPunctuator loads the CT-Transformer model at modelPath.
func NewPunctuator(modelPath string, numThreads int) (*Punctuator, error) {
	if modelPath == "" {
		return nil, errors.New("sherpa: punctuation modelPath must not be empty")
	}
	if err := asr.CheckFiles(modelPath); err != nil {
		return nil, fmt.Errorf("sherpa: punctuation: %w", err)
	}
	c := so.OfflinePunctuationConfig{}
	c.Model.CtTransformer = modelPath
	c.Model.NumThreads = max(numThreads, 1)
	c.Model.Provider = "cpu"
	p := so.NewOfflinePunctuation(&c)
	if p == nil {
		return nil, fmt.Errorf("sherpa: load punctuation model %q failed", modelPath)
	}
	return &Punctuator{p: p}, nil
}

// AddPunctuation implements [asr.Punctuator].
func (p *Punctuator) AddPunctuation(text string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.p == nil || text == "" {
		return text
	}
	return p.p.AddPunct(text)
}

// Close releases the model.
func (p *Punctuator) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.p != nil {
		so.DeleteOfflinePunc(p.p)
		p.p = nil
	}
	return nil
}

var _ asr.Punctuator = (*Punctuator)(nil)
