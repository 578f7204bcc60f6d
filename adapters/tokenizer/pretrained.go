// Package tokenizer provides ports.Tokenizer implementations: a pretrained
// HuggingFace tokenizer.json loader and a dependency-free hashing fallback.
package tokenizer

import (
	"fmt"
	"sync"

	"intenttune/internal/errors"

	sgtokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Pretrained wraps a tokenizer loaded from a tokenizer.json file
type Pretrained struct {
	tk   *sgtokenizer.Tokenizer
	path string
	// the underlying pipeline keeps per-call state in its normalizer
	mu sync.Mutex
}

// LoadPretrained loads a HuggingFace tokenizer.json
func LoadPretrained(path string) (*Pretrained, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, errors.ModelError(fmt.Sprintf("failed to load tokenizer %s: %v", path, err))
	}
	return &Pretrained{tk: tk, path: path}, nil
}

// Encode returns the token ids, special tokens included
func (p *Pretrained) Encode(text string) ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	enc, err := p.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, errors.Wrapf(err, "tokenize %q", text)
	}
	return enc.GetIds(), nil
}

// AddsSpecialTokens reports that Encode adds the post-processor tokens
func (p *Pretrained) AddsSpecialTokens() bool { return true }

// Name identifies the tokenizer in checkpoints
func (p *Pretrained) Name() string {
	return "pretrained:" + p.path
}
