package app

import (
	"fmt"
	"strings"

	"intenttune/adapters/tokenizer"
	"intenttune/internal/config"
	"intenttune/internal/errors"
	"intenttune/ports"
)

const pretrainedPrefix = "pretrained:"

// tokenizerFor builds the tokenizer named in a model config. An empty name
// means a fresh model: TOKENIZER_FILE if configured, hashing otherwise.
// TOKENIZER_FILE overrides the path recorded in a checkpoint.
func tokenizerFor(name string, cfg config.ModelConfig, vocab int) (ports.Tokenizer, error) {
	switch {
	case name == "":
		if cfg.TokenizerFile != "" {
			return tokenizer.LoadPretrained(cfg.TokenizerFile)
		}
		return tokenizer.NewHashing(vocab), nil
	case name == "hashing":
		return tokenizer.NewHashing(vocab), nil
	case strings.HasPrefix(name, pretrainedPrefix):
		path := strings.TrimPrefix(name, pretrainedPrefix)
		if cfg.TokenizerFile != "" {
			path = cfg.TokenizerFile
		}
		return tokenizer.LoadPretrained(path)
	default:
		return nil, errors.ModelError(fmt.Sprintf("unknown tokenizer %q", name))
	}
}
