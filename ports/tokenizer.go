package ports

// Tokenizer turns text into token ids. Implementations must be safe for
// concurrent use.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Name() string
}

// SpecialTokens is implemented by tokenizers that close every sequence with
// a special token such as [SEP] or </s>. Truncation keeps that token last.
type SpecialTokens interface {
	AddsSpecialTokens() bool
}
