package tokenizer

import (
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Reserved ids at the start of every hashing vocabulary
const (
	PadID = 0
	ClsID = 1
	SepID = 2

	reserved = 3
)

// Hashing maps words and adjacent word pairs into a fixed number of buckets.
// It needs no vocabulary file and is safe for concurrent use.
type Hashing struct {
	buckets int
}

// NewHashing creates a hashing tokenizer; ids fall in [0, buckets)
func NewHashing(buckets int) *Hashing {
	if buckets <= reserved {
		buckets = reserved + 1
	}
	return &Hashing{buckets: buckets}
}

// Buckets returns the id space size
func (h *Hashing) Buckets() int { return h.buckets }

// Name identifies the tokenizer in checkpoints
func (h *Hashing) Name() string { return "hashing" }

// AddsSpecialTokens is always true: every sequence ends with [SEP]
func (h *Hashing) AddsSpecialTokens() bool { return true }

// Encode returns [CLS] word ids, bigram ids [SEP]
func (h *Hashing) Encode(text string) ([]int, error) {
	words := Words(text)
	ids := make([]int, 0, 2*len(words)+2)
	ids = append(ids, ClsID)
	for i, w := range words {
		ids = append(ids, h.bucket(w))
		if i > 0 {
			ids = append(ids, h.bucket(words[i-1]+" "+w))
		}
	}
	ids = append(ids, SepID)
	return ids, nil
}

func (h *Hashing) bucket(s string) int {
	f := fnv.New64a()
	f.Write([]byte(s))
	return reserved + int(f.Sum64()%uint64(h.buckets-reserved))
}

// Words normalises text to NFC lower case and splits it on anything that is
// not a letter or a digit
func Words(text string) []string {
	text = strings.ToLower(norm.NFC.String(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
