package dataset

import (
	"context"
	"fmt"
	"testing"

	"intenttune/domain/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lengthTokenizer struct{}

func (lengthTokenizer) Encode(text string) ([]int, error) {
	if text == "boom" {
		return nil, fmt.Errorf("cannot encode")
	}
	ids := make([]int, len(text))
	for i := range ids {
		ids[i] = int(text[i])
	}
	return ids, nil
}

func (lengthTokenizer) Name() string { return "length" }

func TestTokenizeTruncates(t *testing.T) {
	ds := &intent.Dataset{Name: "train", Examples: []intent.Example{{InputText: "abcdef"}, {InputText: "xy"}}}
	require.NoError(t, Tokenize(context.Background(), ds, lengthTokenizer{}, 4, 2))
	assert.Equal(t, []int{'a', 'b', 'c', 'd'}, ds.Examples[0].TokenIDs)
	assert.Equal(t, []int{'x', 'y'}, ds.Examples[1].TokenIDs)
}

type closingTokenizer struct{ lengthTokenizer }

func (closingTokenizer) Encode(text string) ([]int, error) {
	ids, _ := lengthTokenizer{}.Encode(text)
	return append(append([]int{1}, ids...), 2), nil
}

func (closingTokenizer) AddsSpecialTokens() bool { return true }

func TestTokenizeKeepsClosingToken(t *testing.T) {
	ds := &intent.Dataset{Name: "train", Examples: []intent.Example{{InputText: "abcdef"}, {InputText: "x"}}}
	require.NoError(t, Tokenize(context.Background(), ds, closingTokenizer{}, 4, 1))
	assert.Equal(t, []int{1, 'a', 'b', 2}, ds.Examples[0].TokenIDs)
	assert.Equal(t, []int{1, 'x', 2}, ds.Examples[1].TokenIDs)
}

func TestTokenizeError(t *testing.T) {
	ds := &intent.Dataset{Name: "train", Examples: []intent.Example{{Row: 7, InputText: "boom"}}}
	err := Tokenize(context.Background(), ds, lengthTokenizer{}, 8, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 7")
}

func TestTokenizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ds := &intent.Dataset{Examples: []intent.Example{{InputText: "a"}}}
	assert.ErrorIs(t, Tokenize(ctx, ds, lengthTokenizer{}, 8, 1), context.Canceled)
}
