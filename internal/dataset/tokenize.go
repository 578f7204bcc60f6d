package dataset

import (
	"context"

	"intenttune/domain/intent"
	"intenttune/internal/errors"
	"intenttune/ports"

	"golang.org/x/sync/errgroup"
)

// Tokenize fills TokenIDs for every example, truncating to maxLen. When the
// tokenizer closes sequences with a special token that token survives the
// cut. Work is spread over at most workers goroutines.
func Tokenize(ctx context.Context, ds *intent.Dataset, tok ports.Tokenizer, maxLen, workers int) error {
	if workers < 1 {
		workers = 1
	}
	keepLast := false
	if st, ok := tok.(ports.SpecialTokens); ok {
		keepLast = st.AddsSpecialTokens()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range ds.Examples {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids, err := tok.Encode(ds.Examples[i].InputText)
			if err != nil {
				return errors.Wrapf(err, "tokenize row %d of %s", ds.Examples[i].Row, ds.Name)
			}
			ds.Examples[i].TokenIDs = truncate(ids, maxLen, keepLast)
			return nil
		})
	}
	return g.Wait()
}

func truncate(ids []int, maxLen int, keepLast bool) []int {
	if maxLen <= 0 || len(ids) <= maxLen {
		return ids
	}
	if !keepLast || maxLen < 2 {
		return ids[:maxLen]
	}
	out := make([]int, maxLen)
	copy(out, ids[:maxLen-1])
	out[maxLen-1] = ids[len(ids)-1]
	return out
}
