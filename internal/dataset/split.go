package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"intenttune/domain/core"
	"intenttune/domain/intent"
	"intenttune/internal/errors"
)

// StratifiedSplit divides a dataset into train and validation parts keeping
// the class proportions. The validation part holds ceil(testSize*n) examples.
// The result depends only on the dataset order and the seed.
func StratifiedSplit(ds *intent.Dataset, testSize float64, seed int64) (train, valid *intent.Dataset, err error) {
	n := ds.Len()
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.InvalidInput(fmt.Sprintf("test size must be in (0,1), got %g", testSize))
	}

	byClass := make(map[int][]int)
	for i, ex := range ds.Examples {
		byClass[ex.LabelID] = append(byClass[ex.LabelID], i)
	}
	classes := make([]int, 0, len(byClass))
	for c, members := range byClass {
		if len(members) < 2 {
			return nil, nil, errors.WithCode(errors.CodeDatasetError,
				fmt.Errorf("%w: %q has %d", core.ErrSingletonClass, ds.Labels.Name(c), len(members)))
		}
		classes = append(classes, c)
	}
	sort.Ints(classes)

	nValid := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nValid
	if nValid < len(classes) || nTrain < len(classes) {
		return nil, nil, errors.WithCode(errors.CodeDatasetError,
			fmt.Errorf("%w: %d train / %d validation samples for %d classes", core.ErrInsufficientData, nTrain, nValid, len(classes)))
	}

	counts := make([]int, len(classes))
	for i, c := range classes {
		counts[i] = len(byClass[c])
	}
	alloc := allocate(counts, nValid)

	rng := rand.New(rand.NewSource(seed))
	var trainIdx, validIdx []int
	for i, c := range classes {
		members := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(members), func(a, b int) { members[a], members[b] = members[b], members[a] })
		validIdx = append(validIdx, members[:alloc[i]]...)
		trainIdx = append(trainIdx, members[alloc[i]:]...)
	}
	rng.Shuffle(len(trainIdx), func(a, b int) { trainIdx[a], trainIdx[b] = trainIdx[b], trainIdx[a] })
	rng.Shuffle(len(validIdx), func(a, b int) { validIdx[a], validIdx[b] = validIdx[b], validIdx[a] })

	return ds.Subset("train", trainIdx), ds.Subset("validation", validIdx), nil
}

// allocate distributes total draws over classes proportionally to counts
// using largest remainders. Every class keeps at least one member on each
// side whenever the totals allow it.
func allocate(counts []int, total int) []int {
	n := 0
	for _, c := range counts {
		n += c
	}
	alloc := make([]int, len(counts))
	type rem struct {
		class int
		frac  float64
	}
	rems := make([]rem, len(counts))
	assigned := 0
	for i, c := range counts {
		exact := float64(total) * float64(c) / float64(n)
		alloc[i] = int(math.Floor(exact))
		if alloc[i] > c-1 {
			alloc[i] = c - 1
		}
		assigned += alloc[i]
		rems[i] = rem{class: i, frac: exact - math.Floor(exact)}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		if rems[a].frac != rems[b].frac {
			return rems[a].frac > rems[b].frac
		}
		return counts[rems[a].class] > counts[rems[b].class]
	})

	// classes with nothing drawn get served first so validation covers them
	for _, r := range rems {
		if assigned >= total {
			break
		}
		if alloc[r.class] == 0 && counts[r.class] > 1 {
			alloc[r.class]++
			assigned++
		}
	}
	// a class still left out borrows a draw from the largest allocation
	for _, r := range rems {
		if alloc[r.class] != 0 || counts[r.class] < 2 {
			continue
		}
		donor := -1
		for i, a := range alloc {
			if a > 1 && (donor < 0 || a > alloc[donor]) {
				donor = i
			}
		}
		if donor < 0 {
			break
		}
		alloc[donor]--
		alloc[r.class]++
	}
	for assigned < total {
		progressed := false
		for _, r := range rems {
			if assigned >= total {
				break
			}
			if alloc[r.class] < counts[r.class]-1 {
				alloc[r.class]++
				assigned++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return alloc
}
