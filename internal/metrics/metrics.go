// Package metrics scores classifier predictions: accuracy, support-weighted
// F1 and a per-class report.
package metrics

import (
	"sort"
)

// ClassScore holds the scores of one class
type ClassScore struct {
	ID        int     `json:"id"`
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises predictions against references
type Report struct {
	Classes    []ClassScore `json:"classes"`
	Accuracy   float64      `json:"accuracy"`
	MacroF1    float64      `json:"macro_f1"`
	WeightedF1 float64      `json:"weighted_f1"`
	Samples    int          `json:"samples"`
	Skipped    int          `json:"skipped"`
}

// Accuracy is the fraction of predictions equal to the reference. Pairs with
// a negative reference are ignored.
func Accuracy(refs, preds []int) float64 {
	correct, total := 0, 0
	for i, r := range refs {
		if r < 0 {
			continue
		}
		total++
		if preds[i] == r {
			correct++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// WeightedF1 is the support-weighted mean of per-class F1 over the classes
// seen in either refs or preds. Undefined precision or recall counts as 0.
func WeightedF1(refs, preds []int) float64 {
	return Compute(refs, preds, nil).WeightedF1
}

// Compute builds the full report. names maps class ids to labels and may be nil.
func Compute(refs, preds []int, names func(id int) string) Report {
	tp := map[int]int{}
	fp := map[int]int{}
	fn := map[int]int{}
	support := map[int]int{}
	classes := map[int]struct{}{}

	rep := Report{}
	correct := 0
	for i, r := range refs {
		if r < 0 {
			rep.Skipped++
			continue
		}
		p := preds[i]
		rep.Samples++
		classes[r] = struct{}{}
		classes[p] = struct{}{}
		support[r]++
		if p == r {
			tp[r]++
			correct++
		} else {
			fp[p]++
			fn[r]++
		}
	}
	if rep.Samples == 0 {
		return rep
	}
	rep.Accuracy = float64(correct) / float64(rep.Samples)

	ids := make([]int, 0, len(classes))
	for c := range classes {
		ids = append(ids, c)
	}
	sort.Ints(ids)

	var macro, weighted float64
	for _, c := range ids {
		s := ClassScore{ID: c, Support: support[c]}
		if names != nil {
			s.Label = names(c)
		}
		s.Precision = ratio(tp[c], tp[c]+fp[c])
		s.Recall = ratio(tp[c], tp[c]+fn[c])
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		macro += s.F1
		weighted += s.F1 * float64(s.Support)
		rep.Classes = append(rep.Classes, s)
	}
	rep.MacroF1 = macro / float64(len(ids))
	rep.WeightedF1 = weighted / float64(rep.Samples)
	return rep
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
