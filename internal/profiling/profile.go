// Package profiling summarises prepared datasets before training: class
// balance and the shape of the token length distribution.
package profiling

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"intenttune/domain/intent"
	"intenttune/internal"

	"github.com/montanaflynn/stats"
)

// LengthProfile describes the token lengths of a dataset
type LengthProfile struct {
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Median   float64 `json:"median"`
	P95      float64 `json:"p95"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
	Outliers int     `json:"outliers"`
}

// Profile is the summary of one dataset
type Profile struct {
	Name        string         `json:"name"`
	Examples    int            `json:"examples"`
	ClassCounts map[string]int `json:"class_counts"`
	// Imbalance is the largest class count divided by the smallest
	Imbalance float64       `json:"imbalance"`
	Unknown   int           `json:"unknown_labels"`
	Lengths   LengthProfile `json:"lengths"`
	// AtLimit counts sequences that reached maxLen and were likely truncated
	AtLimit int `json:"at_limit"`
}

// ProfileDataset computes the profile of a tokenized dataset
func ProfileDataset(ds *intent.Dataset, maxLen int) (Profile, error) {
	p := Profile{Name: ds.Name, Examples: ds.Len(), ClassCounts: map[string]int{}}
	if ds.Len() == 0 {
		return p, nil
	}

	lengths := make([]float64, ds.Len())
	for i, ex := range ds.Examples {
		lengths[i] = float64(len(ex.TokenIDs))
		if maxLen > 0 && len(ex.TokenIDs) >= maxLen {
			p.AtLimit++
		}
		if ex.LabelID == intent.UnknownLabel {
			p.Unknown++
			continue
		}
		p.ClassCounts[ex.Label]++
	}
	p.Imbalance = imbalance(p.ClassCounts)

	lp, err := lengthProfile(lengths)
	if err != nil {
		return p, err
	}
	p.Lengths = lp
	return p, nil
}

func lengthProfile(data []float64) (LengthProfile, error) {
	var lp LengthProfile
	var err error
	if lp.Mean, err = stats.Mean(data); err != nil {
		return lp, err
	}
	if lp.StdDev, err = stats.StandardDeviation(data); err != nil {
		return lp, err
	}
	if lp.Median, err = stats.Median(data); err != nil {
		return lp, err
	}
	if lp.P95, err = stats.Percentile(data, 95); err != nil {
		return lp, err
	}
	if lp.Max, err = stats.Max(data); err != nil {
		return lp, err
	}
	lp.Skewness = skewness(data, lp.Mean, lp.StdDev)

	// quartiles need a few points
	if q, err := stats.Quartile(data); err == nil {
		lp.Outliers = countOutliers(data, q.Q1, q.Q3)
	}
	return lp, nil
}

func imbalance(counts map[string]int) float64 {
	if len(counts) == 0 {
		return 0
	}
	lo, hi := math.MaxInt, 0
	for _, n := range counts {
		lo = min(lo, n)
		hi = max(hi, n)
	}
	return float64(hi) / float64(lo)
}

// skewness is the adjusted Fisher-Pearson coefficient
func skewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}
	n := float64(len(data))
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / stdDev
		sum += d * d * d
	}
	return sum / n * math.Sqrt(n*(n-1)) / (n - 2)
}

// countOutliers uses the 1.5 IQR rule
func countOutliers(data []float64, q1, q3 float64) int {
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr
	n := 0
	for _, x := range data {
		if x < lower || x > upper {
			n++
		}
	}
	return n
}

// Log prints the profile on a few lines
func (p Profile) Log(logger *internal.Logger) {
	logger.Info("%s set: %d examples, %d classes, imbalance %.2f", p.Name, p.Examples, len(p.ClassCounts), p.Imbalance)
	names := make([]string, 0, len(p.ClassCounts))
	for name := range p.ClassCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, p.ClassCounts[name])
	}
	logger.Debug("%s class counts: %s", p.Name, strings.Join(parts, ", "))
	logger.Info("%s token lengths: mean %.1f, median %.0f, p95 %.0f, max %.0f", p.Name, p.Lengths.Mean, p.Lengths.Median, p.Lengths.P95, p.Lengths.Max)
	if p.AtLimit > 0 {
		logger.Warn("%s set: %d sequences reached max_seq_length and were truncated", p.Name, p.AtLimit)
	}
	if p.Unknown > 0 {
		logger.Warn("%s set: %d examples have labels unknown to the model", p.Name, p.Unknown)
	}
}
