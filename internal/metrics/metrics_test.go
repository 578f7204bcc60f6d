package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.75, Accuracy([]int{0, 1, 2, 2}, []int{0, 1, 2, 1}))
	assert.Equal(t, 0.5, Accuracy([]int{0, -1, 1}, []int{0, 3, 0}), "unknown references are ignored")
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}

// Values cross-checked by hand:
// class 0: p=1/2 r=1/2, class 1: p=1/2 r=1, class 2: p=1 r=1/2
func TestWeightedF1(t *testing.T) {
	refs := []int{0, 0, 1, 2, 2}
	preds := []int{0, 1, 1, 2, 0}
	f1 := (2*0.5 + 1*(2.0/3) + 2*(2.0/3)) / 5
	assert.InDelta(t, f1, WeightedF1(refs, preds), 1e-12)
}

func TestComputePredictedOnlyClass(t *testing.T) {
	rep := Compute([]int{0, 0}, []int{0, 1}, nil)
	assert.Len(t, rep.Classes, 2)
	assert.Equal(t, 0, rep.Classes[1].Support)
	assert.Equal(t, 0.0, rep.Classes[1].F1)
	// class 0: p=1 r=1/2 f1=2/3, weight 2 of 2
	assert.InDelta(t, 2.0/3, rep.WeightedF1, 1e-12)
	assert.InDelta(t, 1.0/3, rep.MacroF1, 1e-12)
}

func TestComputeAllUnknown(t *testing.T) {
	rep := Compute([]int{-1, -1}, []int{0, 1}, nil)
	assert.Equal(t, 0, rep.Samples)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 0.0, rep.WeightedF1)
}

func TestRender(t *testing.T) {
	names := []string{"agree", "re|fuse"}
	rep := Compute([]int{0, 1, 1, -1}, []int{0, 1, 0, 0}, func(id int) string { return names[id] })

	md := rep.Markdown("Test results")
	assert.True(t, strings.HasPrefix(md, "# Test results\n"))
	assert.Contains(t, md, "| agree | 0.5000 | 1.0000 | 0.6667 | 1 |")
	assert.Contains(t, md, `re\|fuse`)
	assert.Contains(t, md, "Skipped (label unknown to the model): 1")

	page := string(rep.HTML("Test results"))
	assert.Contains(t, page, "<title>Test results</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "agree")
}
