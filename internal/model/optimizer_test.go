package model

import (
	"testing"

	"intenttune/domain/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearSchedule(t *testing.T) {
	s := LinearSchedule{Base: 1, Total: 10}
	assert.Equal(t, 1.0, s.At(0))
	assert.InDelta(t, 0.5, s.At(5), 1e-12)
	assert.Equal(t, 0.0, s.At(10))
	assert.Equal(t, 0.0, s.At(12))

	w := LinearSchedule{Base: 1, Warmup: 2, Total: 6}
	assert.InDelta(t, 0.5, w.At(0), 1e-12)
	assert.InDelta(t, 1.0, w.At(1), 1e-12)
	assert.InDelta(t, 1.0, w.At(2), 1e-12)
	assert.InDelta(t, 0.25, w.At(5), 1e-12)
}

func TestAdamWFirstStepMovesBySignTimesLR(t *testing.T) {
	c, err := New(4, 2, 8, "hashing", intent.NewLabelMap([]string{"a", "b"}), 3)
	require.NoError(t, err)
	opt := NewAdamW(c, 0.9, 0.999, 1e-12, 0)

	g := c.NewGradients()
	c.Backward([]int{1}, 0, g)
	before := append([]float64(nil), c.bias...)
	untouched := append([]float64(nil), c.embedding.RawRowView(2)...)

	opt.Step(c, g, 0.01)

	for i := range before {
		want := before[i] - 0.01
		if g.Bias[i] < 0 {
			want = before[i] + 0.01
		}
		assert.InDelta(t, want, c.bias[i], 1e-9)
	}
	assert.Equal(t, untouched, c.embedding.RawRowView(2), "rows outside the batch do not move")
	assert.Equal(t, 1, opt.T)
}

func TestAdamWDecaysWeightsNotBias(t *testing.T) {
	c, err := New(4, 2, 8, "hashing", intent.NewLabelMap([]string{"a", "b"}), 3)
	require.NoError(t, err)
	opt := NewAdamW(c, 0.9, 0.999, 1e-8, 0.5)

	w := append([]float64(nil), c.weight.RawMatrix().Data...)
	c.bias[0] = 1
	opt.Step(c, c.NewGradients(), 0.1)

	for i, v := range c.weight.RawMatrix().Data {
		assert.InDelta(t, w[i]*(1-0.05), v, 1e-12)
	}
	assert.Equal(t, 1.0, c.bias[0])
}

// A separable toy problem is learned perfectly
func TestTrainingLearnsSeparableData(t *testing.T) {
	labels := intent.NewLabelMap([]string{"agree", "refuse"})
	c, err := New(64, 8, 8, "hashing", labels, 42)
	require.NoError(t, err)
	opt := NewAdamW(c, 0.9, 0.999, 1e-8, 0.01)

	data := []struct {
		ids   []int
		label int
	}{
		{[]int{1, 10, 11}, 0}, {[]int{1, 10, 12}, 0}, {[]int{1, 13, 11}, 0},
		{[]int{1, 20, 21}, 1}, {[]int{1, 20, 22}, 1}, {[]int{1, 23, 21}, 1},
	}
	sched := LinearSchedule{Base: 0.05, Total: 200}
	for step := 0; step < 200; step++ {
		g := c.NewGradients()
		for _, d := range data {
			c.Backward(d.ids, d.label, g)
		}
		g.Scale(1 / float64(len(data)))
		opt.Step(c, g, sched.At(step))
	}
	for _, d := range data {
		assert.Equal(t, d.label, c.Predict(d.ids).LabelID)
	}
}
