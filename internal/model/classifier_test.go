package model

import (
	"encoding/json"
	"math"
	"testing"

	"intenttune/domain/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func threeLabels() *intent.LabelMap {
	return intent.NewLabelMap([]string{"refuse", "agree", "unclear"})
}

func newTestModel(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(32, 6, 16, "hashing", threeLabels(), 42)
	require.NoError(t, err)
	return c
}

func TestNewValidates(t *testing.T) {
	_, err := New(0, 4, 8, "hashing", threeLabels(), 1)
	assert.Error(t, err)
	_, err = New(8, 4, 8, "hashing", intent.NewLabelMap([]string{"only"}), 1)
	assert.Error(t, err)
}

func TestSoftmaxAndLoss(t *testing.T) {
	p := Softmax([]float64{1000, 1000, 1000})
	assert.InDeltaSlice(t, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, p, 1e-12)
	assert.InDelta(t, 1.0, floats.Sum(Softmax([]float64{-3, 0.5, 2})), 1e-12)
	assert.InDelta(t, math.Log(3), Loss([]float64{0, 0, 0}, 1), 1e-12)
}

func TestPredictReturnsArgmax(t *testing.T) {
	c := newTestModel(t)
	pred := c.Predict([]int{1, 5, 9})
	assert.Equal(t, floats.MaxIdx(pred.Logits), pred.LabelID)
	assert.Equal(t, c.Labels().Name(pred.LabelID), pred.Label)
	assert.Greater(t, pred.Confidence, 1.0/3-1e-9)
	assert.LessOrEqual(t, pred.Confidence, 1.0)
}

func TestForwardFoldsIDsIntoVocab(t *testing.T) {
	c := newTestModel(t)
	assert.Equal(t, c.Forward([]int{3}), c.Forward([]int{3 + 32}))
	assert.Equal(t, c.Forward(nil), c.bias)
}

// Analytic gradients agree with central differences
func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	c := newTestModel(t)
	ids := []int{2, 7, 7, 37}
	label := 2

	g := c.NewGradients()
	c.Backward(ids, label, g)

	const eps = 1e-6
	check := func(name string, p []float64, grad func(i int) float64) {
		for i := range p {
			orig := p[i]
			p[i] = orig + eps
			up := Loss(c.Forward(ids), label)
			p[i] = orig - eps
			down := Loss(c.Forward(ids), label)
			p[i] = orig
			assert.InDelta(t, (up-down)/(2*eps), grad(i), 1e-6, "%s[%d]", name, i)
		}
	}

	w := c.weight.RawMatrix().Data
	gw := g.Weight.RawMatrix().Data
	check("weight", w, func(i int) float64 { return gw[i] })
	check("bias", c.bias, func(i int) float64 { return g.Bias[i] })

	dim := c.cfg.EmbeddingDim
	for _, r := range []int{2, 7, 8} {
		row := c.embedding.RawRowView(r)
		check("embedding", row, func(i int) float64 {
			if acc, ok := g.Embedding[r]; ok {
				return acc[i]
			}
			return 0
		})
	}
	assert.Len(t, g.Embedding[7], dim)
	assert.NotContains(t, g.Embedding, 8)
}

func TestGradientsMergeAndScale(t *testing.T) {
	c := newTestModel(t)
	a, b := c.NewGradients(), c.NewGradients()
	c.Backward([]int{1}, 0, a)
	c.Backward([]int{1, 2}, 1, b)

	both := c.NewGradients()
	c.Backward([]int{1}, 0, both)
	c.Backward([]int{1, 2}, 1, both)

	a.Merge(b)
	assert.Equal(t, 2, a.Count)
	assert.InDelta(t, both.Loss, a.Loss, 1e-12)
	assert.InDeltaSlice(t, both.Bias, a.Bias, 1e-12)
	assert.InDeltaSlice(t, both.Embedding[1], a.Embedding[1], 1e-12)

	a.Scale(0.5)
	assert.InDelta(t, both.Bias[0]/2, a.Bias[0], 1e-12)
	assert.InDelta(t, both.Loss/2, a.MeanLoss(), 1e-12)
}

func TestResizeKeepsEmbeddings(t *testing.T) {
	c := newTestModel(t)
	before := append([]float64(nil), c.embedding.RawMatrix().Data...)

	assert.False(t, c.Resize(threeLabels(), 1), "same labels keep the head")
	assert.True(t, c.Resize(intent.NewLabelMap([]string{"a", "b"}), 1))
	assert.Equal(t, 2, c.NumLabels())
	assert.Equal(t, []string{"a", "b"}, c.Config().ID2Label)
	assert.Equal(t, before, c.embedding.RawMatrix().Data)
	assert.Len(t, c.Forward([]int{1}), 2)
}

func TestHeaderRoundTrip(t *testing.T) {
	c := newTestModel(t)
	raw, err := json.Marshal(c.Header())
	require.NoError(t, err)

	loaded := Empty()
	require.NoError(t, loaded.SetHeader(func(v any) error { return json.Unmarshal(raw, v) }))
	assert.Equal(t, c.Config(), loaded.Config())

	src, dst := c.Tensors(), loaded.Tensors()
	require.Len(t, dst, len(src))
	for i := range src {
		assert.Equal(t, src[i].Name, dst[i].Name)
		copy(dst[i].Data, src[i].Data)
	}
	assert.Equal(t, c.Forward([]int{4, 5}), loaded.Forward([]int{4, 5}))
}

func TestSetHeaderRejectsBadConfig(t *testing.T) {
	err := Empty().SetHeader(func(v any) error {
		return json.Unmarshal([]byte(`{"model_type":"bert","vocab_size":1,"embedding_dim":1,"num_labels":1,"id2label":["x"]}`), v)
	})
	assert.Error(t, err)
}
