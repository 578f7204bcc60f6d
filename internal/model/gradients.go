package model

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Gradients accumulates loss gradients over a batch. Embedding gradients are
// kept per touched row.
type Gradients struct {
	Embedding map[int][]float64
	Weight    *mat.Dense
	Bias      []float64
	Loss      float64
	Count     int
}

// NewGradients returns zeroed gradients shaped for c
func (c *Classifier) NewGradients() *Gradients {
	return &Gradients{
		Embedding: make(map[int][]float64),
		Weight:    mat.NewDense(c.cfg.NumLabels, c.cfg.EmbeddingDim, nil),
		Bias:      make([]float64, c.cfg.NumLabels),
	}
}

// Merge adds other into g
func (g *Gradients) Merge(other *Gradients) {
	g.Weight.Add(g.Weight, other.Weight)
	floats.Add(g.Bias, other.Bias)
	for r, v := range other.Embedding {
		if acc, ok := g.Embedding[r]; ok {
			floats.Add(acc, v)
		} else {
			g.Embedding[r] = v
		}
	}
	g.Loss += other.Loss
	g.Count += other.Count
}

// Scale multiplies every gradient by s
func (g *Gradients) Scale(s float64) {
	g.Weight.Scale(s, g.Weight)
	floats.Scale(s, g.Bias)
	for _, v := range g.Embedding {
		floats.Scale(s, v)
	}
}

// MeanLoss returns the average loss of the accumulated examples
func (g *Gradients) MeanLoss() float64 {
	if g.Count == 0 {
		return 0
	}
	return g.Loss / float64(g.Count)
}
