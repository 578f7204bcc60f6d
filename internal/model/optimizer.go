package model

import (
	"math"
	"sort"
)

// AdamW is Adam with decoupled weight decay. Embedding rows are updated lazily:
// only rows present in the batch gradient move, and their moments advance
// only on those steps. The bias is not decayed.
type AdamW struct {
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64
	T           int

	mEmb, vEmb []float64
	mW, vW     []float64
	mB, vB     []float64
}

// NewAdamW creates an optimizer for c
func NewAdamW(c *Classifier, beta1, beta2, eps, weightDecay float64) *AdamW {
	embLen := c.cfg.VocabSize * c.cfg.EmbeddingDim
	wLen := c.cfg.NumLabels * c.cfg.EmbeddingDim
	return &AdamW{
		Beta1:       beta1,
		Beta2:       beta2,
		Eps:         eps,
		WeightDecay: weightDecay,
		mEmb:        make([]float64, embLen),
		vEmb:        make([]float64, embLen),
		mW:          make([]float64, wLen),
		vW:          make([]float64, wLen),
		mB:          make([]float64, c.cfg.NumLabels),
		vB:          make([]float64, c.cfg.NumLabels),
	}
}

// Step applies one update with learning rate lr
func (o *AdamW) Step(c *Classifier, g *Gradients, lr float64) {
	o.T++
	t := float64(o.T)
	bc1 := 1 - math.Pow(o.Beta1, t)
	bc2 := 1 - math.Pow(o.Beta2, t)

	o.update(c.weight.RawMatrix().Data, g.Weight.RawMatrix().Data, o.mW, o.vW, lr, bc1, bc2, o.WeightDecay)
	o.update(c.bias, g.Bias, o.mB, o.vB, lr, bc1, bc2, 0)

	dim := c.cfg.EmbeddingDim
	emb := c.embedding.RawMatrix().Data
	rows := make([]int, 0, len(g.Embedding))
	for r := range g.Embedding {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	for _, r := range rows {
		lo, hi := r*dim, (r+1)*dim
		o.update(emb[lo:hi], g.Embedding[r], o.mEmb[lo:hi], o.vEmb[lo:hi], lr, bc1, bc2, o.WeightDecay)
	}
}

func (o *AdamW) update(p, grad, m, v []float64, lr, bc1, bc2, wd float64) {
	stepSize := lr / bc1
	sqrtBC2 := math.Sqrt(bc2)
	for i := range p {
		gi := grad[i]
		if math.IsNaN(gi) || math.IsInf(gi, 0) {
			gi = 0
		}
		if wd > 0 {
			p[i] -= lr * wd * p[i]
		}
		m[i] = o.Beta1*m[i] + (1-o.Beta1)*gi
		v[i] = o.Beta2*v[i] + (1-o.Beta2)*gi*gi
		denom := math.Sqrt(v[i])/sqrtBC2 + o.Eps
		p[i] -= stepSize * m[i] / denom
	}
}

// LinearSchedule warms the learning rate up linearly, then decays it
// linearly to zero at Total steps
type LinearSchedule struct {
	Base   float64
	Warmup int
	Total  int
}

// At returns the learning rate for the step-th update (0-based)
func (s LinearSchedule) At(step int) float64 {
	if s.Warmup > 0 && step < s.Warmup {
		return s.Base * float64(step+1) / float64(s.Warmup)
	}
	remaining := s.Total - s.Warmup
	if remaining <= 0 {
		return 0
	}
	f := float64(s.Total-step) / float64(remaining)
	if f < 0 {
		f = 0
	}
	return s.Base * f
}
