// Package model implements the intent classifier: a bag of hashed token
// embeddings averaged into one vector and fed to a linear softmax head.
package model

import (
	"fmt"
	"math"
	"math/rand"

	"intenttune/domain/intent"
	"intenttune/internal/errors"
	"intenttune/ports"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Config is the serialisable shape of a classifier. It is written as the
// config.json of every checkpoint.
type Config struct {
	ModelType    string         `json:"model_type"`
	VocabSize    int            `json:"vocab_size"`
	EmbeddingDim int            `json:"embedding_dim"`
	NumLabels    int            `json:"num_labels"`
	MaxSeqLength int            `json:"max_seq_length"`
	Tokenizer    string         `json:"tokenizer"`
	ID2Label     []string       `json:"id2label"`
	Label2ID     map[string]int `json:"label2id"`
}

const modelType = "embedding-bag"

// Classifier holds the trainable weights
type Classifier struct {
	cfg       Config
	embedding *mat.Dense // VocabSize x EmbeddingDim
	weight    *mat.Dense // NumLabels x EmbeddingDim
	bias      []float64  // NumLabels
}

// New creates a randomly initialised classifier for the given labels
func New(vocab, dim, maxSeqLength int, tokenizer string, labels *intent.LabelMap, seed int64) (*Classifier, error) {
	if vocab <= 0 || dim <= 0 {
		return nil, errors.ModelError(fmt.Sprintf("invalid model size: vocab=%d dim=%d", vocab, dim))
	}
	if labels == nil || labels.Len() < 2 {
		return nil, errors.ModelError("a classifier needs at least two labels")
	}
	c := &Classifier{cfg: Config{
		ModelType:    modelType,
		VocabSize:    vocab,
		EmbeddingDim: dim,
		MaxSeqLength: maxSeqLength,
		Tokenizer:    tokenizer,
	}}
	rng := rand.New(rand.NewSource(seed))
	c.embedding = mat.NewDense(vocab, dim, nil)
	raw := c.embedding.RawMatrix().Data
	scale := 1 / math.Sqrt(float64(dim))
	for i := range raw {
		raw[i] = rng.NormFloat64() * scale
	}
	c.resetHead(labels, rng)
	return c, nil
}

func (c *Classifier) resetHead(labels *intent.LabelMap, rng *rand.Rand) {
	n := labels.Len()
	c.cfg.NumLabels = n
	c.cfg.ID2Label = labels.Names()
	c.cfg.Label2ID = labels.Label2ID()
	c.weight = mat.NewDense(n, c.cfg.EmbeddingDim, nil)
	raw := c.weight.RawMatrix().Data
	scale := math.Sqrt(1 / float64(c.cfg.EmbeddingDim))
	for i := range raw {
		raw[i] = rng.NormFloat64() * scale
	}
	c.bias = make([]float64, n)
}

// Resize replaces the head when the label set differs from the one the
// classifier was trained with. Embeddings are kept.
func (c *Classifier) Resize(labels *intent.LabelMap, seed int64) bool {
	if labels.Equal(c.Labels()) {
		return false
	}
	c.resetHead(labels, rand.New(rand.NewSource(seed)))
	return true
}

// Config returns a copy of the model configuration
func (c *Classifier) Config() Config {
	return c.cfg
}

// Labels returns the label map the head predicts
func (c *Classifier) Labels() *intent.LabelMap {
	return intent.LabelMapFromNames(c.cfg.ID2Label)
}

// NumLabels returns the number of output classes
func (c *Classifier) NumLabels() int {
	return c.cfg.NumLabels
}

func (c *Classifier) row(id int) int {
	r := id % c.cfg.VocabSize
	if r < 0 {
		r += c.cfg.VocabSize
	}
	return r
}

// pool averages the embedding rows of ids
func (c *Classifier) pool(ids []int) *mat.VecDense {
	h := mat.NewVecDense(c.cfg.EmbeddingDim, nil)
	if len(ids) == 0 {
		return h
	}
	raw := h.RawVector().Data
	for _, id := range ids {
		floats.Add(raw, c.embedding.RawRowView(c.row(id)))
	}
	floats.Scale(1/float64(len(ids)), raw)
	return h
}

// Forward returns the logits for one token sequence
func (c *Classifier) Forward(ids []int) []float64 {
	return c.forward(c.pool(ids))
}

func (c *Classifier) forward(h *mat.VecDense) []float64 {
	logits := mat.NewVecDense(c.cfg.NumLabels, nil)
	logits.MulVec(c.weight, h)
	out := logits.RawVector().Data
	floats.Add(out, c.bias)
	return out
}

// Softmax converts logits to probabilities
func Softmax(logits []float64) []float64 {
	p := make([]float64, len(logits))
	max := floats.Max(logits)
	sum := 0.0
	for i, z := range logits {
		p[i] = math.Exp(z - max)
		sum += p[i]
	}
	floats.Scale(1/sum, p)
	return p
}

// Loss is the cross-entropy of logits against label
func Loss(logits []float64, label int) float64 {
	return floats.LogSumExp(logits) - logits[label]
}

// Predict returns the most likely label and its probability
func (c *Classifier) Predict(ids []int) intent.Prediction {
	logits := c.Forward(ids)
	probs := Softmax(logits)
	best := floats.MaxIdx(probs)
	return intent.Prediction{
		LabelID:    best,
		Label:      c.cfg.ID2Label[best],
		Confidence: probs[best],
		Logits:     logits,
	}
}

// Backward adds the gradient of the loss for one example to g and returns
// the example loss
func (c *Classifier) Backward(ids []int, label int, g *Gradients) float64 {
	h := c.pool(ids)
	logits := c.forward(h)
	loss := Loss(logits, label)

	dz := Softmax(logits)
	dz[label] -= 1
	dzVec := mat.NewVecDense(len(dz), dz)

	g.Weight.RankOne(g.Weight, 1, dzVec, h)
	floats.Add(g.Bias, dz)

	if len(ids) > 0 {
		dh := mat.NewVecDense(c.cfg.EmbeddingDim, nil)
		dh.MulVec(c.weight.T(), dzVec)
		raw := dh.RawVector().Data
		inv := 1 / float64(len(ids))
		for _, id := range ids {
			r := c.row(id)
			acc, ok := g.Embedding[r]
			if !ok {
				acc = make([]float64, c.cfg.EmbeddingDim)
				g.Embedding[r] = acc
			}
			floats.AddScaled(acc, inv, raw)
		}
	}
	g.Loss += loss
	g.Count++
	return loss
}

// Header implements ports.CheckpointPayload
func (c *Classifier) Header() any {
	return c.cfg
}

// SetHeader implements ports.CheckpointPayload. It allocates zeroed weights
// of the decoded shape.
func (c *Classifier) SetHeader(decode func(v any) error) error {
	var cfg Config
	if err := decode(&cfg); err != nil {
		return errors.Wrap(err, "decode model config")
	}
	if cfg.ModelType != modelType {
		return errors.ModelError(fmt.Sprintf("unsupported model type %q", cfg.ModelType))
	}
	if cfg.VocabSize <= 0 || cfg.EmbeddingDim <= 0 || cfg.NumLabels <= 0 || len(cfg.ID2Label) != cfg.NumLabels {
		return errors.ModelError(fmt.Sprintf("inconsistent model config: %+v", cfg))
	}
	c.cfg = cfg
	c.embedding = mat.NewDense(cfg.VocabSize, cfg.EmbeddingDim, nil)
	c.weight = mat.NewDense(cfg.NumLabels, cfg.EmbeddingDim, nil)
	c.bias = make([]float64, cfg.NumLabels)
	if c.cfg.Label2ID == nil {
		c.cfg.Label2ID = c.Labels().Label2ID()
	}
	return nil
}

// Tensors implements ports.CheckpointPayload. The returned slices alias the
// live weights.
func (c *Classifier) Tensors() []ports.NamedTensor {
	return []ports.NamedTensor{
		{Name: "embedding.weight", Data: c.embedding.RawMatrix().Data},
		{Name: "classifier.weight", Data: c.weight.RawMatrix().Data},
		{Name: "classifier.bias", Data: c.bias},
	}
}

// Empty returns a classifier with no weights, to be filled by a checkpoint load
func Empty() *Classifier {
	return &Classifier{}
}
