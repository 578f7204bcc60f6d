package ports

import (
	"context"

	"intenttune/domain/training"
)

// CheckpointInfo locates a saved checkpoint
type CheckpointInfo struct {
	Path string
	Step int
}

// CheckpointStore saves and restores model checkpoints. The model payload is
// opaque to the store so different model types can share it.
type CheckpointStore interface {
	Save(ctx context.Context, dir string, payload CheckpointPayload, meta training.CheckpointMeta) error
	Load(ctx context.Context, dir string, payload CheckpointPayload) (*training.CheckpointMeta, error)
	List(ctx context.Context, outputDir string) ([]CheckpointInfo, error)
	Delete(ctx context.Context, dir string) error
}

// CheckpointPayload is implemented by models that can be written to a checkpoint
type CheckpointPayload interface {
	// Header returns JSON-serialisable model configuration
	Header() any
	// SetHeader receives the decoded configuration before weights are read
	SetHeader(decode func(v any) error) error
	// Tensors returns the named weight slices, in a stable order
	Tensors() []NamedTensor
}

// NamedTensor is a flat float64 weight buffer
type NamedTensor struct {
	Name string
	Data []float64
}
