package ports

import (
	"context"

	"intenttune/domain/resources"
)

// MemorySampler reads system memory usage
type MemorySampler interface {
	SampleMemory(ctx context.Context) (resources.Memory, error)
}

// GPUSampler reads per-GPU memory usage. No GPU is not an error.
type GPUSampler interface {
	SampleGPUs(ctx context.Context) ([]resources.GPUStat, error)
}
