package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryGB(t *testing.T) {
	m := Memory{UsedBytes: 3 * bytesPerGB, AvailableBytes: bytesPerGB / 2}
	assert.InDelta(t, 3.0, m.UsedGB(), 1e-9)
	assert.InDelta(t, 0.5, m.AvailableGB(), 1e-9)
}

func TestGPUMemoryUtil(t *testing.T) {
	assert.InDelta(t, 0.25, GPUStat{MemoryUsedMB: 2048, MemoryTotalMB: 8192}.MemoryUtil(), 1e-9)
	assert.Equal(t, 0.0, GPUStat{MemoryUsedMB: 10}.MemoryUtil())
}
