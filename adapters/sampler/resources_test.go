package sampler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"intenttune/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const meminfo = `MemTotal:       16000000 kB
MemFree:         2000000 kB
MemAvailable:    6000000 kB
Buffers:          500000 kB
Cached:          3000000 kB
SwapCached:            0 kB
SReclaimable:     500000 kB
`

func TestProcfsSampler(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "meminfo"), []byte(meminfo), 0o644))

	s, err := NewProcfsSampler(root)
	require.NoError(t, err)
	mem, err := s.SampleMemory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(16000000*1024), mem.TotalBytes)
	assert.Equal(t, uint64(6000000*1024), mem.AvailableBytes)
	assert.Equal(t, uint64((16000000-2000000-500000-3500000)*1024), mem.UsedBytes)
	assert.InDelta(t, 62.5, mem.Percent, 1e-9)
}

func TestProcfsSamplerMissingFile(t *testing.T) {
	s, err := NewProcfsSampler(t.TempDir())
	require.NoError(t, err)
	_, err = s.SampleMemory(context.Background())
	assert.Error(t, err)
}

func TestProcfsSamplerWithoutTotal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "meminfo"), []byte("MemFree:         2000000 kB\n"), 0o644))

	s, err := NewProcfsSampler(root)
	require.NoError(t, err)
	_, err = s.SampleMemory(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
	assert.Contains(t, err.Error(), "MemTotal")
}

func TestParseNvidiaSMI(t *testing.T) {
	out := []byte("0, Tesla T4, 1024, 15360, 37\n1, NVIDIA A100-SXM4-40GB, [N/A], 40960, 0\n")
	gpus, err := ParseNvidiaSMI(out)
	require.NoError(t, err)
	require.Len(t, gpus, 2)

	assert.Equal(t, 0, gpus[0].ID)
	assert.Equal(t, "Tesla T4", gpus[0].Name)
	assert.Equal(t, 1024.0, gpus[0].MemoryUsedMB)
	assert.Equal(t, 37.0, gpus[0].Utilization)
	assert.InDelta(t, 1024.0/15360, gpus[0].MemoryUtil(), 1e-12)
	assert.Equal(t, 0.0, gpus[1].MemoryUsedMB)
}

func TestParseNvidiaSMIEmpty(t *testing.T) {
	gpus, err := ParseNvidiaSMI(nil)
	require.NoError(t, err)
	assert.Empty(t, gpus)
}

func TestNvidiaSMISamplerWithoutBinary(t *testing.T) {
	s := &NvidiaSMISampler{}
	gpus, err := s.SampleGPUs(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, gpus)
}
