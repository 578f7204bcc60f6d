// Package sampler samples host memory through procfs and GPU memory through
// nvidia-smi.
package sampler

import (
	"context"
	"fmt"

	"intenttune/domain/resources"
	"intenttune/internal/errors"

	"github.com/prometheus/procfs"
)

// ProcfsSampler reads /proc/meminfo
type ProcfsSampler struct {
	fs procfs.FS
}

// NewProcfsSampler opens the proc filesystem mounted at root
func NewProcfsSampler(root string) (*ProcfsSampler, error) {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, errors.Wrapf(err, "open procfs at %s", root)
	}
	return &ProcfsSampler{fs: fs}, nil
}

// SampleMemory implements ports.MemorySampler. Used memory follows the
// free(1) definition: total minus free, buffers and page cache.
func (s *ProcfsSampler) SampleMemory(ctx context.Context) (resources.Memory, error) {
	if err := ctx.Err(); err != nil {
		return resources.Memory{}, err
	}
	mi, err := s.fs.Meminfo()
	if err != nil {
		return resources.Memory{}, errors.Wrap(err, "read meminfo")
	}
	if mi.MemTotal == nil || *mi.MemTotal == 0 {
		return resources.Memory{}, errors.ExternalServiceError("procfs", fmt.Errorf("meminfo has no MemTotal"))
	}

	total := kb(mi.MemTotal)
	free := kb(mi.MemFree)
	cached := kb(mi.Cached) + kb(mi.SReclaimable)
	buffers := kb(mi.Buffers)

	available := kb(mi.MemAvailable)
	if mi.MemAvailable == nil {
		// kernels before 3.14
		available = free + buffers + cached
	}

	used := int64(total) - int64(free) - int64(buffers) - int64(cached)
	if used < 0 {
		used = int64(total) - int64(free)
	}

	return resources.Memory{
		TotalBytes:     total,
		UsedBytes:      uint64(used),
		AvailableBytes: available,
		Percent:        float64(total-min(available, total)) / float64(total) * 100,
	}, nil
}

func kb(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v * 1024
}
