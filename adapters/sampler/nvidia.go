package sampler

import (
	"bytes"
	"context"
	"encoding/csv"
	"os/exec"
	"strconv"
	"strings"

	"intenttune/domain/resources"
	"intenttune/internal/errors"
)

const nvidiaQuery = "--query-gpu=index,name,memory.used,memory.total,utilization.gpu"

// NvidiaSMISampler queries GPUs through the nvidia-smi binary. A host without
// the binary reports no GPUs.
type NvidiaSMISampler struct {
	binary string
}

// NewNvidiaSMISampler locates nvidia-smi on PATH
func NewNvidiaSMISampler() *NvidiaSMISampler {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return &NvidiaSMISampler{}
	}
	return &NvidiaSMISampler{binary: path}
}

// Available reports whether nvidia-smi was found
func (s *NvidiaSMISampler) Available() bool {
	return s.binary != ""
}

// SampleGPUs implements ports.GPUSampler
func (s *NvidiaSMISampler) SampleGPUs(ctx context.Context) ([]resources.GPUStat, error) {
	if !s.Available() {
		return nil, nil
	}
	out, err := exec.CommandContext(ctx, s.binary, nvidiaQuery, "--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil, errors.ExternalServiceError("nvidia-smi", err)
	}
	return ParseNvidiaSMI(out)
}

// ParseNvidiaSMI parses csv,noheader,nounits output of the GPU query
func ParseNvidiaSMI(out []byte) ([]resources.GPUStat, error) {
	r := csv.NewReader(bytes.NewReader(out))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse nvidia-smi output")
	}

	var gpus []resources.GPUStat
	for _, rec := range records {
		if len(rec) < 4 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "gpu index %q", rec[0])
		}
		gpu := resources.GPUStat{
			ID:            id,
			Name:          strings.TrimSpace(rec[1]),
			MemoryUsedMB:  number(rec[2]),
			MemoryTotalMB: number(rec[3]),
		}
		if len(rec) > 4 {
			gpu.Utilization = number(rec[4])
		}
		gpus = append(gpus, gpu)
	}
	return gpus, nil
}

// number parses a field, mapping "[N/A]" and similar to 0
func number(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
