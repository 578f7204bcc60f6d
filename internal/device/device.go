// Package device reports the compute hardware a run will use.
package device

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"intenttune/domain/resources"
	"intenttune/internal"
	"intenttune/ports"

	"github.com/klauspost/cpuid/v2"
)

// Report describes the host
type Report struct {
	CPUBrand      string              `json:"cpu_brand"`
	PhysicalCores int                 `json:"physical_cores"`
	LogicalCores  int                 `json:"logical_cores"`
	GOMAXPROCS    int                 `json:"gomaxprocs"`
	Features      []string            `json:"features"`
	GPUs          []resources.GPUStat `json:"gpus"`
}

// GPUAvailable reports whether at least one GPU is visible
func (r Report) GPUAvailable() bool {
	return len(r.GPUs) > 0
}

// Detect reads the CPU description and, when gpus is not nil, the GPU list
func Detect(ctx context.Context, gpus ports.GPUSampler) (Report, error) {
	r := Report{
		CPUBrand:      strings.TrimSpace(cpuid.CPU.BrandName),
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		Features:      cpuid.CPU.FeatureSet(),
	}
	if r.CPUBrand == "" {
		r.CPUBrand = runtime.GOARCH
	}
	if gpus == nil {
		return r, nil
	}
	stats, err := gpus.SampleGPUs(ctx)
	if err != nil {
		return r, err
	}
	r.GPUs = stats
	return r, nil
}

// Log prints the report the way the training script announces its device
func (r Report) Log(logger *internal.Logger) {
	logger.Info("GPU available: %v", r.GPUAvailable())
	if r.GPUAvailable() {
		for _, g := range r.GPUs {
			logger.Info("Using device: cuda:%d (%s, %.0fMB)", g.ID, g.Name, g.MemoryTotalMB)
		}
	} else {
		logger.Info("Using device: cpu")
	}
	logger.Info("CPU: %s (%d physical / %d logical cores, GOMAXPROCS=%d)", r.CPUBrand, r.PhysicalCores, r.LogicalCores, r.GOMAXPROCS)
	logger.Debug("CPU features: %s", strings.Join(r.Features, ","))
}

// String returns a one-line summary
func (r Report) String() string {
	dev := "cpu"
	if r.GPUAvailable() {
		dev = fmt.Sprintf("cuda (%d GPUs)", len(r.GPUs))
	}
	return fmt.Sprintf("%s, %s, %d cores", dev, r.CPUBrand, r.LogicalCores)
}
