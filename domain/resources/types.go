// Package resources describes point-in-time system resource readings.
package resources

import (
	"intenttune/domain/core"
)

const bytesPerGB = 1024 * 1024 * 1024

// GPUStat is the memory reading of one GPU
type GPUStat struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	Utilization   float64 `json:"utilization_percent"`
}

// MemoryUtil returns used/total in [0,1]
func (g GPUStat) MemoryUtil() float64 {
	if g.MemoryTotalMB <= 0 {
		return 0
	}
	return g.MemoryUsedMB / g.MemoryTotalMB
}

// Memory is a virtual memory reading
type Memory struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	Percent        float64 `json:"percent"`
}

// UsedGB returns used memory in GiB
func (m Memory) UsedGB() float64 { return float64(m.UsedBytes) / bytesPerGB }

// AvailableGB returns available memory in GiB
func (m Memory) AvailableGB() float64 { return float64(m.AvailableBytes) / bytesPerGB }

// Snapshot is one poll of the resource monitor
type Snapshot struct {
	At     core.Timestamp `json:"at"`
	Memory Memory         `json:"memory"`
	GPUs   []GPUStat      `json:"gpus"`
}

// HasMemory reports whether the memory part of the poll succeeded
func (s Snapshot) HasMemory() bool { return s.Memory.TotalBytes > 0 }
