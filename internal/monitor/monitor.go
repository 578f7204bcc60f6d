// Package monitor polls memory and GPU usage in the background while a
// training run is in progress. It never blocks or slows the caller.
package monitor

import (
	"context"
	"sync"
	"time"

	"intenttune/domain/core"
	"intenttune/domain/resources"
	"intenttune/internal"
	"intenttune/internal/telemetry"
	"intenttune/ports"
)

// DefaultInterval is the poll period when none is configured
const DefaultInterval = 30 * time.Second

// Monitor periodically samples resources and reports them
type Monitor struct {
	memory   ports.MemorySampler
	gpus     ports.GPUSampler
	interval time.Duration
	logger   *internal.Logger
	metrics  *telemetry.Metrics

	mu   sync.RWMutex
	last *resources.Snapshot
}

// New creates a monitor. gpus may be nil on hosts without GPU support.
func New(memory ports.MemorySampler, gpus ports.GPUSampler, interval time.Duration, logger *internal.Logger, metrics *telemetry.Metrics) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		memory:   memory,
		gpus:     gpus,
		interval: interval,
		logger:   logger.With("Monitor"),
		metrics:  metrics,
	}
}

// Run samples once immediately and then every interval until ctx is done.
// Sampler failures are logged and do not stop the loop.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// Start runs the monitor on its own goroutine. The returned function stops
// it and waits for the goroutine to exit.
func (m *Monitor) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Last returns the most recent successful snapshot
func (m *Monitor) Last() (resources.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return resources.Snapshot{}, false
	}
	return *m.last, true
}

func (m *Monitor) poll(ctx context.Context) {
	snap, ok := m.sample(ctx)
	if !ok {
		return
	}
	m.report(snap)
	m.metrics.ObserveSnapshot(snap)

	m.mu.Lock()
	m.last = &snap
	m.mu.Unlock()
}

// sample polls memory and GPUs independently. It reports false only when
// every sampler failed.
func (m *Monitor) sample(ctx context.Context) (resources.Snapshot, bool) {
	snap := resources.Snapshot{At: core.Now()}
	ok := false

	if mem, err := m.memory.SampleMemory(ctx); err != nil {
		m.sampleFailed(ctx, "memory", err)
	} else {
		snap.Memory = mem
		ok = true
	}

	if m.gpus != nil {
		if gpus, err := m.gpus.SampleGPUs(ctx); err != nil {
			m.sampleFailed(ctx, "GPU", err)
		} else {
			snap.GPUs = gpus
			ok = ok || len(gpus) > 0
		}
	}
	return snap, ok
}

func (m *Monitor) sampleFailed(ctx context.Context, what string, err error) {
	if ctx.Err() != nil {
		return
	}
	m.logger.Warn("%s sample failed: %v", what, err)
	m.metrics.SampleFailed()
}

func (m *Monitor) report(s resources.Snapshot) {
	if s.HasMemory() {
		m.logger.Info("RAM Usage: %.1f%%", s.Memory.Percent)
		m.logger.Info("Used RAM: %.2fGB", s.Memory.UsedGB())
		m.logger.Info("Available RAM: %.2fGB", s.Memory.AvailableGB())
	}
	for _, g := range s.GPUs {
		m.logger.Info("GPU %d Memory Usage: %.1fMB/%.1fMB (%.1f%%)", g.ID, g.MemoryUsedMB, g.MemoryTotalMB, g.MemoryUtil()*100)
	}
}
