package services

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceOptimizer derives the fan-out limit for per-symbol fetches and
// computations from the host's CPU count, memory and current load.
type ResourceOptimizer struct {
	mu                 sync.RWMutex
	config             ResourceOptimizerConfig
	cpuCores           int
	memoryGB           float64
	currentCPUUsage    float64
	currentMemoryUsage float64
	optimalConcurrency OptimalConcurrency
	lastUpdate         time.Time
	logger             logrus.FieldLogger
}

// OptimalConcurrency holds the calculated concurrency limits
type OptimalConcurrency struct {
	MaxConcurrentSymbols int     `json:"max_concurrent_symbols"`
	MemoryThreshold      float64 `json:"memory_threshold"`
	CPUThreshold         float64 `json:"cpu_threshold"`
}

// ResourceOptimizerConfig bounds the derived limits
type ResourceOptimizerConfig struct {
	CPUThreshold    float64
	MemoryThreshold float64
	MinWorkers      int
	MaxWorkers      int
}

// NewResourceOptimizer inspects the host and calculates the initial limits
func NewResourceOptimizer(config ResourceOptimizerConfig, logger logrus.FieldLogger) *ResourceOptimizer {
	if config.CPUThreshold == 0 {
		config.CPUThreshold = 80.0
	}
	if config.MemoryThreshold == 0 {
		config.MemoryThreshold = 85.0
	}
	if config.MinWorkers <= 0 {
		config.MinWorkers = 2
	}
	if config.MaxWorkers < config.MinWorkers {
		config.MaxWorkers = 16
		if config.MaxWorkers < config.MinWorkers {
			config.MaxWorkers = config.MinWorkers
		}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ro := &ResourceOptimizer{
		config: config,
		logger: logger.WithField("component", "resource_optimizer"),
	}

	if cores, err := cpu.Counts(true); err == nil && cores > 0 {
		ro.cpuCores = cores
	} else {
		ro.cpuCores = runtime.NumCPU()
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		ro.memoryGB = float64(memInfo.Total) / (1024 * 1024 * 1024)
	} else {
		ro.logger.WithError(err).Warn("Could not get memory info, using default")
		ro.memoryGB = 8.0
	}

	ro.calculateOptimalConcurrency()
	ro.logger.WithFields(logrus.Fields{
		"cpu_cores":              ro.cpuCores,
		"memory_gb":              ro.memoryGB,
		"max_concurrent_symbols": ro.optimalConcurrency.MaxConcurrentSymbols,
	}).Info("Resource optimizer initialized")
	return ro
}

func (ro *ResourceOptimizer) calculateOptimalConcurrency() {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	// fetches are I/O bound, so start above the core count
	workers := ro.cpuCores * 2

	switch {
	case ro.memoryGB < 4.0:
		workers = workers / 2
	case ro.memoryGB < 8.0:
		workers = workers * 3 / 4
	}
	switch {
	case ro.currentCPUUsage > ro.config.CPUThreshold:
		workers = workers * 7 / 10
	case ro.currentMemoryUsage > ro.config.MemoryThreshold:
		workers = workers * 8 / 10
	}

	if workers < ro.config.MinWorkers {
		workers = ro.config.MinWorkers
	}
	if workers > ro.config.MaxWorkers {
		workers = ro.config.MaxWorkers
	}

	ro.optimalConcurrency = OptimalConcurrency{
		MaxConcurrentSymbols: workers,
		MemoryThreshold:      ro.config.MemoryThreshold,
		CPUThreshold:         ro.config.CPUThreshold,
	}
}

// FanOutLimit returns requested when positive, otherwise the derived limit
func (ro *ResourceOptimizer) FanOutLimit(requested int) int {
	if requested > 0 {
		return requested
	}
	if ro == nil {
		return 4
	}
	return ro.GetOptimalConcurrency().MaxConcurrentSymbols
}

// GetOptimalConcurrency returns the current limits
func (ro *ResourceOptimizer) GetOptimalConcurrency() OptimalConcurrency {
	ro.mu.RLock()
	defer ro.mu.RUnlock()
	return ro.optimalConcurrency
}

// UpdateSystemMetrics samples CPU and memory usage and recalculates the limits
func (ro *ResourceOptimizer) UpdateSystemMetrics(ctx context.Context) error {
	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("failed to get CPU usage: %w", err)
	}
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get memory usage: %w", err)
	}

	ro.mu.Lock()
	if len(cpuPercent) > 0 {
		ro.currentCPUUsage = cpuPercent[0]
	}
	ro.currentMemoryUsage = memInfo.UsedPercent
	ro.lastUpdate = time.Now()
	ro.mu.Unlock()

	ro.calculateOptimalConcurrency()
	return nil
}

// GetSystemInfo returns current system information for the health endpoint
func (ro *ResourceOptimizer) GetSystemInfo() map[string]interface{} {
	ro.mu.RLock()
	defer ro.mu.RUnlock()

	return map[string]interface{}{
		"cpu_cores":      ro.cpuCores,
		"memory_gb":      ro.memoryGB,
		"current_cpu":    ro.currentCPUUsage,
		"current_memory": ro.currentMemoryUsage,
		"goroutines":     runtime.NumGoroutine(),
		"last_update":    ro.lastUpdate,
		"optimal_config": ro.optimalConcurrency,
	}
}
