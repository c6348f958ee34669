package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOptimizer(config ResourceOptimizerConfig) *ResourceOptimizer {
	logger, _ := test.NewNullLogger()
	return NewResourceOptimizer(config, logger)
}

func TestNewResourceOptimizer(t *testing.T) {
	ro := newTestOptimizer(ResourceOptimizerConfig{})

	assert.Greater(t, ro.cpuCores, 0)
	assert.Greater(t, ro.memoryGB, 0.0)
	assert.Equal(t, 80.0, ro.config.CPUThreshold)
	assert.Equal(t, 85.0, ro.config.MemoryThreshold)
	assert.Equal(t, 2, ro.config.MinWorkers)
	assert.Equal(t, 16, ro.config.MaxWorkers)

	limit := ro.GetOptimalConcurrency().MaxConcurrentSymbols
	assert.GreaterOrEqual(t, limit, 2)
	assert.LessOrEqual(t, limit, 16)
}

func TestResourceOptimizer_calculateOptimalConcurrency(t *testing.T) {
	tests := []struct {
		name     string
		cores    int
		memoryGB float64
		cpuUsage float64
		memUsage float64
		expected int
	}{
		{name: "plenty of memory", cores: 4, memoryGB: 16, expected: 8},
		{name: "medium memory", cores: 4, memoryGB: 6, expected: 6},
		{name: "low memory", cores: 4, memoryGB: 2, expected: 4},
		{name: "cpu pressure", cores: 4, memoryGB: 16, cpuUsage: 95, expected: 5},
		{name: "memory pressure", cores: 4, memoryGB: 16, memUsage: 95, expected: 6},
		{name: "clamped to max", cores: 64, memoryGB: 64, expected: 16},
		{name: "clamped to min", cores: 1, memoryGB: 1, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ro := newTestOptimizer(ResourceOptimizerConfig{MinWorkers: 2, MaxWorkers: 16})
			ro.cpuCores = tt.cores
			ro.memoryGB = tt.memoryGB
			ro.currentCPUUsage = tt.cpuUsage
			ro.currentMemoryUsage = tt.memUsage
			ro.calculateOptimalConcurrency()
			assert.Equal(t, tt.expected, ro.GetOptimalConcurrency().MaxConcurrentSymbols)
		})
	}
}

func TestResourceOptimizer_FanOutLimit(t *testing.T) {
	ro := newTestOptimizer(ResourceOptimizerConfig{MinWorkers: 3, MaxWorkers: 3})
	assert.Equal(t, 7, ro.FanOutLimit(7))
	assert.Equal(t, 3, ro.FanOutLimit(0))
	assert.Equal(t, 3, ro.FanOutLimit(-1))

	var nilOptimizer *ResourceOptimizer
	assert.Equal(t, 4, nilOptimizer.FanOutLimit(0))
}

func TestResourceOptimizer_UpdateSystemMetrics(t *testing.T) {
	ro := newTestOptimizer(ResourceOptimizerConfig{})
	require.NoError(t, ro.UpdateSystemMetrics(context.Background()))

	info := ro.GetSystemInfo()
	assert.Contains(t, info, "cpu_cores")
	assert.Contains(t, info, "current_memory")
	assert.Contains(t, info, "optimal_config")
	assert.False(t, info["last_update"].(interface{ IsZero() bool }).IsZero())
}
