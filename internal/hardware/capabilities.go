// Package hardware probes the host CPU and memory so the hashing engines can
// negotiate which performance features to request.
package hardware

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/pbnjay/memory"
	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"
)

// Capabilities describes the host features relevant to CPU mining.
type Capabilities struct {
	ModelName     string
	PhysicalCores int
	LogicalCores  int

	// Instruction set features used as baseline acceleration bits.
	HardwareAES bool
	AVX2        bool
	SSE42       bool

	// L3 cache size in bytes, -1 when unknown.
	L3Cache int

	TotalMemory uint64
	FreeMemory  uint64
}

// Detect probes the host. Probes that fail fall back to conservative values;
// detection itself never fails.
func Detect(logger *zap.Logger) *Capabilities {
	caps := &Capabilities{
		HardwareAES: cpuid.CPU.Supports(cpuid.AESNI),
		AVX2:        cpuid.CPU.Supports(cpuid.AVX2),
		SSE42:       cpuid.CPU.Supports(cpuid.SSE42),
		L3Cache:     cpuid.CPU.Cache.L3,
		ModelName:   cpuid.CPU.BrandName,
		TotalMemory: memory.TotalMemory(),
		FreeMemory:  memory.FreeMemory(),
	}

	physical, err := cpu.Counts(false)
	if err != nil || physical < 1 {
		logger.Debug("Physical core count unavailable, using logical count", zap.Error(err))
		physical = runtime.NumCPU()
	}
	logical, err := cpu.Counts(true)
	if err != nil || logical < 1 {
		logical = runtime.NumCPU()
	}
	caps.PhysicalCores = physical
	caps.LogicalCores = logical

	if caps.ModelName == "" {
		if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
			caps.ModelName = infos[0].ModelName
		}
	}

	logger.Debug("Detected hardware capabilities",
		zap.String("model", caps.ModelName),
		zap.Int("physical_cores", caps.PhysicalCores),
		zap.Int("logical_cores", caps.LogicalCores),
		zap.Bool("aes", caps.HardwareAES),
		zap.Bool("avx2", caps.AVX2),
		zap.Uint64("total_memory", caps.TotalMemory),
	)

	return caps
}
