package guard

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
)

// Usage is one sample of process and system resource usage
type Usage struct {
	AllocMB              int64
	SysMB                int64
	Goroutines           int
	GCCount              int64
	SystemMemUsedMB      int64
	SystemMemTotalMB     int64
	SystemMemUsedPercent float64
	// SystemMemKnown is false when the platform could not report system memory.
	SystemMemKnown bool
}

// Sampler returns the current usage
type Sampler func() Usage

// SampleUsage reads runtime memory stats and system memory via gopsutil
func SampleUsage() Usage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usage := Usage{
		AllocMB:    int64(m.Alloc / 1024 / 1024),
		SysMB:      int64(m.Sys / 1024 / 1024),
		Goroutines: runtime.NumGoroutine(),
		GCCount:    int64(m.NumGC),
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemUsedMB = int64(vmStat.Used / 1024 / 1024)
		usage.SystemMemTotalMB = int64(vmStat.Total / 1024 / 1024)
		usage.SystemMemUsedPercent = vmStat.UsedPercent
		usage.SystemMemKnown = true
	}
	return usage
}
