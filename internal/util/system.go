package util

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo describes the host the batch run executes on.
type SystemInfo struct {
	Hostname      string
	LogicalCores  int
	PhysicalCores int
	OS            string
	Arch          string
	TotalMemoryGB float64
	AvailMemoryGB float64
}

// GetSystemInfo collects host information, used by the dispatcher to size
// the worker pool (§4.8). gopsutil failures degrade to runtime-only fields
// rather than erroring, since worker sizing always has a safe fallback.
func GetSystemInfo() SystemInfo {
	hostname, _ := os.Hostname()
	info := SystemInfo{
		Hostname:     hostname,
		LogicalCores: runtime.NumCPU(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
	}

	if counts, err := cpu.Counts(false); err == nil && counts > 0 {
		info.PhysicalCores = counts
	} else {
		info.PhysicalCores = info.LogicalCores
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemoryGB = BytesToGB(int64(vm.Total))
		info.AvailMemoryGB = BytesToGB(int64(vm.Available))
	}

	return info
}

// RecommendedWorkerCount derives a worker pool size bounded by
// min(configured, limit, cpu_count), then further narrowed by available
// memory headroom. configured <= 0 defers entirely to limit. Each
// concurrent encode is assumed to need roughly 1 physical core and
// gbPerWorker GB of headroom.
func RecommendedWorkerCount(info SystemInfo, configured, limit int, gbPerWorker float64) int {
	n := limit
	if configured > 0 && configured < n {
		n = configured
	}

	byCPU := info.PhysicalCores
	if byCPU < 1 {
		byCPU = 1
	}
	if byCPU < n {
		n = byCPU
	}

	if gbPerWorker > 0 && info.AvailMemoryGB > 0 {
		byMem := int(info.AvailMemoryGB / gbPerWorker)
		if byMem < 1 {
			byMem = 1
		}
		if byMem < n {
			n = byMem
		}
	}

	if n < 1 {
		n = 1
	}
	return n
}
