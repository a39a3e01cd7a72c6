package export

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/user/framecast/pkg/ports"
)

// MemoryGovernor defaults.
const (
	DefaultHeadroomRatio = 0.80
	defaultMergeWindow   = 8
)

// MemoryGovernor probes host memory pressure and assembles the final
// artifact from encoded chunks without holding every chunk alive at once.
type MemoryGovernor struct {
	// HeadroomRatio is the fraction of available memory an allocation may
	// push usage to before HasHeadroom refuses.
	HeadroomRatio float64

	// MergeWindow bounds how many chunks a single coalescing pass merges.
	MergeWindow int

	logger ports.Logger

	// probe is swappable for tests; defaults to gopsutil VirtualMemory.
	probe func() (*mem.VirtualMemoryStat, error)
}

// NewMemoryGovernor creates a governor with default thresholds.
func NewMemoryGovernor(logger ports.Logger) *MemoryGovernor {
	return &MemoryGovernor{
		HeadroomRatio: DefaultHeadroomRatio,
		MergeWindow:   defaultMergeWindow,
		logger:        logger.WithComponent("memory"),
		probe:         mem.VirtualMemory,
	}
}

// HasHeadroom reports whether an additional allocation of estimatedBytes
// keeps host memory usage under the headroom ratio. Without working memory
// introspection it optimistically returns true.
func (g *MemoryGovernor) HasHeadroom(estimatedBytes int64) bool {
	vm, err := g.probe()
	if err != nil || vm == nil || vm.Total == 0 {
		return true
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	projected := ms.HeapInuse + uint64(estimatedBytes)
	limit := uint64(float64(vm.Total) * g.HeadroomRatio)
	if projected >= limit {
		return false
	}
	// Also respect what the host reports as actually available.
	return uint64(estimatedBytes) < vm.Available
}

// Assemble coalesces the chunk sequence into the final artifact using
// bounded pairwise merges, capping peak residency and avoiding quadratic
// copying. Exceeding the headroom threshold mid-assembly logs a degradation
// warning; the limit is soft and assembly continues.
func (g *MemoryGovernor) Assemble(chunks [][]byte) []byte {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) == 1 {
		return chunks[0]
	}

	window := g.MergeWindow
	if window < 2 {
		window = 2
	}

	work := chunks
	for len(work) > 1 {
		var total int64
		for _, c := range work {
			total += int64(len(c))
		}
		if !g.HasHeadroom(total) {
			g.logger.Warn("Memory headroom exceeded during assembly (%d bytes pending); continuing degraded", total)
		}

		merged := make([][]byte, 0, (len(work)+window-1)/window)
		for i := 0; i < len(work); i += window {
			end := i + window
			if end > len(work) {
				end = len(work)
			}
			var size int
			for _, c := range work[i:end] {
				size += len(c)
			}
			buf := make([]byte, 0, size)
			for j, c := range work[i:end] {
				buf = append(buf, c...)
				work[i+j] = nil
			}
			merged = append(merged, buf)
		}
		work = merged
	}
	return work[0]
}
