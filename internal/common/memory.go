package common

import (
	"fmt"
	"log/slog"
	"runtime"
)

// MemoryStats is a snapshot of the heap figures worth reporting after a pass
// over a dataset. Detections for every image stay resident until the pass
// ends, so these numbers track the size of the accumulated table.
type MemoryStats struct {
	HeapAlloc   uint64
	HeapInuse   uint64
	HeapObjects uint64
	Sys         uint64
	NumGC       uint32
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		HeapAlloc:   m.HeapAlloc,
		HeapInuse:   m.HeapInuse,
		HeapObjects: m.HeapObjects,
		Sys:         m.Sys,
		NumGC:       m.NumGC,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Heap: %d KB (%d objects), Sys: %d KB, GC: %d",
		m.HeapAlloc/1024, m.HeapObjects, m.Sys/1024, m.NumGC)
}

// LogValue groups the snapshot under a single slog attribute.
func (m MemoryStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("heap_kb", m.HeapAlloc/1024),
		slog.Uint64("heap_objects", m.HeapObjects),
		slog.Uint64("sys_kb", m.Sys/1024),
		slog.Uint64("num_gc", uint64(m.NumGC)),
	)
}
