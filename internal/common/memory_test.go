package common

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMemoryStats(t *testing.T) {
	stats := GetMemoryStats()
	assert.Positive(t, stats.HeapAlloc)
	assert.Positive(t, stats.Sys)

	str := stats.String()
	assert.Contains(t, str, "Heap:")
	assert.Contains(t, str, "KB")
}

func TestMemoryStats_LogValue(t *testing.T) {
	v := MemoryStats{HeapAlloc: 4096, HeapObjects: 7, Sys: 8192, NumGC: 2}.LogValue()
	assert.Equal(t, slog.KindGroup, v.Kind())

	attrs := map[string]uint64{}
	for _, a := range v.Group() {
		attrs[a.Key] = a.Value.Uint64()
	}
	assert.Equal(t, map[string]uint64{
		"heap_kb": 4, "heap_objects": 7, "sys_kb": 8, "num_gc": 2,
	}, attrs)
}

func BenchmarkMemoryStatsRetrieval(b *testing.B) {
	for b.Loop() {
		_ = GetMemoryStats()
	}
}
