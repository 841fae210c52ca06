package rulecache

import "go.uber.org/atomic"

// Metrics is a point-in-time snapshot of the engine's counters.
type Metrics struct {
	Hits          int64
	Misses        int64
	Sets          int64
	Deletes       int64
	Invalidations int64
	WarmingRuns   int64

	// CompressionRatio is stored/raw bytes across all compressed writes;
	// 1.0 when nothing has been compressed yet.
	CompressionRatio float64
	MemoryUsageBytes int64
	HitRate          float64
}

type counters struct {
	hits          *atomic.Int64
	misses        *atomic.Int64
	sets          *atomic.Int64
	deletes       *atomic.Int64
	invalidations *atomic.Int64
	warmingRuns   *atomic.Int64

	rawBytes    *atomic.Int64 // payload bytes before compression
	storedBytes *atomic.Int64 // payload bytes after compression
}

func newCounters() *counters {
	return &counters{
		hits:          atomic.NewInt64(0),
		misses:        atomic.NewInt64(0),
		sets:          atomic.NewInt64(0),
		deletes:       atomic.NewInt64(0),
		invalidations: atomic.NewInt64(0),
		warmingRuns:   atomic.NewInt64(0),
		rawBytes:      atomic.NewInt64(0),
		storedBytes:   atomic.NewInt64(0),
	}
}

func (c *counters) noteCompression(raw, stored int) {
	c.rawBytes.Add(int64(raw))
	c.storedBytes.Add(int64(stored))
}

func (c *counters) snapshot() Metrics {
	m := Metrics{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Sets:             c.sets.Load(),
		Deletes:          c.deletes.Load(),
		Invalidations:    c.invalidations.Load(),
		WarmingRuns:      c.warmingRuns.Load(),
		CompressionRatio: 1.0,
	}
	if raw := c.rawBytes.Load(); raw > 0 {
		m.CompressionRatio = float64(c.storedBytes.Load()) / float64(raw)
	}
	if total := m.Hits + m.Misses; total > 0 {
		m.HitRate = float64(m.Hits) / float64(total)
	}
	return m
}
