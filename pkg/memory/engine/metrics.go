package engine

import "sync/atomic"

// Metrics captures lightweight runtime counters for observability.
type Metrics struct {
	stored        atomic.Int64
	recalled      atomic.Int64
	indexed       atomic.Int64
	indexRetries  atomic.Int64
	embedSkipped  atomic.Int64
	graphDegraded atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
}

func (m *Metrics) IncStored()         { m.stored.Add(1) }
func (m *Metrics) IncRecalled(n int)  { m.recalled.Add(int64(n)) }
func (m *Metrics) IncIndexed()        { m.indexed.Add(1) }
func (m *Metrics) IncIndexRetries()   { m.indexRetries.Add(1) }
func (m *Metrics) IncEmbedSkipped()   { m.embedSkipped.Add(1) }
func (m *Metrics) IncGraphDegraded()  { m.graphDegraded.Add(1) }
func (m *Metrics) IncCacheHits()      { m.cacheHits.Add(1) }
func (m *Metrics) IncCacheMisses()    { m.cacheMisses.Add(1) }

// MetricsSnapshot holds the current counter values for reporting.
type MetricsSnapshot struct {
	Stored        int64 `json:"stored"`
	Recalled      int64 `json:"recalled"`
	Indexed       int64 `json:"indexed"`
	IndexRetries  int64 `json:"index_retries"`
	EmbedSkipped  int64 `json:"embed_skipped"`
	GraphDegraded int64 `json:"graph_degraded"`
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Stored:        m.stored.Load(),
		Recalled:      m.recalled.Load(),
		Indexed:       m.indexed.Load(),
		IndexRetries:  m.indexRetries.Load(),
		EmbedSkipped:  m.embedSkipped.Load(),
		GraphDegraded: m.graphDegraded.Load(),
		CacheHits:     m.cacheHits.Load(),
		CacheMisses:   m.cacheMisses.Load(),
	}
}
