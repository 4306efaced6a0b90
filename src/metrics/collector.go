package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"pagedb/src/disk"
)

// PoolCollector exposes BufferPool counters as Prometheus metrics, one
// labelled series per registered pool. It reads PoolStats snapshots, so
// scraping never perturbs the counters.
type PoolCollector struct {
	pools map[string]*disk.BufferPool
	mu    sync.Mutex

	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
	reads     *prometheus.Desc
	writes    *prometheus.Desc
	hitRate   *prometheus.Desc
}

func NewPoolCollector() *PoolCollector {
	labels := []string{"pool"}
	return &PoolCollector{
		pools: make(map[string]*disk.BufferPool),
		hits: prometheus.NewDesc("pagedb_buffer_pool_hits_total",
			"Page requests served from the buffer pool.", labels, nil),
		misses: prometheus.NewDesc("pagedb_buffer_pool_misses_total",
			"Page requests that went to disk.", labels, nil),
		evictions: prometheus.NewDesc("pagedb_buffer_pool_evictions_total",
			"Frames evicted to make room.", labels, nil),
		reads: prometheus.NewDesc("pagedb_buffer_pool_pages_read_total",
			"Pages read from disk.", labels, nil),
		writes: prometheus.NewDesc("pagedb_buffer_pool_pages_written_total",
			"Pages written back to disk.", labels, nil),
		hitRate: prometheus.NewDesc("pagedb_buffer_pool_hit_rate",
			"Hits over total page requests.", labels, nil),
	}
}

// Register adds a pool under a stable name (typically the file path).
func (pc *PoolCollector) Register(name string, pool *disk.BufferPool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.pools[name] = pool
}

// Unregister drops a pool, e.g. after its handle is released.
func (pc *PoolCollector) Unregister(name string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	delete(pc.pools, name)
}

func (pc *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.hits
	ch <- pc.misses
	ch <- pc.evictions
	ch <- pc.reads
	ch <- pc.writes
	ch <- pc.hitRate
}

func (pc *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for name, pool := range pc.pools {
		stats := pool.Stats()
		ch <- prometheus.MustNewConstMetric(pc.hits, prometheus.CounterValue, float64(stats.Hits), name)
		ch <- prometheus.MustNewConstMetric(pc.misses, prometheus.CounterValue, float64(stats.Misses), name)
		ch <- prometheus.MustNewConstMetric(pc.evictions, prometheus.CounterValue, float64(stats.Evictions), name)
		ch <- prometheus.MustNewConstMetric(pc.reads, prometheus.CounterValue, float64(stats.PagesRead), name)
		ch <- prometheus.MustNewConstMetric(pc.writes, prometheus.CounterValue, float64(stats.PagesWritten), name)
		ch <- prometheus.MustNewConstMetric(pc.hitRate, prometheus.GaugeValue, stats.HitRate(), name)
	}
}

var _ prometheus.Collector = (*PoolCollector)(nil)
