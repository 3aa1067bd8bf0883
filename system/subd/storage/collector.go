package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports database metrics of a Storage to prometheus.
type Collector struct {
	s *Storage

	commit          *prometheus.Desc
	nodes           *prometheus.Desc
	compactionCount *prometheus.Desc
	compactionDebt  *prometheus.Desc
	memtableSize    *prometheus.Desc
	walSize         *prometheus.Desc
	walBytesWritten *prometheus.Desc
}

func NewCollector(s *Storage) *Collector {
	return &Collector{
		s: s,
		commit: prometheus.NewDesc(
			"subd_storage_commit",
			"Number of the last commit",
			nil, nil,
		),
		nodes: prometheus.NewDesc(
			"subd_storage_nodes",
			"Number of stored nodes",
			nil, nil,
		),
		compactionCount: prometheus.NewDesc(
			"subd_pebble_compaction_count_total",
			"Total number of compactions performed",
			nil, nil,
		),
		compactionDebt: prometheus.NewDesc(
			"subd_pebble_compaction_estimated_debt_bytes",
			"Estimated number of bytes that need to be compacted to reach a stable state",
			nil, nil,
		),
		memtableSize: prometheus.NewDesc(
			"subd_pebble_memtable_size_bytes",
			"Current size of the memtable in bytes",
			nil, nil,
		),
		walSize: prometheus.NewDesc(
			"subd_pebble_wal_size_bytes",
			"Size of the live write-ahead log in bytes",
			nil, nil,
		),
		walBytesWritten: prometheus.NewDesc(
			"subd_pebble_wal_bytes_written_total",
			"Total bytes written to the write-ahead log",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.commit
	ch <- c.nodes
	ch <- c.compactionCount
	ch <- c.compactionDebt
	ch <- c.memtableSize
	ch <- c.walSize
	ch <- c.walBytesWritten
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap, commit := c.s.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.commit, prometheus.GaugeValue, float64(commit))
	ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(len(snap.Fields)))

	m := c.s.Metrics()
	ch <- prometheus.MustNewConstMetric(c.compactionCount, prometheus.CounterValue, float64(m.Compact.Count))
	ch <- prometheus.MustNewConstMetric(c.compactionDebt, prometheus.GaugeValue, float64(m.Compact.EstimatedDebt))
	ch <- prometheus.MustNewConstMetric(c.memtableSize, prometheus.GaugeValue, float64(m.MemTable.Size))
	ch <- prometheus.MustNewConstMetric(c.walSize, prometheus.GaugeValue, float64(m.WAL.Size))
	ch <- prometheus.MustNewConstMetric(c.walBytesWritten, prometheus.CounterValue, float64(m.WAL.BytesWritten))
}
