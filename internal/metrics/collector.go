package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// 📊 采集端指标
// =============================================================================

// Collector 入库指标收集器
type Collector struct {
	eventsIngested *prometheus.CounterVec
	batchCostUSD   prometheus.Counter
	batchSize      prometheus.Histogram
	ingestErrors   prometheus.Counter
}

// NewCollector 创建指标收集器
func NewCollector(namespace string) *Collector {
	c := &Collector{}

	c.eventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Total number of ingested LLM call events",
		},
		[]string{"provider", "model", "status"},
	)

	c.batchCostUSD = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_cost_usd_total",
			Help:      "Accumulated USD cost of ingested batches",
		},
	)

	c.batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_size",
			Help:      "Number of events per ingested batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		},
	)

	c.ingestErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_errors_total",
			Help:      "Total number of failed ingest requests",
		},
	)

	return c
}

// ObserveEvent 记录一条已入库事件
func (c *Collector) ObserveEvent(provider, model, status string) {
	if c == nil {
		return
	}
	c.eventsIngested.WithLabelValues(provider, model, status).Inc()
}

// ObserveBatch 记录一批已入库事件的批量维度
func (c *Collector) ObserveBatch(size int, costUSD float64) {
	if c == nil {
		return
	}
	c.batchSize.Observe(float64(size))
	c.batchCostUSD.Add(costUSD)
}

// ObserveIngestError 记录一次入库失败
func (c *Collector) ObserveIngestError() {
	if c == nil {
		return
	}
	c.ingestErrors.Inc()
}
