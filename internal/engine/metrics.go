package engine

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/ttlcache"
)

// Metrics is optional: every method is a no-op on a nil receiver.
type Metrics struct {
	workerDuration *prometheus.HistogramVec
	dropped        prometheus.Counter
	failures       *prometheus.CounterVec
	retries        *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	runs           *prometheus.CounterVec
}

func NewMetrics(registry prometheus.Registerer, config pipeline.MetricsConfig) (*Metrics, error) {
	buckets := config.Buckets
	if len(buckets) == 0 {
		buckets = []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 120000}
	}

	ret := &Metrics{
		workerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "worker",
			Name:      "duration_milliseconds",
			Help:      "Time taken to poll one subscription.",
			Buckets:   buckets,
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "worker",
			Name:      "dropped_records_total",
			Help:      "Records dropped because they failed validation.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "worker",
			Name:      "failures_total",
			Help:      "Subscription failures by error kind.",
		}, []string{"kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Provider call retries by error kind.",
		}, []string{"kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Query cache lookups by result.",
		}, []string{"result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "runs_total",
			Help:      "Polling runs by outcome.",
		}, []string{"outcome"}),
	}

	collectors := []prometheus.Collector{
		ret.workerDuration,
		ret.dropped,
		ret.failures,
		ret.retries,
		ret.cacheLookups,
		ret.runs,
	}

	for _, c := range collectors {
		err := registry.Register(c)
		if err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return ret, nil
}

// RegisterCacheStats exposes the in memory cache counters as gauges.
func RegisterCacheStats(registry prometheus.Registerer, namespace string, stats func() ttlcache.Stats) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held by the in memory cache.",
		}, func() float64 { return float64(stats().Size) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits",
			Help:      "In memory cache hits since start.",
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses",
			Help:      "In memory cache misses since start.",
		}, func() float64 { return float64(stats().Misses) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions",
			Help:      "Expired entries purged from the in memory cache since start.",
		}, func() float64 { return float64(stats().Evictions) }),
	}

	for _, g := range gauges {
		err := registry.Register(g)
		if err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return nil
}

func (m *Metrics) observeWorker(result entity.SubscriptionResult, duration time.Duration, dropped int) {
	if m == nil {
		return
	}

	m.workerDuration.WithLabelValues(string(result.Kind)).Observe(pipeline.Milliseconds(duration))
	m.dropped.Add(float64(dropped))

	if result.Failure != nil {
		m.failures.WithLabelValues(string(result.Failure.ErrorKind)).Inc()
	}
}

func (m *Metrics) retry(err error) {
	if m == nil {
		return
	}

	m.retries.WithLabelValues(string(entity.KindOf(err))).Inc()
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) run(outcome string) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(outcome).Inc()
}
