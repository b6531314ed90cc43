package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes batch-level counters on a Prometheus registerer.
type Metrics struct {
	BatchesTotal     *prometheus.CounterVec
	LocationsTotal   *prometheus.CounterVec
	ProductsScraped  prometheus.Counter
	QuantityResolved *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
}

// NewMetrics registers the scraper metrics. Pass a fresh registry in
// tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "menuwatch",
			Name:      "batches_total",
			Help:      "Completed scrape batches by outcome.",
		}, []string{"status"}),
		LocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "menuwatch",
			Name:      "locations_total",
			Help:      "Scraped locations by outcome.",
		}, []string{"status"}),
		ProductsScraped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "menuwatch",
			Name:      "products_scraped_total",
			Help:      "Products extracted across all batches.",
		}),
		QuantityResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "menuwatch",
			Name:      "quantity_resolved_total",
			Help:      "Products with a resolved quantity by source.",
		}, []string{"source"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "menuwatch",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one scrape batch.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 8),
		}),
	}
	reg.MustRegister(m.BatchesTotal, m.LocationsTotal, m.ProductsScraped, m.QuantityResolved, m.BatchDuration)
	return m
}
