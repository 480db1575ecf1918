package observability

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks marketplace request outcomes and settled volume.
type MarketMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	volume   *prometheus.CounterVec
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// Market returns the lazily-initialised marketplace metrics registry.
func Market() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "requests_total",
				Help:      "Total marketplace requests segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for marketplace requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "settlement_volume",
				Help:      "Gross settled amount in base units segmented by currency.",
			}, []string{"currency"}),
		}
		prometheus.MustRegister(
			marketRegistry.requests,
			marketRegistry.latency,
			marketRegistry.volume,
		)
	})
	return marketRegistry
}

// Observe records the outcome of a marketplace request. outcome should be a
// stable string such as "success" or the rejection class.
func (m *MarketMetrics) Observe(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if outcome == "" {
		outcome = "success"
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSettlement adds a settled gross amount to the volume counter.
func (m *MarketMetrics) RecordSettlement(currency string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	normalized := strings.TrimSpace(strings.ToUpper(currency))
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	m.volume.WithLabelValues(normalized).Add(value)
}
