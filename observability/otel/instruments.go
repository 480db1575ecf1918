package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MarketInstruments mirrors the Prometheus request counters onto the global
// OTLP meter provider. Without Init the global provider is a no-op.
type MarketInstruments struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewMarketInstruments registers the marketplace instruments on the global
// meter provider.
func NewMarketInstruments() (*MarketInstruments, error) {
	meter := otel.Meter("nftmarket/market")
	requests, err := meter.Int64Counter("nftmarket.market.requests",
		metric.WithDescription("Marketplace requests by operation and outcome."))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("nftmarket.market.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Marketplace request latency."))
	if err != nil {
		return nil, err
	}
	return &MarketInstruments{requests: requests, latency: latency}, nil
}

// Record adds one request observation.
func (m *MarketInstruments) Record(ctx context.Context, operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
	m.latency.Record(ctx, seconds, metric.WithAttributes(attribute.String("operation", operation)))
}
