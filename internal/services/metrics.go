package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "artisan-market/internal/services"

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	mutations           metric.Int64Counter
	persistenceFailures metric.Int64Counter
	ordersPlaced        metric.Int64Counter
	ordersFailed        metric.Int64Counter
}

// NewMetrics registers the counters on meter. A nil meter uses the global
// provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &Metrics{}
	var err error
	if m.mutations, err = meter.Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations applied in memory")); err != nil {
		return nil, err
	}
	if m.persistenceFailures, err = meter.Int64Counter("cart.persistence_failures",
		metric.WithDescription("Cart writes that failed to reach the store")); err != nil {
		return nil, err
	}
	if m.ordersPlaced, err = meter.Int64Counter("orders.placed"); err != nil {
		return nil, err
	}
	if m.ordersFailed, err = meter.Int64Counter("orders.failed"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) mutation(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) persistenceFailure(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.persistenceFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) orderPlaced(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersPlaced.Add(ctx, 1)
}

func (m *Metrics) orderFailed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.ordersFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
