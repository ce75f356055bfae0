package notify

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hallmart/storefront/internal/domain/order"
)

var _ order.Notifier = (*MetricNotifier)(nil)

// MetricNotifier counts checkout outcomes before delegating to the next
// notifier.
type MetricNotifier struct {
	next      order.Notifier
	checkouts metric.Int64Counter
}

// NewMetricNotifier creates a MetricNotifier recording to mp.
func NewMetricNotifier(mp metric.MeterProvider, next order.Notifier) (*MetricNotifier, error) {
	meter := mp.Meter("storefront")
	checkouts, err := meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout attempts by transaction status"),
	)
	if err != nil {
		return nil, err
	}
	return &MetricNotifier{next: next, checkouts: checkouts}, nil
}

// Notify records the outcome and passes the order on.
func (n *MetricNotifier) Notify(ctx context.Context, o *order.Order) error {
	n.checkouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transaction_status", string(o.TransactionStatus)),
	))
	return n.next.Notify(ctx, o)
}
