// Package notify dispatches post-checkout notifications. Delivery is owned by
// an external collaborator; this package only hands the order off and must
// never fail a checkout.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hallmart/storefront/internal/domain/order"
)

var _ order.Notifier = (*LogNotifier)(nil)

// LogNotifier records the notification in the service log. It stands in for
// the real email/notification pipeline, which consumes the same contract.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs the order outcome.
func (n *LogNotifier) Notify(ctx context.Context, o *order.Order) error {
	zctx.From(ctx).Info("order notification",
		zap.String("order_number", o.OrderNumber),
		zap.String("customer_ref", o.CustomerRef),
		zap.String("transaction_status", string(o.TransactionStatus)),
		zap.String("status", string(o.Status)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return nil
}
