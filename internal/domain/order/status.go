package order

import (
	"context"

	"github.com/go-faster/errors"
)

// Status is the fulfillment state of an order. The linear path runs
// PENDING → CONFIRMED → PROCESSING → SHIPPED → DELIVERED; CANCELLED and
// REFUNDED are absorbing states reachable from any non-terminal state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// ErrInvalidTransition is returned when a status change is not permitted.
var ErrInvalidTransition = errors.New("invalid status transition")

var linearOrdinals = map[Status]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

// ParseStatus converts a raw string into a known Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return st, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

// Ordinal returns the position on the linear fulfillment scale for progress
// rendering, or -1 for the absorbing states, which carry no position.
func (s Status) Ordinal() int {
	if ord, ok := linearOrdinals[s]; ok {
		return ord
	}
	return -1
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRefunded
}

// CanTransitionTo reports whether the transition s -> next is permitted.
// Terminal states admit nothing. Non-terminal states advance exactly one step
// on the linear scale or move into an absorbing state; skipping ahead and
// moving backward are both rejected.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() || next == s {
		return false
	}
	if next == StatusCancelled || next == StatusRefunded {
		return true
	}
	from, ok := linearOrdinals[s]
	if !ok {
		return false
	}
	to, ok := linearOrdinals[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Lifecycle advances persisted orders through the status state machine. All
// transitions are administrator-initiated except the initial PENDING entry,
// which the factory sets.
type Lifecycle struct {
	orders Repository
}

// NewLifecycle creates a Lifecycle over the given repository.
func NewLifecycle(orders Repository) *Lifecycle {
	return &Lifecycle{orders: orders}
}

// Transition moves the order identified by orderNumber to next, rejecting
// changes the state machine does not permit. Money fields are never touched.
func (l *Lifecycle) Transition(ctx context.Context, orderNumber string, next Status) (*Order, error) {
	o, err := l.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	if !o.Status.CanTransitionTo(next) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s -> %s", o.Status, next)
	}

	if err := l.orders.UpdateStatus(ctx, orderNumber, next); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = next
	return o, nil
}
