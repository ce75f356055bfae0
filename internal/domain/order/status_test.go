package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_LinearPathPermitted(t *testing.T) {
	path := []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, path[i].CanTransitionTo(path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestStatus_SkipAheadRejected(t *testing.T) {
	assert.False(t, StatusPending.CanTransitionTo(StatusShipped))
	assert.False(t, StatusPending.CanTransitionTo(StatusProcessing))
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusDelivered))
	assert.False(t, StatusProcessing.CanTransitionTo(StatusDelivered))
}

func TestStatus_BackwardRejected(t *testing.T) {
	assert.False(t, StatusDelivered.CanTransitionTo(StatusProcessing))
	assert.False(t, StatusShipped.CanTransitionTo(StatusConfirmed))
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusPending))
}

func TestStatus_AbsorbingStates(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusShipped.CanTransitionTo(StatusRefunded))

	for _, terminal := range []Status{StatusDelivered, StatusCancelled, StatusRefunded} {
		for _, next := range []Status{
			StatusPending, StatusConfirmed, StatusProcessing,
			StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded,
		} {
			assert.False(t, terminal.CanTransitionTo(next), "%s -> %s", terminal, next)
		}
	}
}

func TestStatus_Ordinal(t *testing.T) {
	assert.Equal(t, 0, StatusPending.Ordinal())
	assert.Equal(t, 4, StatusDelivered.Ordinal())
	assert.Equal(t, -1, StatusCancelled.Ordinal())
	assert.Equal(t, -1, StatusRefunded.Ordinal())
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("shipped")
	require.Error(t, err)
	_, err = ParseStatus("LOST")
	require.Error(t, err)
}

func TestLifecycle_Transition(t *testing.T) {
	repo := newOrderRepo(nil)
	o := &Order{ID: "o1", OrderNumber: "ORD-1", Status: StatusPending}
	repo.orders[o.OrderNumber] = o

	lc := NewLifecycle(repo)
	ctx := context.Background()

	got, err := lc.Transition(ctx, "ORD-1", StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	_, err = lc.Transition(ctx, "ORD-1", StatusPending)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = lc.Transition(ctx, "ORD-1", StatusCancelled)
	require.NoError(t, err)
	_, err = lc.Transition(ctx, "ORD-1", StatusProcessing)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = lc.Transition(ctx, "missing", StatusConfirmed)
	require.ErrorIs(t, err, ErrNotFound)
}
