package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

type fakeOrders struct {
	fail  bool
	calls int
}

func (f *fakeOrders) CreateOrder(_ context.Context, p CreateOrderParams) (*GatewayOrder, error) {
	f.calls++
	if f.fail {
		return nil, fault.Transientf(fault.ReasonGatewayError, "gateway 502")
	}
	return &GatewayOrder{ID: "order_123", Amount: p.Amount, Currency: p.Currency, Receipt: p.Receipt, Status: "created"}, nil
}

func liveHold() *models.Hold {
	return &models.Hold{
		ID:        "hold-1",
		TripID:    "trip-1",
		SeatIDs:   []string{"1A", "1B"},
		Amount:    170000,
		Currency:  "INR",
		ExpiresAt: time.Now().Add(time.Minute),
		Passengers: []models.Passenger{
			{Name: "Asha Rao", Age: 29, Gender: "female", Email: "asha@example.com"},
		},
	}
}

func TestAuthorize_Success(t *testing.T) {
	bus := NewCallbackBus()
	orders := &fakeOrders{}
	var presented CheckoutSpec

	o := NewOrchestrator(orders, PresenterFunc(func(_ context.Context, spec CheckoutSpec) error {
		presented = spec
		bus.Publish(CheckoutEvent{Kind: EventSuccess, OrderRef: spec.OrderRef, PaymentID: "pay_789"})
		return nil
	}), bus, "rzp_test_key", testLogger())

	var states []models.AttemptState
	attempt, err := o.Authorize(context.Background(), liveHold(), 170000, "INR", func(a models.PaymentAttempt) {
		states = append(states, a.State)
	})

	require.NoError(t, err)
	assert.Equal(t, models.AttemptStateSucceeded, attempt.State)
	assert.Equal(t, "pay_789", attempt.PaymentID)
	assert.Equal(t, "order_123", attempt.GatewayOrderRef)
	assert.Equal(t, "hold-1", attempt.HoldID)
	require.NotNil(t, attempt.SettledAt)

	// The attempt walks created -> awaiting_user -> succeeded, in order.
	assert.Equal(t, []models.AttemptState{
		models.AttemptStateCreated,
		models.AttemptStateAwaitingUser,
		models.AttemptStateSucceeded,
	}, states)

	// The checkout opened against the order created server-side.
	assert.Equal(t, "order_123", presented.OrderRef)
	assert.Equal(t, "rzp_test_key", presented.KeyID)
	assert.Equal(t, "Asha Rao", presented.CustomerName)
}

func TestAuthorize_Dismissed(t *testing.T) {
	bus := NewCallbackBus()
	o := NewOrchestrator(&fakeOrders{}, PresenterFunc(func(_ context.Context, spec CheckoutSpec) error {
		bus.Publish(CheckoutEvent{Kind: EventDismissed, OrderRef: spec.OrderRef})
		return nil
	}), bus, "k", testLogger())

	attempt, err := o.Authorize(context.Background(), liveHold(), 170000, "INR", nil)

	require.Error(t, err)
	assert.Equal(t, fault.ClassPaymentNotCompleted, fault.ClassOf(err))
	assert.Equal(t, fault.ReasonCheckoutDismissed, fault.ReasonOf(err))
	require.NotNil(t, attempt)
	assert.Equal(t, models.AttemptStateDismissed, attempt.State)
	assert.True(t, attempt.State.Retryable())
}

func TestAuthorize_OrderCreateFails(t *testing.T) {
	bus := NewCallbackBus()
	presented := false
	o := NewOrchestrator(&fakeOrders{fail: true}, PresenterFunc(func(_ context.Context, _ CheckoutSpec) error {
		presented = true
		return nil
	}), bus, "k", testLogger())

	attempt, err := o.Authorize(context.Background(), liveHold(), 170000, "INR", nil)

	require.Error(t, err)
	assert.Equal(t, fault.ClassPaymentNotCompleted, fault.ClassOf(err))
	assert.Equal(t, fault.ReasonGatewayError, fault.ReasonOf(err))
	require.NotNil(t, attempt)
	assert.Equal(t, models.AttemptStateGatewayError, attempt.State)
	assert.False(t, presented, "checkout must not open without a gateway order")
}

func TestAuthorize_ExpiredHoldRejected(t *testing.T) {
	bus := NewCallbackBus()
	orders := &fakeOrders{}
	o := NewOrchestrator(orders, PresenterFunc(func(_ context.Context, _ CheckoutSpec) error {
		return nil
	}), bus, "k", testLogger())

	hold := liveHold()
	hold.ExpiresAt = time.Now().Add(-time.Second)
	attempt, err := o.Authorize(context.Background(), hold, 170000, "INR", nil)

	require.Error(t, err)
	assert.Nil(t, attempt)
	assert.Equal(t, fault.ClassRejected, fault.ClassOf(err))
	assert.Equal(t, fault.ReasonHoldExpired, fault.ReasonOf(err))
	assert.Zero(t, orders.calls, "no order may be created against an expired hold")
}

func TestAuthorize_DeadlineClosesCheckout(t *testing.T) {
	bus := NewCallbackBus()
	o := NewOrchestrator(&fakeOrders{}, PresenterFunc(func(_ context.Context, _ CheckoutSpec) error {
		return nil // user never completes the checkout
	}), bus, "k", testLogger())

	hold := liveHold()
	hold.ExpiresAt = time.Now().Add(80 * time.Millisecond)
	attempt, err := o.Authorize(context.Background(), hold, 170000, "INR", nil)

	require.Error(t, err)
	assert.Equal(t, fault.ClassPaymentNotCompleted, fault.ClassOf(err))
	assert.Equal(t, fault.ReasonCheckoutTimedOut, fault.ReasonOf(err))
	assert.Equal(t, models.AttemptStateDismissed, attempt.State)
}

func TestAuthorize_SuccessWithoutPaymentIDRejected(t *testing.T) {
	bus := NewCallbackBus()
	o := NewOrchestrator(&fakeOrders{}, PresenterFunc(func(_ context.Context, spec CheckoutSpec) error {
		bus.Publish(CheckoutEvent{Kind: EventSuccess, OrderRef: spec.OrderRef}) // no payment id
		return nil
	}), bus, "k", testLogger())

	attempt, err := o.Authorize(context.Background(), liveHold(), 170000, "INR", nil)

	require.Error(t, err)
	assert.Equal(t, fault.ReasonGatewayError, fault.ReasonOf(err))
	assert.Equal(t, models.AttemptStateGatewayError, attempt.State)
	assert.Empty(t, attempt.PaymentID)
}

func TestAuthorize_ContextCancelled(t *testing.T) {
	bus := NewCallbackBus()
	ctx, cancel := context.WithCancel(context.Background())
	o := NewOrchestrator(&fakeOrders{}, PresenterFunc(func(_ context.Context, _ CheckoutSpec) error {
		cancel()
		return nil
	}), bus, "k", testLogger())

	attempt, err := o.Authorize(ctx, liveHold(), 170000, "INR", nil)

	require.Error(t, err)
	assert.Equal(t, fault.ClassPaymentNotCompleted, fault.ClassOf(err))
	assert.Equal(t, models.AttemptStateDismissed, attempt.State)
	assert.ErrorIs(t, err, context.Canceled)
}
