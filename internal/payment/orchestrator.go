package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

// CheckoutSpec is everything the external checkout UI needs to open.
type CheckoutSpec struct {
	OrderRef      string `json:"orderRef"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description,omitempty"`
	KeyID         string `json:"keyId"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
}

// Presenter hands a checkout spec to whatever hosts the gateway's UI. Present
// returns once the checkout is launched; the outcome arrives later through
// the callback bus.
type Presenter interface {
	Present(ctx context.Context, spec CheckoutSpec) error
}

// PresenterFunc adapts a function to the Presenter interface.
type PresenterFunc func(ctx context.Context, spec CheckoutSpec) error

func (f PresenterFunc) Present(ctx context.Context, spec CheckoutSpec) error {
	return f(ctx, spec)
}

// OrderCreator is the slice of the gateway the orchestrator needs.
type OrderCreator interface {
	CreateOrder(ctx context.Context, p CreateOrderParams) (*GatewayOrder, error)
}

// Orchestrator runs one payment attempt end to end: order first, checkout
// second, then a single callback decides the outcome. The hold's expiry is
// the attempt's deadline.
type Orchestrator struct {
	orders   OrderCreator
	checkout Presenter
	bus      *CallbackBus
	keyID    string
	log      *logrus.Logger
	now      func() time.Time
}

func NewOrchestrator(orders OrderCreator, checkout Presenter, bus *CallbackBus, keyID string, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		orders:   orders,
		checkout: checkout,
		bus:      bus,
		keyID:    keyID,
		log:      log,
		now:      time.Now,
	}
}

// Authorize runs one checkout for the hold and returns the settled attempt.
// Whenever an attempt came into existence it is returned alongside the error
// so the caller can record it. onUpdate, when non-nil, observes every state
// the attempt passes through.
func (o *Orchestrator) Authorize(ctx context.Context, hold *models.Hold, amount int64, currency string, onUpdate func(models.PaymentAttempt)) (*models.PaymentAttempt, error) {
	if hold == nil {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "no hold to pay for")
	}
	if amount <= 0 || currency == "" {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "amount and currency are required")
	}
	if hold.Expired(o.now()) {
		return nil, fault.Rejectedf(fault.ReasonHoldExpired, "hold %s has expired", hold.ID)
	}

	attempt := &models.PaymentAttempt{
		OrderID:   uuid.NewString(),
		HoldID:    hold.ID,
		Amount:    amount,
		Currency:  currency,
		State:     models.AttemptStateCreated,
		CreatedAt: o.now(),
	}
	o.notify(onUpdate, attempt)

	order, err := o.orders.CreateOrder(ctx, CreateOrderParams{
		Amount:   amount,
		Currency: currency,
		Receipt:  hold.ID,
		Notes:    map[string]string{"tripId": hold.TripID},
	})
	if err != nil {
		o.settle(attempt, models.AttemptStateGatewayError, "payment order could not be created", onUpdate)
		return attempt, fault.PaymentNotCompletedf(fault.ReasonGatewayError, "payment order could not be created").WithCause(err)
	}
	attempt.GatewayOrderRef = order.ID

	events, cancel := o.bus.Subscribe(order.ID)
	defer cancel()

	spec := CheckoutSpec{
		OrderRef:    order.ID,
		Amount:      amount,
		Currency:    currency,
		Description: "Seat booking " + hold.ID,
		KeyID:       o.keyID,
	}
	if len(hold.Passengers) > 0 {
		lead := hold.Passengers[0]
		spec.CustomerName = lead.Name
		spec.CustomerEmail = lead.Email
		spec.CustomerPhone = lead.Phone
	}

	attempt.State = models.AttemptStateAwaitingUser
	o.notify(onUpdate, attempt)

	if err := o.checkout.Present(ctx, spec); err != nil {
		o.settle(attempt, models.AttemptStateGatewayError, "checkout could not be presented", onUpdate)
		return attempt, fault.PaymentNotCompletedf(fault.ReasonGatewayError, "checkout could not be presented").WithCause(err)
	}

	deadline := time.NewTimer(hold.ExpiresAt.Sub(o.now()))
	defer deadline.Stop()

	select {
	case ev := <-events:
		return o.handleEvent(attempt, order.ID, ev, onUpdate)
	case <-deadline.C:
		o.settle(attempt, models.AttemptStateDismissed, "checkout window closed with the seat hold", onUpdate)
		return attempt, fault.PaymentNotCompletedf(fault.ReasonCheckoutTimedOut, "checkout window closed with the seat hold")
	case <-ctx.Done():
		o.settle(attempt, models.AttemptStateDismissed, "checkout abandoned", onUpdate)
		return attempt, fault.PaymentNotCompletedf(fault.ReasonCheckoutDismissed, "checkout abandoned").WithCause(ctx.Err())
	}
}

func (o *Orchestrator) handleEvent(attempt *models.PaymentAttempt, orderRef string, ev CheckoutEvent, onUpdate func(models.PaymentAttempt)) (*models.PaymentAttempt, error) {
	if ev.Kind == EventDismissed {
		o.settle(attempt, models.AttemptStateDismissed, "checkout dismissed", onUpdate)
		return attempt, fault.PaymentNotCompletedf(fault.ReasonCheckoutDismissed, "checkout dismissed before paying")
	}

	// A success event must name the order this attempt created and carry a
	// payment id. Anything else is never trusted.
	if ev.OrderRef != orderRef || ev.PaymentID == "" {
		o.log.WithFields(logrus.Fields{
			"expected_order": orderRef,
			"event_order":    ev.OrderRef,
		}).Warn("Discarding uncorrelated checkout success")
		o.settle(attempt, models.AttemptStateGatewayError, "uncorrelated success callback", onUpdate)
		return attempt, fault.PaymentNotCompletedf(fault.ReasonGatewayError, "gateway callback did not match the payment order")
	}

	attempt.PaymentID = ev.PaymentID
	attempt.Signature = ev.Signature
	o.settle(attempt, models.AttemptStateSucceeded, "", onUpdate)

	o.log.WithFields(logrus.Fields{
		"gateway_order": orderRef,
		"payment_id":    ev.PaymentID,
		"hold_id":       attempt.HoldID,
	}).Info("Checkout succeeded")

	return attempt, nil
}

func (o *Orchestrator) settle(attempt *models.PaymentAttempt, state models.AttemptState, reason string, onUpdate func(models.PaymentAttempt)) {
	attempt.State = state
	attempt.FailureReason = reason
	settledAt := o.now()
	attempt.SettledAt = &settledAt
	o.notify(onUpdate, attempt)

	if state != models.AttemptStateSucceeded {
		o.log.WithFields(logrus.Fields{
			"hold_id": attempt.HoldID,
			"state":   state,
			"reason":  reason,
		}).Info("Checkout ended without payment")
	}
}

func (o *Orchestrator) notify(onUpdate func(models.PaymentAttempt), attempt *models.PaymentAttempt) {
	if onUpdate != nil {
		onUpdate(*attempt)
	}
}
