package payment

import "sync"

type EventKind string

const (
	EventSuccess   EventKind = "success"
	EventDismissed EventKind = "dismissed"
)

// CheckoutEvent is what the external checkout reports back for one order.
// Exactly one event is delivered per subscription; anything after the first
// is dropped.
type CheckoutEvent struct {
	Kind      EventKind `json:"kind"`
	OrderRef  string    `json:"orderRef"`
	PaymentID string    `json:"paymentId,omitempty"`
	Signature string    `json:"signature,omitempty"` // opaque, verified server-side at confirmation
}

// CallbackBus routes checkout events to the single waiter for each gateway
// order. Subscriptions are one-shot: the first published event consumes the
// subscription, and events for unknown orders are dropped so a stale checkout
// handler can never touch a newer attempt.
type CallbackBus struct {
	mu   sync.Mutex
	subs map[string]chan CheckoutEvent
}

func NewCallbackBus() *CallbackBus {
	return &CallbackBus{subs: make(map[string]chan CheckoutEvent)}
}

// Subscribe registers the waiter for orderRef. The returned cancel must be
// called on every exit path; it is safe to call more than once.
func (b *CallbackBus) Subscribe(orderRef string) (<-chan CheckoutEvent, func()) {
	ch := make(chan CheckoutEvent, 1)

	b.mu.Lock()
	b.subs[orderRef] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if b.subs[orderRef] == ch {
			delete(b.subs, orderRef)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to the subscription for its order ref and
// reports whether anyone was waiting. Delivery consumes the subscription.
func (b *CallbackBus) Publish(ev CheckoutEvent) bool {
	b.mu.Lock()
	ch, ok := b.subs[ev.OrderRef]
	if ok {
		delete(b.subs, ev.OrderRef)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	ch <- ev
	return true
}
