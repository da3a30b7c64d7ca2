package models

import "time"

// Passenger is one manifest entry, positionally tied to a chosen seat.
// Manifest entries are supplied by the caller and never fabricated.
type Passenger struct {
	Name   string `json:"name" validate:"required"`
	Age    int    `json:"age" validate:"required,gte=1,lte=120"`
	Gender string `json:"gender" validate:"required,oneof=male female other"`
	Phone  string `json:"phone" validate:"omitempty,min=7,max=15"`
	Email  string `json:"email" validate:"omitempty,email"`
}

// Hold is a time-boxed exclusive claim on specific seats of a trip. Once
// granted it only ever expires or gets consumed by a booking; it is never
// extended, transferred or partially released.
type Hold struct {
	ID         string      `json:"holdId"`
	TripID     string      `json:"tripId"`
	SeatIDs    []string    `json:"seatIds"`
	Passengers []Passenger `json:"passengers"`
	Amount     int64       `json:"amount"` // minor currency units
	Currency   string      `json:"currency"`
	ExpiresAt  time.Time   `json:"expiresAt"`
}

// Expired reports whether the hold is no longer usable at the given instant.
func (h *Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// RemainingSeconds returns the whole seconds left before expiry, floored at zero.
func (h *Hold) RemainingSeconds(now time.Time) int {
	remaining := int(h.ExpiresAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

type AttemptState string

const (
	AttemptStateCreated      AttemptState = "created"
	AttemptStateAwaitingUser AttemptState = "awaiting_user"
	AttemptStateSucceeded    AttemptState = "succeeded"
	AttemptStateDismissed    AttemptState = "dismissed"
	AttemptStateGatewayError AttemptState = "gateway_error"
)

// Terminal reports whether the attempt has reached a final state.
func (s AttemptState) Terminal() bool {
	switch s {
	case AttemptStateSucceeded, AttemptStateDismissed, AttemptStateGatewayError:
		return true
	}
	return false
}

// Retryable reports whether a fresh attempt may follow this one while the
// hold is still alive. A succeeded attempt is never retried.
func (s AttemptState) Retryable() bool {
	return s == AttemptStateDismissed || s == AttemptStateGatewayError
}

// PaymentAttempt tracks one pass through the external checkout for a hold.
type PaymentAttempt struct {
	OrderID         string       `json:"orderId"`
	HoldID          string       `json:"holdId"`
	GatewayOrderRef string       `json:"gatewayOrderRef"`
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
	State           AttemptState `json:"state"`
	PaymentID       string       `json:"paymentId,omitempty"`
	Signature       string       `json:"signature,omitempty"` // opaque gateway proof, verified at confirmation
	FailureReason   string       `json:"failureReason,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	SettledAt       *time.Time   `json:"settledAt,omitempty"`
}

// BookingRecord is the durable outcome of a confirmed booking. Its creation
// is the single irreversible step of the whole flow.
type BookingRecord struct {
	ConfirmationCode string      `json:"confirmationCode"`
	HoldID           string      `json:"holdId"`
	PaymentID        string      `json:"paymentId"`
	GatewayOrderRef  string      `json:"gatewayOrderRef"`
	TripID           string      `json:"tripId"`
	SeatIDs          []string    `json:"seatIds"`
	Passengers       []Passenger `json:"passengers"`
	AmountCharged    int64       `json:"amountCharged"`
	Currency         string      `json:"currency"`
	IssuedAt         time.Time   `json:"issuedAt"`
}

// UserProfile is the read-only traveller context a workflow runs under. It
// pre-fills empty contact fields on manifest entries; it never supplies a
// passenger name.
type UserProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
