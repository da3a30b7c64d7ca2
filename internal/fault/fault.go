// Package fault defines the error taxonomy shared by the booking flow.
// Every failure crossing a package boundary is classified so that callers can
// branch on behavior (retry, step back, surface guidance) without parsing
// message strings.
package fault

import (
	"errors"
	"fmt"
)

// Class buckets a failure by the behavior it demands from the caller.
type Class string

const (
	// ClassCaller marks misuse of the API: invalid input or an illegal
	// workflow transition. Nothing was sent to a remote system.
	ClassCaller Class = "caller_error"
	// ClassTransient marks network-class failures where retrying the same
	// operation is safe and reasonable.
	ClassTransient Class = "transient_remote_failure"
	// ClassRejected marks a definitive business "no" from a remote system.
	// Retrying unchanged will not help; the flow must step back for fresher data.
	ClassRejected Class = "business_rejection"
	// ClassPaymentNotCompleted marks a checkout that ended without success;
	// paying again against the same hold is allowed while it lives.
	ClassPaymentNotCompleted Class = "payment_not_completed"
	// ClassConfirmationAmbiguous marks the dangerous window: payment reported
	// success but confirmation did not complete. Funds may be captured.
	ClassConfirmationAmbiguous Class = "confirmation_ambiguous"
)

// Reason codes carried by Error. Stable, machine-readable.
const (
	ReasonInvalidInput       = "invalid_input"
	ReasonIllegalTransition  = "illegal_transition"
	ReasonOperationInFlight  = "operation_in_flight"
	ReasonSearchFailed       = "search_failed"
	ReasonLayoutUnavailable  = "layout_unavailable"
	ReasonUnitsUnavailable   = "units_unavailable"
	ReasonHoldRejected       = "hold_rejected"
	ReasonHoldExpired        = "hold_expired"
	ReasonCheckoutDismissed  = "checkout_dismissed"
	ReasonCheckoutTimedOut   = "checkout_timed_out"
	ReasonGatewayError       = "gateway_error"
	ReasonConfirmationFailed = "confirmation_failed"
)

// Error is the typed error used across the booking flow.
type Error struct {
	Class   Class
	Reason  string
	Message string

	// FundsMayBeCaptured is set on confirmation ambiguity so callers never
	// render it as a plain failure.
	FundsMayBeCaptured bool

	// Units names the contested seat ids when the inventory service reports
	// them on an availability rejection.
	Units []string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Class, e.Reason, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Class, e.Reason, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches the underlying error and returns the fault.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithUnits attaches the contested seat ids and returns the fault.
func (e *Error) WithUnits(units []string) *Error {
	e.Units = units
	return e
}

// Callerf builds a caller error. No remote call happened.
func Callerf(reason, format string, args ...interface{}) *Error {
	return &Error{Class: ClassCaller, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Transientf builds a retryable remote failure.
func Transientf(reason, format string, args ...interface{}) *Error {
	return &Error{Class: ClassTransient, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Rejectedf builds a definitive business rejection.
func Rejectedf(reason, format string, args ...interface{}) *Error {
	return &Error{Class: ClassRejected, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// PaymentNotCompletedf builds a non-success checkout outcome.
func PaymentNotCompletedf(reason, format string, args ...interface{}) *Error {
	return &Error{Class: ClassPaymentNotCompleted, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Ambiguousf builds a confirmation-ambiguous fault. FundsMayBeCaptured is
// always set: by the time this class is raised the gateway has reported a
// successful payment.
func Ambiguousf(format string, args ...interface{}) *Error {
	return &Error{
		Class:              ClassConfirmationAmbiguous,
		Reason:             ReasonConfirmationFailed,
		Message:            fmt.Sprintf(format, args...),
		FundsMayBeCaptured: true,
	}
}

// ClassOf extracts the class from err, or "" when err carries no fault.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ""
}

// ReasonOf extracts the reason code from err, or "" when err carries no fault.
func ReasonOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

// IsClass reports whether err carries a fault of the given class.
func IsClass(err error, class Class) bool {
	return ClassOf(err) == class
}
