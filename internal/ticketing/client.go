// Package ticketing confirms paid holds with the booking service and renders
// e-tickets for confirmed bookings. Confirmation is idempotent on the
// (holdId, paymentId) pair; retries always resend the identical pair.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

// ConfirmRequest carries the idempotency pair plus the payment facts the
// booking service verifies server-side before issuing a record.
type ConfirmRequest struct {
	HoldID          string `json:"holdId"`
	PaymentID       string `json:"paymentId"`
	GatewayOrderRef string `json:"gatewayOrderRef"`
	Signature       string `json:"signature,omitempty"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

type confirmEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// Client talks to the booking/ticketing service.
type Client struct {
	baseURL string
	http    *http.Client
	retries int
	backoff time.Duration
	log     *logrus.Logger
}

// NewClient creates a ticketing client. retries bounds the automatic resends
// of a confirm on network-class failures; the pair never changes between them.
func NewClient(baseURL string, timeout time.Duration, retries int, log *logrus.Logger) *Client {
	if retries < 1 {
		retries = 1
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		retries: retries,
		backoff: 250 * time.Millisecond,
		log:     log,
	}
}

// Confirm exchanges a succeeded payment and its hold for a booking record.
// Replaying the same (holdId, paymentId) pair returns the original record.
func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (*models.BookingRecord, error) {
	if req.HoldID == "" || req.PaymentID == "" || req.GatewayOrderRef == "" {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "confirmation requires hold, payment and order references")
	}
	if req.Amount <= 0 || req.Currency == "" {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "confirmation requires the charged amount and currency")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "encode confirmation: %v", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fault.Transientf(fault.ReasonConfirmationFailed, "confirmation interrupted").WithCause(ctx.Err())
			case <-time.After(c.backoff):
			}
			c.log.WithFields(logrus.Fields{
				"hold_id":    req.HoldID,
				"payment_id": req.PaymentID,
				"attempt":    attempt,
			}).Warn("Retrying booking confirmation with the same pair")
		}

		record, retryable, err := c.confirmOnce(ctx, payload, req)
		if err == nil {
			return record, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

// confirmOnce performs a single confirm round trip. retryable reports whether
// the failure is network-class and safe to resend.
func (c *Client) confirmOnce(ctx context.Context, payload []byte, req ConfirmRequest) (*models.BookingRecord, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/bookings/confirm", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fault.Transientf(fault.ReasonConfirmationFailed, "build confirmation request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, true, fault.Transientf(fault.ReasonConfirmationFailed, "booking service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	var env confirmEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, true, fault.Transientf(fault.ReasonConfirmationFailed, "malformed confirmation response (status %d)", resp.StatusCode).WithCause(err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fault.Transientf(fault.ReasonConfirmationFailed, "booking service returned %d: %s", resp.StatusCode, env.Message)
	}
	if !env.Success {
		reason := fault.ReasonConfirmationFailed
		if env.Code == "hold_expired" {
			reason = fault.ReasonHoldExpired
		}
		return nil, false, fault.Rejectedf(reason, "%s", messageOr(env.Message, "booking confirmation rejected"))
	}

	var record models.BookingRecord
	if err := json.Unmarshal(env.Data, &record); err != nil || record.ConfirmationCode == "" {
		return nil, false, fault.Rejectedf(fault.ReasonConfirmationFailed, "unreadable booking record")
	}
	if record.HoldID != req.HoldID || record.PaymentID != req.PaymentID {
		return nil, false, fault.Rejectedf(fault.ReasonConfirmationFailed, "booking record does not match the confirmed pair")
	}

	c.log.WithFields(logrus.Fields{
		"confirmation_code": record.ConfirmationCode,
		"hold_id":           record.HoldID,
		"payment_id":        record.PaymentID,
	}).Info("Booking confirmed")

	return &record, false, nil
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
