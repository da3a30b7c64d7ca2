// Package events publishes booking lifecycle events to Kafka. Events are
// observational: a publish failure never affects the booking flow, and a nil
// producer swallows everything so event wiring stays optional.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

// Event types carried on the wire.
const (
	TypeStageChanged  = "booking.stage_changed"
	TypeHoldAbandoned = "booking.hold_abandoned"
	TypeConfirmed     = "booking.confirmed"
	TypeFailed        = "booking.failed"
)

// BookingEvent is the lifecycle event envelope.
type BookingEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	FromStage string    `json:"fromStage,omitempty"`
	TripID    string    `json:"tripId,omitempty"`
	HoldID    string    `json:"holdId,omitempty"`
	PaymentID string    `json:"paymentId,omitempty"`
	Code      string    `json:"confirmationCode,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StageChanged builds the event for a workflow stage transition.
func StageChanged(sessionID, from, to string) BookingEvent {
	return BookingEvent{
		Type:      TypeStageChanged,
		SessionID: sessionID,
		FromStage: from,
		Stage:     to,
		Timestamp: time.Now().UTC(),
	}
}

// HoldAbandoned builds the event for a live hold dropped by a restart.
func HoldAbandoned(sessionID string, hold models.Hold) BookingEvent {
	return BookingEvent{
		Type:      TypeHoldAbandoned,
		SessionID: sessionID,
		TripID:    hold.TripID,
		HoldID:    hold.ID,
		Timestamp: time.Now().UTC(),
	}
}

// Confirmed builds the event for a finished booking.
func Confirmed(sessionID string, record models.BookingRecord) BookingEvent {
	return BookingEvent{
		Type:      TypeConfirmed,
		SessionID: sessionID,
		TripID:    record.TripID,
		HoldID:    record.HoldID,
		PaymentID: record.PaymentID,
		Code:      record.ConfirmationCode,
		Timestamp: time.Now().UTC(),
	}
}

// Failed builds the event for a terminally failed flow.
func Failed(sessionID, stage, reason string) BookingEvent {
	return BookingEvent{
		Type:      TypeFailed,
		SessionID: sessionID,
		Stage:     stage,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// Producer writes booking events to a single topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	log    *logrus.Logger
}

// NewProducer builds a producer for the given brokers and topic.
func NewProducer(brokers []string, topic string, log *logrus.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Producer{writer: writer, topic: topic, log: log}
}

// Publish writes one event keyed by session so per-session ordering holds.
// Publishing on a nil producer is a no-op.
func (p *Producer) Publish(ctx context.Context, ev BookingEvent) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.SessionID),
		Value: data,
		Time:  ev.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}
	p.log.WithFields(logrus.Fields{"type": ev.Type, "session_id": ev.SessionID}).Debug("Booking event published")
	return nil
}

// PublishWithRetry retries Publish with a linear backoff. Used for events
// worth a second chance, like confirmations.
func (p *Producer) PublishWithRetry(ctx context.Context, ev BookingEvent, maxRetries int) error {
	if p == nil {
		return nil
	}
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := p.Publish(ctx, ev)
		if err == nil {
			return nil
		}
		lastErr = err
		p.log.WithError(err).WithField("attempt", i+1).Warn("Event publish failed")
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
