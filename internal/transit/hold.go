package transit

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

// Reason codes the inventory service returns on hold rejection.
const (
	codeUnitsUnavailable = "units_unavailable"
	codeHoldRejected     = "hold_rejected"
)

type holdRequest struct {
	TripID     string             `json:"tripId"`
	SeatIDs    []string           `json:"seatIds"`
	Passengers []models.Passenger `json:"passengers"`
}

type holdData struct {
	HoldID    string    `json:"holdId"`
	TripID    string    `json:"tripId"`
	SeatIDs   []string  `json:"seatIds"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type unavailableData struct {
	Unavailable []string `json:"unavailable"`
}

// HoldManager places seat holds against the inventory service. It owns the
// local preconditions (manifest shape, seat count bounds, distinct ids) and
// verifies that a granted hold covers exactly the requested seats with an
// expiry in the future. Holds are never partial.
type HoldManager struct {
	client   *Client
	maxSeats int
	log      *logrus.Logger
}

// NewHoldManager creates a HoldManager. maxSeats bounds the seats per hold;
// zero means unbounded.
func NewHoldManager(client *Client, maxSeats int, log *logrus.Logger) *HoldManager {
	return &HoldManager{client: client, maxSeats: maxSeats, log: log}
}

// RequestHold asks the inventory service to hold the given seats with the
// given manifest. The hold either covers every requested seat or fails.
func (m *HoldManager) RequestHold(ctx context.Context, tripID string, seatIDs []string, passengers []models.Passenger) (*models.Hold, error) {
	if tripID == "" {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "trip id is required")
	}
	if len(seatIDs) == 0 {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "at least one seat must be selected")
	}
	if len(seatIDs) != len(passengers) {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "manifest has %d entries for %d seats", len(passengers), len(seatIDs))
	}
	if m.maxSeats > 0 && len(seatIDs) > m.maxSeats {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "at most %d seats per booking", m.maxSeats)
	}
	seen := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return nil, fault.Callerf(fault.ReasonInvalidInput, "seat %s selected twice", id)
		}
		seen[id] = struct{}{}
	}
	for i, p := range passengers {
		if err := validate.Struct(p); err != nil {
			return nil, fault.Callerf(fault.ReasonInvalidInput, "passenger %d: %v", i+1, err)
		}
	}

	env, status, err := m.client.postJSON(ctx, "/api/v1/holds", holdRequest{
		TripID:     tripID,
		SeatIDs:    seatIDs,
		Passengers: passengers,
	}, fault.ReasonHoldRejected)
	if err != nil {
		return nil, err
	}

	if !env.Success {
		switch env.Code {
		case codeUnitsUnavailable:
			var u unavailableData
			_ = json.Unmarshal(env.Data, &u)
			m.log.WithFields(logrus.Fields{"trip_id": tripID, "unavailable": u.Unavailable}).Warn("Seat hold lost race")
			// The cached layout is provably stale now.
			m.client.dropCachedSeatMap(ctx, tripID)
			return nil, fault.Rejectedf(fault.ReasonUnitsUnavailable, "%s", messageOr(env.Message, "requested seats are no longer available")).WithUnits(u.Unavailable)
		case codeHoldRejected:
			return nil, fault.Rejectedf(fault.ReasonHoldRejected, "%s", messageOr(env.Message, "hold request rejected"))
		}
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			return nil, fault.Transientf(fault.ReasonHoldRejected, "inventory service returned %d: %s", status, env.Message)
		}
		return nil, fault.Rejectedf(fault.ReasonHoldRejected, "%s", messageOr(env.Message, "hold request rejected"))
	}

	var data holdData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.HoldID == "" {
		return nil, fault.Rejectedf(fault.ReasonHoldRejected, "unreadable hold response")
	}

	// A hold that does not cover exactly the requested seats, or that is
	// already expired, is unusable regardless of what the service says.
	if !sameSeatSet(seatIDs, data.SeatIDs) {
		return nil, fault.Rejectedf(fault.ReasonHoldRejected, "hold %s does not cover the requested seats", data.HoldID)
	}
	if !data.ExpiresAt.After(m.client.now()) {
		return nil, fault.Rejectedf(fault.ReasonHoldRejected, "hold %s arrived already expired", data.HoldID)
	}

	hold := &models.Hold{
		ID:         data.HoldID,
		TripID:     tripID,
		SeatIDs:    append([]string(nil), seatIDs...),
		Passengers: append([]models.Passenger(nil), passengers...),
		Amount:     data.Amount,
		Currency:   data.Currency,
		ExpiresAt:  data.ExpiresAt,
	}

	m.log.WithFields(logrus.Fields{
		"hold_id":    hold.ID,
		"trip_id":    tripID,
		"seats":      hold.SeatIDs,
		"expires_at": hold.ExpiresAt,
	}).Info("Seat hold placed")

	return hold, nil
}

// sameSeatSet reports whether got is exactly the set want (order-insensitive,
// no duplicates). want is already known to be distinct.
func sameSeatSet(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	set := make(map[string]struct{}, len(want))
	for _, id := range want {
		set[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(got))
	for _, id := range got {
		if _, ok := set[id]; !ok {
			return false
		}
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
