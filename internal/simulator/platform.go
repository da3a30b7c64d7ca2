// Package simulator hosts an in-memory stand-in for the three upstream
// systems the booking flow talks to: the trip inventory, the payment gateway
// and the operator's booking service. It exists so the whole flow, including
// its failure modes, can run end to end on one machine.
package simulator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

// Config tunes the simulated platform.
type Config struct {
	HoldTTL            time.Duration
	KeyID              string
	KeySecret          string
	PaymentFailureRate float64
	Seed               int64
	Now                func() time.Time
	Logger             *logrus.Logger
}

type holdEntry struct {
	hold models.Hold
}

// Order is a gateway-side payment order created ahead of a checkout. The
// payment proof fields never appear in order responses; they travel only in
// the checkout outcome.
type Order struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"` // created, paid, dismissed
	PaymentID string `json:"-"`
	Signature string `json:"-"`
}

// Platform is the in-memory upstream world. All state lives behind one lock;
// holds are reclaimed lazily whenever state is touched.
type Platform struct {
	mu   sync.Mutex
	now  func() time.Time
	rand *rand.Rand
	log  *logrus.Logger

	holdTTL     time.Duration
	keyID       string
	keySecret   string
	failureRate float64

	trips  map[string]models.Trip
	seats  map[string]map[string]*models.Seat // tripID -> seatID -> seat
	order  map[string][]string                // tripID -> seatIDs in layout order
	holds  map[string]*holdEntry              // holdID -> entry
	seatBy map[string]string                  // tripID/seatID -> holdID

	orders   map[string]*Order                // gateway order ref -> entry
	payments map[string]string                // paymentID -> order ref
	records  map[string]*models.BookingRecord // holdID|paymentID -> record
	consumed map[string]string                // holdID -> pair that consumed it

	failConfirms int
}

// New creates an empty platform. Call SeedDemoData or AddTrip before serving.
func New(cfg Config) *Platform {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 5 * time.Minute
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Platform{
		now:         cfg.Now,
		rand:        rand.New(rand.NewSource(cfg.Seed)),
		log:         cfg.Logger,
		holdTTL:     cfg.HoldTTL,
		keyID:       cfg.KeyID,
		keySecret:   cfg.KeySecret,
		failureRate: cfg.PaymentFailureRate,
		trips:       make(map[string]models.Trip),
		seats:       make(map[string]map[string]*models.Seat),
		order:       make(map[string][]string),
		holds:       make(map[string]*holdEntry),
		seatBy:      make(map[string]string),
		orders:      make(map[string]*Order),
		payments:    make(map[string]string),
		records:     make(map[string]*models.BookingRecord),
		consumed:    make(map[string]string),
	}
}

// AddTrip registers a trip and generates its sleeper layout: lower berths
// L1..Ln and upper berths U1..Un. Lower berths carry a surcharge.
func (p *Platform) AddTrip(trip models.Trip, berthsPerDeck int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.trips[trip.ID] = trip
	layout := make(map[string]*models.Seat, berthsPerDeck*2)
	var ids []string
	for i := 1; i <= berthsPerDeck; i++ {
		lower := &models.Seat{
			ID:       fmt.Sprintf("L%d", i),
			TripID:   trip.ID,
			Label:    fmt.Sprintf("L%d", i),
			Category: models.SeatCategorySleeperLower,
			Status:   models.SeatStatusAvailable,
			Price:    trip.BasePrice + trip.BasePrice/10,
		}
		upper := &models.Seat{
			ID:       fmt.Sprintf("U%d", i),
			TripID:   trip.ID,
			Label:    fmt.Sprintf("U%d", i),
			Category: models.SeatCategorySleeperUpper,
			Status:   models.SeatStatusAvailable,
			Price:    trip.BasePrice,
		}
		layout[lower.ID] = lower
		layout[upper.ID] = upper
		ids = append(ids, lower.ID, upper.ID)
	}
	p.seats[trip.ID] = layout
	p.order[trip.ID] = ids
}

// SeedDemoData loads a handful of routes with departures over the next week.
func (p *Platform) SeedDemoData() {
	routes := []struct {
		origin, destination string
		operator            string
		basePrice           int64
		hour                int
		rating              float64
	}{
		{"Bengaluru", "Hyderabad", "Orange Tours", 129900, 21, 4.5},
		{"Bengaluru", "Hyderabad", "VRL Express", 99900, 22, 4.1},
		{"Bengaluru", "Chennai", "SRS Travels", 89900, 23, 4.3},
		{"Pune", "Mumbai", "Neeta Travels", 55000, 7, 4.6},
		{"Mumbai", "Goa", "Paulo Travels", 149900, 20, 3.9},
	}
	day := p.now().Truncate(24 * time.Hour)
	for offset := 0; offset < 7; offset++ {
		for i, r := range routes {
			dep := day.AddDate(0, 0, offset).Add(time.Duration(r.hour) * time.Hour)
			p.AddTrip(models.Trip{
				ID:            fmt.Sprintf("trip-%s-%d", dep.Format("0102"), i+1),
				Operator:      r.operator,
				Origin:        r.origin,
				Destination:   r.destination,
				DepartureTime: dep,
				ArrivalTime:   dep.Add(7 * time.Hour),
				BasePrice:     r.basePrice,
				Currency:      "INR",
				Rating:        r.rating,
			}, 15)
		}
	}
	p.log.WithField("trips", len(p.trips)).Info("Demo inventory seeded")
}

// SearchTrips returns trips matching the route on the given calendar day.
// A zero date matches every day.
func (p *Platform) SearchTrips(origin, destination string, date time.Time) []models.Trip {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reclaimExpiredLocked()

	var out []models.Trip
	for _, trip := range p.trips {
		if !strings.EqualFold(trip.Origin, origin) || !strings.EqualFold(trip.Destination, destination) {
			continue
		}
		if !date.IsZero() {
			y1, m1, d1 := trip.DepartureTime.UTC().Date()
			y2, m2, d2 := date.UTC().Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}
		}
		trip.SeatsLeft = p.availableCountLocked(trip.ID)
		out = append(out, trip)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out
}

// Promotions returns the current display-only campaign content.
func (p *Platform) Promotions() []models.Promotion {
	return []models.Promotion{
		{Code: "FESTIVE10", Headline: "10% off sleeper berths this season", Discount: 10},
		{Code: "FIRSTRIDE", Headline: "Flat 100 off your first booking", Discount: 100},
	}
}

// SeatMap returns a snapshot of the trip's layout in deck order.
func (p *Platform) SeatMap(tripID string) ([]models.Seat, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reclaimExpiredLocked()

	layout, ok := p.seats[tripID]
	if !ok {
		return nil, false
	}
	out := make([]models.Seat, 0, len(layout))
	for _, id := range p.order[tripID] {
		out = append(out, *layout[id])
	}
	return out, true
}

// HoldResult is the outcome of a hold request. Code is empty on success.
type HoldResult struct {
	Hold        *models.Hold
	Code        string
	Message     string
	Unavailable []string
}

// PlaceHold grants an all-or-nothing hold on the requested seats. If any seat
// is unavailable nothing is held and the contested ids are reported. The
// manifest must include an adult.
func (p *Platform) PlaceHold(tripID string, seatIDs []string, passengers []models.Passenger) HoldResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reclaimExpiredLocked()

	layout, ok := p.seats[tripID]
	if !ok {
		return HoldResult{Code: "hold_rejected", Message: fmt.Sprintf("unknown trip %s", tripID)}
	}
	adult := false
	for _, pax := range passengers {
		if pax.Age >= 18 {
			adult = true
			break
		}
	}
	if !adult {
		return HoldResult{Code: "hold_rejected", Message: "operator requires at least one adult passenger"}
	}

	var unavailable []string
	var amount int64
	for _, id := range seatIDs {
		seat, exists := layout[id]
		if !exists || seat.Status != models.SeatStatusAvailable {
			unavailable = append(unavailable, id)
			continue
		}
		amount += seat.Price
	}
	if len(unavailable) > 0 {
		p.log.WithFields(logrus.Fields{"trip_id": tripID, "unavailable": unavailable}).Info("Hold refused, seats contested")
		return HoldResult{Code: "units_unavailable", Message: "requested seats are no longer available", Unavailable: unavailable}
	}

	hold := models.Hold{
		ID:         "hold_" + uuid.NewString()[:8],
		TripID:     tripID,
		SeatIDs:    append([]string(nil), seatIDs...),
		Passengers: append([]models.Passenger(nil), passengers...),
		Amount:     amount,
		Currency:   "INR",
		ExpiresAt:  p.now().Add(p.holdTTL),
	}
	p.holds[hold.ID] = &holdEntry{hold: hold}
	for _, id := range seatIDs {
		layout[id].Status = models.SeatStatusHeld
		p.seatBy[tripID+"/"+id] = hold.ID
	}

	p.log.WithFields(logrus.Fields{
		"hold_id":    hold.ID,
		"trip_id":    tripID,
		"seats":      seatIDs,
		"amount":     amount,
		"expires_at": hold.ExpiresAt,
	}).Info("Hold granted")
	return HoldResult{Hold: &hold}
}

// ReleaseHold frees a hold's seats ahead of expiry. Unknown ids are ignored.
func (p *Platform) ReleaseHold(holdID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked(holdID)
}

// VerifyGatewayAuth checks the basic-auth pair used for order creation.
func (p *Platform) VerifyGatewayAuth(keyID, keySecret string) bool {
	return keyID == p.keyID && keySecret == p.keySecret
}

// CreateOrder registers a gateway order for one checkout.
func (p *Platform) CreateOrder(amount int64, currency, receipt string) (*Order, string) {
	if amount <= 0 {
		return nil, "order amount must be positive"
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	entry := &Order{
		ID:       "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	p.orders[entry.ID] = entry
	p.log.WithFields(logrus.Fields{"order": entry.ID, "amount": amount}).Info("Gateway order created")
	return entry, ""
}

// CheckoutResult is the outcome of a simulated checkout interaction.
type CheckoutResult struct {
	PaymentID string
	Signature string
	OK        bool
	Message   string
}

// CompleteCheckout simulates the traveller paying on the gateway's page.
// It can decline randomly per the configured failure rate. Completing an
// already-paid order returns the original payment.
func (p *Platform) CompleteCheckout(orderRef string) CheckoutResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.orders[orderRef]
	if !ok {
		return CheckoutResult{Message: "unknown order"}
	}
	switch entry.Status {
	case "paid":
		return CheckoutResult{PaymentID: entry.PaymentID, Signature: entry.Signature, OK: true}
	case "dismissed":
		return CheckoutResult{Message: "checkout was dismissed"}
	}
	if p.rand.Float64() < p.failureRate {
		p.log.WithField("order", orderRef).Warn("Payment declined (simulated)")
		return CheckoutResult{Message: "payment declined by provider"}
	}

	entry.PaymentID = "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	entry.Signature = p.sign(orderRef, entry.PaymentID)
	entry.Status = "paid"
	p.payments[entry.PaymentID] = orderRef
	p.log.WithFields(logrus.Fields{"order": orderRef, "payment_id": entry.PaymentID}).Info("Checkout completed")
	return CheckoutResult{PaymentID: entry.PaymentID, Signature: entry.Signature, OK: true}
}

// DismissCheckout marks the checkout abandoned by the traveller.
func (p *Platform) DismissCheckout(orderRef string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.orders[orderRef]
	if !ok || entry.Status == "paid" {
		return false
	}
	entry.Status = "dismissed"
	return true
}

// ConfirmInput is the operator-side confirmation request.
type ConfirmInput struct {
	HoldID          string
	PaymentID       string
	GatewayOrderRef string
	Signature       string
	Amount          int64
	Currency        string
}

// ConfirmResult is the outcome of a confirmation. Code is empty on success.
type ConfirmResult struct {
	Record    *models.BookingRecord
	Code      string
	Message   string
	Transient bool
}

// ConfirmBooking issues the booking record for a paid hold. Confirmation is
// idempotent on the (holdId, paymentId) pair: replays return the original
// record. The payment facts are verified server-side before the hold's seats
// flip to booked.
func (p *Platform) ConfirmBooking(in ConfirmInput) ConfirmResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failConfirms > 0 {
		p.failConfirms--
		p.log.WithField("remaining", p.failConfirms).Warn("Confirmation failure injected")
		return ConfirmResult{Transient: true, Message: "booking service temporarily unavailable"}
	}

	pair := in.HoldID + "|" + in.PaymentID
	if record, ok := p.records[pair]; ok {
		p.log.WithField("confirmation_code", record.ConfirmationCode).Info("Confirmation replayed, returning original record")
		return ConfirmResult{Record: record}
	}
	if pair0, ok := p.consumed[in.HoldID]; ok && pair0 != pair {
		return ConfirmResult{Code: "hold_consumed", Message: "hold already confirmed with a different payment"}
	}

	p.reclaimExpiredLocked()
	entry, ok := p.holds[in.HoldID]
	if !ok {
		return ConfirmResult{Code: "hold_expired", Message: "hold expired or does not exist"}
	}

	orderRef, ok := p.payments[in.PaymentID]
	if !ok || orderRef != in.GatewayOrderRef {
		return ConfirmResult{Code: "payment_unknown", Message: "payment does not belong to the given order"}
	}
	if !hmac.Equal([]byte(p.sign(orderRef, in.PaymentID)), []byte(in.Signature)) {
		return ConfirmResult{Code: "signature_invalid", Message: "payment signature verification failed"}
	}
	order := p.orders[orderRef]
	if order.Amount != entry.hold.Amount || in.Amount != entry.hold.Amount {
		return ConfirmResult{Code: "amount_mismatch", Message: "paid amount does not match the hold"}
	}
	if in.Currency != "" && in.Currency != entry.hold.Currency {
		return ConfirmResult{Code: "amount_mismatch", Message: "currency does not match the hold"}
	}

	layout := p.seats[entry.hold.TripID]
	for _, id := range entry.hold.SeatIDs {
		if seat, exists := layout[id]; exists {
			seat.Status = models.SeatStatusBooked
		}
		delete(p.seatBy, entry.hold.TripID+"/"+id)
	}
	delete(p.holds, in.HoldID)

	record := &models.BookingRecord{
		ConfirmationCode: p.confirmationCodeLocked(in.HoldID),
		HoldID:           in.HoldID,
		PaymentID:        in.PaymentID,
		GatewayOrderRef:  in.GatewayOrderRef,
		TripID:           entry.hold.TripID,
		SeatIDs:          entry.hold.SeatIDs,
		Passengers:       entry.hold.Passengers,
		AmountCharged:    entry.hold.Amount,
		Currency:         entry.hold.Currency,
		IssuedAt:         p.now(),
	}
	p.records[pair] = record
	p.consumed[in.HoldID] = pair

	p.log.WithFields(logrus.Fields{
		"confirmation_code": record.ConfirmationCode,
		"hold_id":           in.HoldID,
		"payment_id":        in.PaymentID,
	}).Info("Booking confirmed")
	return ConfirmResult{Record: record}
}

// FailNextConfirms makes the next n confirmation calls fail transiently.
// Used to rehearse the ambiguous-confirmation path.
func (p *Platform) FailNextConfirms(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failConfirms = n
}

// SetPaymentFailureRate adjusts the simulated checkout decline rate.
func (p *Platform) SetPaymentFailureRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failureRate = rate
}

func (p *Platform) sign(orderRef, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(p.keySecret))
	mac.Write([]byte(orderRef + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *Platform) confirmationCodeLocked(holdID string) string {
	tail := strings.ToUpper(strings.TrimPrefix(holdID, "hold_"))
	if len(tail) > 4 {
		tail = tail[:4]
	}
	return fmt.Sprintf("WS%s%04d", tail, p.rand.Intn(10000))
}

func (p *Platform) availableCountLocked(tripID string) int {
	count := 0
	for _, seat := range p.seats[tripID] {
		if seat.Status == models.SeatStatusAvailable {
			count++
		}
	}
	return count
}

// reclaimExpiredLocked frees the seats of every hold past its expiry.
func (p *Platform) reclaimExpiredLocked() {
	now := p.now()
	for id, entry := range p.holds {
		if now.Before(entry.hold.ExpiresAt) {
			continue
		}
		p.log.WithField("hold_id", id).Info("Hold expired, reclaiming seats")
		p.releaseLocked(id)
	}
}

func (p *Platform) releaseLocked(holdID string) {
	entry, ok := p.holds[holdID]
	if !ok {
		return
	}
	layout := p.seats[entry.hold.TripID]
	for _, id := range entry.hold.SeatIDs {
		key := entry.hold.TripID + "/" + id
		if p.seatBy[key] != holdID {
			continue
		}
		if seat, exists := layout[id]; exists && seat.Status == models.SeatStatusHeld {
			seat.Status = models.SeatStatusAvailable
		}
		delete(p.seatBy, key)
	}
	delete(p.holds, holdID)
}
