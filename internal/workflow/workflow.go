// Package workflow implements the booking flow as a caller-driven state
// machine: search, trip selection, seat holds, payment and confirmation. The
// workflow owns all flow state; collaborators only return values that get
// folded in. Illegal transitions are rejected synchronously, and a single
// in-flight guard serializes every state-changing operation.
package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/ticketing"
)

type Stage string

const (
	StageSearch        Stage = "search"
	StageResults       Stage = "results"
	StageSeatSelection Stage = "seat_selection"
	StagePayment       Stage = "payment"
	StageConfirmation  Stage = "confirmation"
	StageFailed        Stage = "failed"
)

// Failure pins the stage a terminal failure happened in and why. The only
// exit from a failed workflow is Reset.
type Failure struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// HoldView is the snapshot projection of the current hold.
type HoldView struct {
	ID               string    `json:"holdId"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RemainingSeconds int       `json:"remainingSeconds"`
}

// Snapshot is a read-only projection of the workflow, sufficient to render
// booking progress. It never exposes anything callers could mutate into the
// workflow's own state.
type Snapshot struct {
	Stage        Stage                  `json:"stage"`
	Criteria     *models.SearchCriteria `json:"criteria,omitempty"`
	Trips        []models.Trip          `json:"trips,omitempty"`
	Promotions   []models.Promotion     `json:"promotions,omitempty"`
	SelectedTrip *models.Trip           `json:"selectedTrip,omitempty"`
	SeatMap      []models.Seat          `json:"seatMap,omitempty"`
	ChosenSeats  []string               `json:"chosenSeats,omitempty"`
	TotalAmount  int64                  `json:"totalAmount,omitempty"`
	Currency     string                 `json:"currency,omitempty"`
	Hold         *HoldView              `json:"hold,omitempty"`
	Attempt      *models.PaymentAttempt `json:"attempt,omitempty"`
	Record       *models.BookingRecord  `json:"record,omitempty"`
	Failure      *Failure               `json:"failure,omitempty"`
	Note         string                 `json:"note,omitempty"`
	Busy         bool                   `json:"busy"`
}

// TripSearcher finds trips and fetches the auxiliary content shown alongside
// them. The promotions fetch is best-effort and may run concurrently with the
// search itself.
type TripSearcher interface {
	SearchTrips(ctx context.Context, criteria models.SearchCriteria) ([]models.Trip, error)
	FetchPromotions(ctx context.Context) ([]models.Promotion, error)
}

// LayoutFetcher fetches the seat layout snapshot for a trip.
type LayoutFetcher interface {
	SeatMap(ctx context.Context, tripID string) ([]models.Seat, error)
}

// HoldPlacer places an all-or-nothing hold on specific seats.
type HoldPlacer interface {
	RequestHold(ctx context.Context, tripID string, seatIDs []string, passengers []models.Passenger) (*models.Hold, error)
}

// PaymentAuthorizer runs one external checkout against a live hold.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, hold *models.Hold, amount int64, currency string, onUpdate func(models.PaymentAttempt)) (*models.PaymentAttempt, error)
}

// BookingConfirmer exchanges a succeeded payment for a durable record.
type BookingConfirmer interface {
	Confirm(ctx context.Context, req ticketing.ConfirmRequest) (*models.BookingRecord, error)
}

// RecordArchiver persists confirmed bookings. Archiving is best-effort and
// never blocks a confirmation.
type RecordArchiver interface {
	Save(ctx context.Context, record *models.BookingRecord) error
}

// Deps are the workflow's collaborators. Archive may be nil.
type Deps struct {
	Search   TripSearcher
	Layouts  LayoutFetcher
	Holds    HoldPlacer
	Payments PaymentAuthorizer
	Tickets  BookingConfirmer
	Archive  RecordArchiver
}

// Hooks observe workflow progress. All fields are optional. Callbacks receive
// a finished snapshot and must not call back into the workflow.
type Hooks struct {
	OnTransition    func(from, to Stage, snap Snapshot)
	OnFailure       func(stage Stage, reason string, snap Snapshot)
	OnHoldAbandoned func(hold models.Hold, snap Snapshot)
}

// Config carries per-workflow settings.
type Config struct {
	// Profile is the read-only traveller context. Its contact fields
	// pre-fill manifest entries that leave theirs empty.
	Profile models.UserProfile
	// Currency is the fallback when a hold does not state one.
	Currency string
	Hooks    Hooks
	Logger   *logrus.Logger
	// Now is the workflow clock; defaults to time.Now.
	Now func() time.Time
}

// Workflow is one traveller's booking flow. Safe for concurrent use; at most
// one state-changing operation runs at a time.
type Workflow struct {
	deps Deps
	cfg  Config
	log  *logrus.Logger
	now  func() time.Time

	mu           sync.Mutex
	busyOp       string
	pendingHooks []func()
	stage        Stage
	criteria     *models.SearchCriteria
	trips        []models.Trip
	promos       []models.Promotion
	selected     *models.Trip
	seatMap      []models.Seat
	hold         *models.Hold
	attempt      *models.PaymentAttempt
	record       *models.BookingRecord
	failure      *Failure
	note         string
}

// New creates a workflow in the search stage. Every Deps field except
// Archive is required.
func New(deps Deps, cfg Config) *Workflow {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Workflow{
		deps:  deps,
		cfg:   cfg,
		log:   cfg.Logger,
		now:   cfg.Now,
		stage: StageSearch,
	}
}

// Snapshot returns the current read-only projection. It is always available,
// including while a state-changing operation is in flight.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Snapshot {
	snap := Snapshot{
		Stage:      w.stage,
		Criteria:   w.criteria,
		Trips:      w.trips,
		Promotions: w.promos,
		SeatMap:    w.seatMap,
		Failure:    w.failure,
		Note:       w.note,
		Busy:       w.busyOp != "",
	}
	if w.selected != nil {
		trip := *w.selected
		snap.SelectedTrip = &trip
	}
	if w.hold != nil {
		snap.ChosenSeats = w.hold.SeatIDs
		snap.TotalAmount = w.hold.Amount
		snap.Currency = w.currencyLocked()
		snap.Hold = &HoldView{
			ID:               w.hold.ID,
			ExpiresAt:        w.hold.ExpiresAt,
			RemainingSeconds: w.hold.RemainingSeconds(w.now()),
		}
	}
	if w.attempt != nil {
		attempt := *w.attempt
		snap.Attempt = &attempt
	}
	if w.record != nil {
		record := *w.record
		snap.Record = &record
	}
	return snap
}

func (w *Workflow) currencyLocked() string {
	if w.hold != nil && w.hold.Currency != "" {
		return w.hold.Currency
	}
	return w.cfg.Currency
}

// begin acquires the in-flight guard, or explains why it cannot.
func (w *Workflow) begin(op string) error {
	if w.busyOp != "" {
		return opInFlight(op, w.busyOp)
	}
	w.busyOp = op
	return nil
}

func (w *Workflow) finish() {
	w.busyOp = ""
}

// deferHook queues a callback to run once the current fold releases the lock.
// Hooks never run while the workflow is locked.
func (w *Workflow) deferHook(fn func()) {
	w.pendingHooks = append(w.pendingHooks, fn)
}

// finishAndUnlock clears the in-flight guard, releases the lock and then
// flushes any hooks queued during the fold.
func (w *Workflow) finishAndUnlock() {
	w.finish()
	pending := w.pendingHooks
	w.pendingHooks = nil
	w.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (w *Workflow) fireTransition(from, to Stage, snap Snapshot) {
	w.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("Workflow transition")
	if w.cfg.Hooks.OnTransition != nil {
		w.cfg.Hooks.OnTransition(from, to, snap)
	}
}

func (w *Workflow) fireFailure(stage Stage, reason string, snap Snapshot) {
	w.log.WithFields(logrus.Fields{"stage": stage, "reason": reason}).Warn("Workflow failed")
	if w.cfg.Hooks.OnFailure != nil {
		w.cfg.Hooks.OnFailure(stage, reason, snap)
	}
}

func (w *Workflow) fireHoldAbandoned(hold models.Hold, snap Snapshot) {
	w.log.WithFields(logrus.Fields{
		"hold_id":    hold.ID,
		"expires_at": hold.ExpiresAt,
	}).Warn("Abandoning live seat hold; seats stay blocked until expiry")
	if w.cfg.Hooks.OnHoldAbandoned != nil {
		w.cfg.Hooks.OnHoldAbandoned(hold, snap)
	}
}
