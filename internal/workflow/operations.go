package workflow

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/ticketing"
)

func opInFlight(op, running string) error {
	return fault.Callerf(fault.ReasonOperationInFlight, "%s refused: %s is still in flight", op, running)
}

func illegalTransition(op string, stage Stage) error {
	return fault.Callerf(fault.ReasonIllegalTransition, "%s is not allowed in stage %q", op, stage)
}

// fillContacts copies the manifest and fills empty contact fields from the
// traveller profile. Names are never touched.
func fillContacts(passengers []models.Passenger, profile models.UserProfile) []models.Passenger {
	out := make([]models.Passenger, len(passengers))
	copy(out, passengers)
	for i := range out {
		if out[i].Phone == "" {
			out[i].Phone = profile.Phone
		}
		if out[i].Email == "" {
			out[i].Email = profile.Email
		}
	}
	return out
}

// Search runs a trip search and moves the workflow to the results stage. An
// empty result set is not an error: the workflow stays in search with a note.
// Promotions are fetched concurrently and dropped on failure. Search is legal
// from the search and results stages only.
func (w *Workflow) Search(ctx context.Context, criteria models.SearchCriteria) (Snapshot, error) {
	w.mu.Lock()
	if err := w.begin("search"); err != nil {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, err
	}
	if w.stage != StageSearch && w.stage != StageResults {
		w.finish()
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, illegalTransition("search", snap.Stage)
	}
	w.mu.Unlock()

	var (
		promos []models.Promotion
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, err := w.deps.Search.FetchPromotions(ctx)
		if err != nil {
			w.log.WithError(err).Debug("Promotions unavailable, continuing without")
			return
		}
		promos = got
	}()
	trips, err := w.deps.Search.SearchTrips(ctx, criteria)
	wg.Wait()

	w.mu.Lock()
	defer w.finishAndUnlock()
	if err != nil {
		// Prior results stay usable; the caller may retry.
		return w.snapshotLocked(), err
	}

	from := w.stage
	crit := criteria
	w.criteria = &crit
	w.trips = trips
	w.promos = promos
	w.selected = nil
	w.seatMap = nil
	if len(trips) == 0 {
		w.stage = StageSearch
		w.note = "no trips matched; adjust the route or date and search again"
	} else {
		w.stage = StageResults
		w.note = ""
	}
	snap := w.snapshotLocked()
	to := w.stage
	w.deferHook(func() { w.fireTransition(from, to, snap) })
	return snap, nil
}

// SelectTrip picks one trip from the current results and fetches its seat
// layout. The workflow enters seat selection only once the layout is in hand.
// Re-selecting a different trip is allowed until a hold exists.
func (w *Workflow) SelectTrip(ctx context.Context, tripID string) (Snapshot, error) {
	w.mu.Lock()
	if err := w.begin("select_trip"); err != nil {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, err
	}
	if w.stage != StageResults && w.stage != StageSeatSelection {
		w.finish()
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, illegalTransition("select_trip", snap.Stage)
	}
	if w.hold != nil {
		w.finish()
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, fault.Callerf(fault.ReasonIllegalTransition, "trip cannot change once seats are held; start a new search")
	}
	var trip *models.Trip
	for i := range w.trips {
		if w.trips[i].ID == tripID {
			t := w.trips[i]
			trip = &t
			break
		}
	}
	if trip == nil {
		w.finish()
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, fault.Callerf(fault.ReasonInvalidInput, "trip %q is not part of the current results", tripID)
	}
	w.mu.Unlock()

	layout, err := w.deps.Layouts.SeatMap(ctx, tripID)

	w.mu.Lock()
	defer w.finishAndUnlock()
	if err != nil {
		// Without a layout there is nothing to select from; stay put.
		return w.snapshotLocked(), err
	}

	from := w.stage
	w.selected = trip
	w.seatMap = layout
	w.stage = StageSeatSelection
	w.note = ""
	snap := w.snapshotLocked()
	w.deferHook(func() { w.fireTransition(from, StageSeatSelection, snap) })
	return snap, nil
}

// Back steps one stage backwards: seat selection to results, results to
// search. It is purely local and is refused outright once a hold exists.
func (w *Workflow) Back() (Snapshot, error) {
	w.mu.Lock()
	if err := w.begin("back"); err != nil {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, err
	}
	defer w.finishAndUnlock()

	if w.hold != nil {
		return w.snapshotLocked(), fault.Callerf(fault.ReasonIllegalTransition, "cannot go back once seats are held; start a new search instead")
	}
	from := w.stage
	switch w.stage {
	case StageSeatSelection:
		w.selected = nil
		w.seatMap = nil
		w.stage = StageResults
	case StageResults:
		w.trips = nil
		w.promos = nil
		w.stage = StageSearch
	default:
		return w.snapshotLocked(), illegalTransition("back", w.stage)
	}
	w.note = ""
	snap := w.snapshotLocked()
	w.deferHook(func() { w.fireTransition(from, snap.Stage, snap) })
	return snap, nil
}

// SelectSeats places an all-or-nothing hold on the given seats for the given
// manifest and, on success, moves the workflow to payment. If any requested
// seat was taken in the meantime the layout is refreshed automatically and
// the workflow stays in seat selection.
func (w *Workflow) SelectSeats(ctx context.Context, seatIDs []string, passengers []models.Passenger) (Snapshot, error) {
	w.mu.Lock()
	if err := w.begin("select_seats"); err != nil {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, err
	}
	if w.stage != StageSeatSelection {
		w.finish()
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, illegalTransition("select_seats", snap.Stage)
	}
	if w.hold != nil {
		w.finish()
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, fault.Callerf(fault.ReasonIllegalTransition, "seats are already held; pay or start a new search")
	}
	tripID := w.selected.ID
	manifest := fillContacts(passengers, w.cfg.Profile)
	w.mu.Unlock()

	hold, err := w.deps.Holds.RequestHold(ctx, tripID, seatIDs, manifest)
	if err != nil && fault.ReasonOf(err) == fault.ReasonUnitsUnavailable {
		return w.reenterSeatSelection(ctx, tripID, err,
			"some of those seats were just taken; pick again from the refreshed layout")
	}

	w.mu.Lock()
	defer w.finishAndUnlock()
	if err != nil {
		return w.snapshotLocked(), err
	}

	from := w.stage
	w.hold = hold
	w.attempt = nil
	w.stage = StagePayment
	w.note = ""
	snap := w.snapshotLocked()
	w.log.WithFields(logrus.Fields{
		"hold_id": hold.ID,
		"trip_id": hold.TripID,
		"seats":   len(hold.SeatIDs),
		"amount":  hold.Amount,
	}).Info("Seats held, awaiting payment")
	w.deferHook(func() { w.fireTransition(from, StagePayment, snap) })
	return snap, nil
}

// Pay drives one full payment round: authorize through the external checkout,
// then confirm the booking. Calling Pay again after a failed attempt starts a
// fresh attempt against the same hold. Calling Pay after a succeeded attempt
// never re-authorizes: it only retries confirmation with the identical
// payment so the traveller cannot be charged twice.
func (w *Workflow) Pay(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if err := w.begin("pay"); err != nil {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, err
	}
	if w.stage != StagePayment {
		w.finish()
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, illegalTransition("pay", snap.Stage)
	}
	hold := *w.hold
	currency := w.currencyLocked()
	var settled *models.PaymentAttempt
	if w.attempt != nil && w.attempt.State == models.AttemptStateSucceeded {
		prior := *w.attempt
		settled = &prior
	}
	w.mu.Unlock()

	if settled != nil {
		// Money already moved; the only legal move is re-confirming the
		// identical payment.
		return w.confirm(ctx, hold, *settled)
	}

	if hold.Expired(w.now()) {
		return w.reenterAfterHoldLoss(ctx, hold, fault.Rejectedf(fault.ReasonHoldExpired,
			"seat hold %s expired before payment; reselect seats", hold.ID))
	}

	attempt, err := w.deps.Payments.Authorize(ctx, &hold, hold.Amount, currency, w.attemptObserver())
	if err != nil {
		if attempt != nil {
			w.mu.Lock()
			w.attempt = attempt
			w.mu.Unlock()
		}
		switch fault.ReasonOf(err) {
		case fault.ReasonHoldExpired, fault.ReasonCheckoutTimedOut:
			// Either way the hold is gone; payment never completed.
			return w.reenterAfterHoldLoss(ctx, hold, err)
		}
		w.mu.Lock()
		defer w.finishAndUnlock()
		w.note = "payment not completed; retry while the hold lasts"
		return w.snapshotLocked(), err
	}

	w.mu.Lock()
	w.attempt = attempt
	w.mu.Unlock()
	return w.confirm(ctx, hold, *attempt)
}

// confirm exchanges a succeeded attempt for a booking record. A confirmation
// failure after capture is surfaced as ambiguous: the workflow stays in
// payment so the identical pair can be retried, and never restarts on its
// own.
func (w *Workflow) confirm(ctx context.Context, hold models.Hold, attempt models.PaymentAttempt) (Snapshot, error) {
	record, err := w.deps.Tickets.Confirm(ctx, ticketing.ConfirmRequest{
		HoldID:          hold.ID,
		PaymentID:       attempt.PaymentID,
		GatewayOrderRef: attempt.GatewayOrderRef,
		Signature:       attempt.Signature,
		Amount:          attempt.Amount,
		Currency:        attempt.Currency,
	})
	if err != nil {
		w.mu.Lock()
		defer w.finishAndUnlock()
		w.note = "payment received but the booking is not confirmed yet; retry to finish without paying again"
		snap := w.snapshotLocked()
		w.deferHook(func() { w.fireTransition(StagePayment, StagePayment, snap) })
		return snap, fault.Ambiguousf("payment %s captured but confirmation did not complete", attempt.PaymentID).WithCause(err)
	}

	if w.deps.Archive != nil {
		if aerr := w.deps.Archive.Save(ctx, record); aerr != nil {
			w.log.WithError(aerr).WithField("confirmation_code", record.ConfirmationCode).
				Warn("Booking archive write failed; record still confirmed")
		}
	}

	w.mu.Lock()
	defer w.finishAndUnlock()
	from := w.stage
	w.record = record
	w.stage = StageConfirmation
	w.note = ""
	snap := w.snapshotLocked()
	w.log.WithFields(logrus.Fields{
		"confirmation_code": record.ConfirmationCode,
		"hold_id":           record.HoldID,
		"payment_id":        record.PaymentID,
	}).Info("Booking confirmed")
	w.deferHook(func() { w.fireTransition(from, StageConfirmation, snap) })
	return snap, nil
}

// Reset abandons the current flow and returns to a clean search stage. A
// still-live unconsumed hold is abandoned loudly: its seats stay blocked
// upstream until expiry.
func (w *Workflow) Reset() (Snapshot, error) {
	w.mu.Lock()
	if err := w.begin("reset"); err != nil {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, err
	}
	defer w.finishAndUnlock()

	from := w.stage
	var abandoned *models.Hold
	if w.hold != nil && w.record == nil && !w.hold.Expired(w.now()) {
		h := *w.hold
		abandoned = &h
	}

	w.criteria = nil
	w.trips = nil
	w.promos = nil
	w.selected = nil
	w.seatMap = nil
	w.hold = nil
	w.attempt = nil
	w.record = nil
	w.failure = nil
	w.stage = StageSearch
	w.note = ""
	if abandoned != nil {
		w.note = "previous seats remain blocked for other travellers until the hold expires"
	}
	snap := w.snapshotLocked()
	w.deferHook(func() {
		if abandoned != nil {
			w.fireHoldAbandoned(*abandoned, snap)
		}
		w.fireTransition(from, StageSearch, snap)
	})
	return snap, nil
}

// attemptObserver folds live attempt updates into the workflow so snapshots
// track the checkout as it progresses.
func (w *Workflow) attemptObserver() func(models.PaymentAttempt) {
	return func(a models.PaymentAttempt) {
		w.mu.Lock()
		attempt := a
		w.attempt = &attempt
		snap := w.snapshotLocked()
		w.mu.Unlock()
		w.fireTransition(StagePayment, StagePayment, snap)
	}
}

// reenterSeatSelection refreshes the layout after a seat-availability race
// and keeps the workflow in seat selection. If even the refresh fails the
// flow is dead and fails terminally.
func (w *Workflow) reenterSeatSelection(ctx context.Context, tripID string, cause error, note string) (Snapshot, error) {
	layout, lerr := w.deps.Layouts.SeatMap(ctx, tripID)

	w.mu.Lock()
	defer w.finishAndUnlock()
	if lerr != nil {
		return w.failLocked(StageSeatSelection, fault.ReasonLayoutUnavailable), cause
	}
	w.seatMap = layout
	w.stage = StageSeatSelection
	w.note = note
	snap := w.snapshotLocked()
	w.deferHook(func() { w.fireTransition(StageSeatSelection, StageSeatSelection, snap) })
	return snap, cause
}

// reenterAfterHoldLoss drops an expired hold, refreshes the layout and sends
// the workflow back to seat selection for the same trip. No payment
// succeeded, so nothing is owed.
func (w *Workflow) reenterAfterHoldLoss(ctx context.Context, hold models.Hold, cause error) (Snapshot, error) {
	layout, lerr := w.deps.Layouts.SeatMap(ctx, hold.TripID)

	w.mu.Lock()
	defer w.finishAndUnlock()
	from := w.stage
	w.hold = nil
	w.attempt = nil
	if lerr != nil {
		return w.failLocked(StagePayment, fault.ReasonHoldExpired), cause
	}
	w.seatMap = layout
	w.stage = StageSeatSelection
	w.note = "the seat hold expired; pick seats again from the refreshed layout"
	snap := w.snapshotLocked()
	w.log.WithField("hold_id", hold.ID).Warn("Hold expired before payment completed")
	w.deferHook(func() { w.fireTransition(from, StageSeatSelection, snap) })
	return snap, cause
}

// failLocked parks the workflow in the terminal failed stage. Only Reset can
// leave it.
func (w *Workflow) failLocked(stage Stage, reason string) Snapshot {
	from := w.stage
	w.failure = &Failure{Stage: stage, Reason: reason}
	w.stage = StageFailed
	w.note = ""
	snap := w.snapshotLocked()
	w.deferHook(func() {
		w.fireTransition(from, StageFailed, snap)
		w.fireFailure(stage, reason, snap)
	})
	return snap
}
