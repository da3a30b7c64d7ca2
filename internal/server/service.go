// Package server exposes booking workflows over a session-scoped REST and
// WebSocket API. Each session owns one workflow instance; the service routes
// operations to it, streams its transitions to watchers and publishes
// lifecycle events.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/archive"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/events"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/payment"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/ticketing"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/websocket"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/workflow"
)

// SessionInfo is returned on session creation.
type SessionInfo struct {
	SessionID string            `json:"sessionId"`
	State     workflow.Snapshot `json:"state"`
}

// PaymentLaunch is the immediate outcome of starting a payment. Either the
// checkout spec for the client to open, or the final state when the workflow
// settled without needing a checkout (the re-confirm path).
type PaymentLaunch struct {
	Checkout  *payment.CheckoutSpec `json:"checkout,omitempty"`
	State     workflow.Snapshot     `json:"state"`
	Completed bool                  `json:"completed"`
}

// BookingService is the session-scoped surface the HTTP layer talks to.
type BookingService interface {
	CreateSession(ctx context.Context, profile models.UserProfile) (*SessionInfo, error)
	State(sessionID string) (workflow.Snapshot, error)
	Search(ctx context.Context, sessionID string, criteria models.SearchCriteria) (workflow.Snapshot, error)
	SelectTrip(ctx context.Context, sessionID, tripID string) (workflow.Snapshot, error)
	Back(sessionID string) (workflow.Snapshot, error)
	SelectSeats(ctx context.Context, sessionID string, seatIDs []string, passengers []models.Passenger) (workflow.Snapshot, error)
	StartPayment(ctx context.Context, sessionID string) (*PaymentLaunch, error)
	PaymentCallback(sessionID string, ev payment.CheckoutEvent) error
	DismissPayment(sessionID, orderRef string) error
	Reset(sessionID string) (workflow.Snapshot, error)
	Bookings(ctx context.Context, limit int) ([]models.BookingRecord, error)
	Ticket(ctx context.Context, code string) ([]byte, string, error)
	ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) error
	Janitor(ctx context.Context, interval time.Duration)
}

// Collaborators are the shared upstream clients sessions are built from.
type Collaborators struct {
	Search  workflow.TripSearcher
	Layouts workflow.LayoutFetcher
	Holds   workflow.HoldPlacer
	Gateway payment.OrderCreator
	Tickets workflow.BookingConfirmer
	Archive archive.Store
}

// Options tune the service.
type Options struct {
	Currency     string
	GatewayKeyID string
	SessionTTL   time.Duration
	Logger       *logrus.Logger
	Now          func() time.Time
}

type bookingServiceImpl struct {
	collab   Collaborators
	opts     Options
	hub      *websocket.Hub
	producer *events.Producer
	bus      *payment.CallbackBus
	log      *logrus.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	tripsMu sync.RWMutex
	trips   map[string]models.Trip // trip directory for ticket rendering
}

// NewBookingService wires the shared collaborators into a session manager.
// hub must already be running; producer may be nil.
func NewBookingService(collab Collaborators, hub *websocket.Hub, producer *events.Producer, opts Options) BookingService {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	return &bookingServiceImpl{
		collab:   collab,
		opts:     opts,
		hub:      hub,
		producer: producer,
		bus:      payment.NewCallbackBus(),
		log:      opts.Logger,
		now:      opts.Now,
		sessions: make(map[string]*session),
		trips:    make(map[string]models.Trip),
	}
}

// session binds one workflow instance to its id, clock and payment gate.
type session struct {
	id       string
	wf       *workflow.Workflow
	ctx      context.Context
	cancel   context.CancelFunc
	lastSeen time.Time

	launchMu sync.Mutex
	launch   chan paymentLaunch
}

type paymentLaunch struct {
	spec *payment.CheckoutSpec
	done *workflow.Snapshot
	err  error
}

// Present implements payment.Presenter: the checkout spec is handed to the
// waiting StartPayment call instead of any UI.
func (s *session) Present(ctx context.Context, spec payment.CheckoutSpec) error {
	s.deliver(paymentLaunch{spec: &spec})
	return nil
}

// arm installs a fresh one-shot launch channel and returns it.
func (s *session) arm() chan paymentLaunch {
	s.launchMu.Lock()
	defer s.launchMu.Unlock()
	ch := make(chan paymentLaunch, 1)
	s.launch = ch
	return ch
}

// deliver hands the launch outcome to the armed waiter, if any. Only the
// first delivery per arm counts.
func (s *session) deliver(l paymentLaunch) {
	s.launchMu.Lock()
	ch := s.launch
	s.launch = nil
	s.launchMu.Unlock()
	if ch != nil {
		ch <- l
	}
}

func (s *bookingServiceImpl) CreateSession(ctx context.Context, profile models.UserProfile) (*SessionInfo, error) {
	id := uuid.NewString()
	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{id: id, ctx: sessCtx, cancel: cancel, lastSeen: s.now()}

	orchestrator := payment.NewOrchestrator(s.collab.Gateway, sess, s.bus, s.opts.GatewayKeyID, s.log)
	sess.wf = workflow.New(workflow.Deps{
		Search:   s.collab.Search,
		Layouts:  s.collab.Layouts,
		Holds:    s.collab.Holds,
		Payments: orchestrator,
		Tickets:  s.collab.Tickets,
		Archive:  s.collab.Archive,
	}, workflow.Config{
		Profile:  profile,
		Currency: s.opts.Currency,
		Hooks:    s.hooksFor(id),
		Logger:   s.log,
		Now:      s.now,
	})

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.WithField("session_id", id).Info("Booking session created")
	return &SessionInfo{SessionID: id, State: sess.wf.Snapshot()}, nil
}

// hooksFor fans workflow progress out to the state stream and the event log.
func (s *bookingServiceImpl) hooksFor(sessionID string) workflow.Hooks {
	return workflow.Hooks{
		OnTransition: func(from, to workflow.Stage, snap workflow.Snapshot) {
			s.hub.BroadcastState(sessionID, string(from), string(to), snap)
			if to == workflow.StageConfirmation && snap.Record != nil {
				s.publish(events.Confirmed(sessionID, *snap.Record))
				return
			}
			s.publish(events.StageChanged(sessionID, string(from), string(to)))
		},
		OnFailure: func(stage workflow.Stage, reason string, snap workflow.Snapshot) {
			s.hub.BroadcastFlowFailed(sessionID, string(stage), reason, snap)
			s.publish(events.Failed(sessionID, string(stage), reason))
		},
		OnHoldAbandoned: func(hold models.Hold, snap workflow.Snapshot) {
			s.hub.BroadcastHoldAbandoned(sessionID, hold.ID, snap)
			s.publish(events.HoldAbandoned(sessionID, hold))
		},
	}
}

// publish ships a lifecycle event without blocking the caller.
func (s *bookingServiceImpl) publish(ev events.BookingEvent) {
	if s.producer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.producer.PublishWithRetry(ctx, ev, 3); err != nil {
			s.log.WithError(err).WithField("event", ev.Type).Warn("Failed to publish booking event")
		}
	}()
}

func (s *bookingServiceImpl) get(sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fault.Callerf(reasonUnknownSession, "unknown session %s", sessionID)
	}
	sess.lastSeen = s.now()
	return sess, nil
}

func (s *bookingServiceImpl) State(sessionID string) (workflow.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return sess.wf.Snapshot(), nil
}

func (s *bookingServiceImpl) Search(ctx context.Context, sessionID string, criteria models.SearchCriteria) (workflow.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	snap, err := sess.wf.Search(ctx, criteria)
	s.rememberTrips(snap.Trips)
	return snap, err
}

func (s *bookingServiceImpl) SelectTrip(ctx context.Context, sessionID, tripID string) (workflow.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return sess.wf.SelectTrip(ctx, tripID)
}

func (s *bookingServiceImpl) Back(sessionID string) (workflow.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return sess.wf.Back()
}

func (s *bookingServiceImpl) SelectSeats(ctx context.Context, sessionID string, seatIDs []string, passengers []models.Passenger) (workflow.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return sess.wf.SelectSeats(ctx, seatIDs, passengers)
}

// StartPayment launches the checkout asynchronously. It returns as soon as
// the gateway order exists and the checkout spec is known, or once the
// workflow settles without opening one. The eventual outcome reaches clients
// through the state stream and the callback endpoints.
func (s *bookingServiceImpl) StartPayment(ctx context.Context, sessionID string) (*PaymentLaunch, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	ch := sess.arm()
	go func() {
		snap, payErr := sess.wf.Pay(sess.ctx)
		if payErr != nil {
			sess.deliver(paymentLaunch{err: payErr})
			return
		}
		sess.deliver(paymentLaunch{done: &snap})
	}()

	select {
	case l := <-ch:
		if l.err != nil {
			return nil, l.err
		}
		if l.spec != nil {
			return &PaymentLaunch{Checkout: l.spec, State: sess.wf.Snapshot()}, nil
		}
		return &PaymentLaunch{State: *l.done, Completed: true}, nil
	case <-ctx.Done():
		return nil, fault.Transientf(fault.ReasonGatewayError, "payment launch interrupted").WithCause(ctx.Err())
	}
}

// PaymentCallback feeds the gateway's success payload to the checkout that is
// waiting on it. Payloads nobody waits for are rejected so a stale checkout
// page can never influence a newer attempt.
func (s *bookingServiceImpl) PaymentCallback(sessionID string, ev payment.CheckoutEvent) error {
	if _, err := s.get(sessionID); err != nil {
		return err
	}
	ev.Kind = payment.EventSuccess
	if !s.bus.Publish(ev) {
		return fault.Rejectedf(fault.ReasonGatewayError, "no checkout is awaiting an outcome for order %s", ev.OrderRef)
	}
	return nil
}

func (s *bookingServiceImpl) DismissPayment(sessionID, orderRef string) error {
	if _, err := s.get(sessionID); err != nil {
		return err
	}
	if !s.bus.Publish(payment.CheckoutEvent{Kind: payment.EventDismissed, OrderRef: orderRef}) {
		return fault.Rejectedf(fault.ReasonGatewayError, "no checkout is awaiting an outcome for order %s", orderRef)
	}
	return nil
}

func (s *bookingServiceImpl) Reset(sessionID string) (workflow.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return sess.wf.Reset()
}

func (s *bookingServiceImpl) Bookings(ctx context.Context, limit int) ([]models.BookingRecord, error) {
	if s.collab.Archive == nil {
		return nil, nil
	}
	return s.collab.Archive.List(ctx, limit)
}

func (s *bookingServiceImpl) Ticket(ctx context.Context, code string) ([]byte, string, error) {
	if s.collab.Archive == nil {
		return nil, "", archive.ErrNotFound
	}
	record, err := s.collab.Archive.ByCode(ctx, code)
	if err != nil {
		return nil, "", err
	}
	var trip *models.Trip
	if known, ok := s.tripByID(record.TripID); ok {
		trip = &known
	}
	return ticketing.BuildTicketPDF(record, trip)
}

func (s *bookingServiceImpl) rememberTrips(trips []models.Trip) {
	if len(trips) == 0 {
		return
	}
	s.tripsMu.Lock()
	for _, t := range trips {
		s.trips[t.ID] = t
	}
	s.tripsMu.Unlock()
}

func (s *bookingServiceImpl) tripByID(id string) (models.Trip, bool) {
	s.tripsMu.RLock()
	defer s.tripsMu.RUnlock()
	t, ok := s.trips[id]
	return t, ok
}

// Janitor sweeps idle sessions until ctx is cancelled. An expired session's
// workflow is reset first, which abandons any live hold loudly.
func (s *bookingServiceImpl) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *bookingServiceImpl) sweep() {
	cutoff := s.now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	var stale []*session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		if _, err := sess.wf.Reset(); err != nil {
			// A payment still in flight keeps the session alive one more round.
			s.mu.Lock()
			s.sessions[sess.id] = sess
			s.mu.Unlock()
			continue
		}
		sess.cancel()
		s.log.WithField("session_id", sess.id).Info("Idle session expired")
	}
}

// ServeWS upgrades the request into the session's state stream.
func (s *bookingServiceImpl) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) error {
	if _, err := s.get(sessionID); err != nil {
		return err
	}
	s.hub.Serve(w, r, sessionID)
	return nil
}
