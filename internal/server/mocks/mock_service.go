package mocks

import (
	"context"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/payment"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/server"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/workflow"
)

// MockBookingService is a mock implementation of server.BookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateSession(ctx context.Context, profile models.UserProfile) (*server.SessionInfo, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*server.SessionInfo), args.Error(1)
}

func (m *MockBookingService) State(sessionID string) (workflow.Snapshot, error) {
	args := m.Called(sessionID)
	return args.Get(0).(workflow.Snapshot), args.Error(1)
}

func (m *MockBookingService) Search(ctx context.Context, sessionID string, criteria models.SearchCriteria) (workflow.Snapshot, error) {
	args := m.Called(ctx, sessionID, criteria)
	return args.Get(0).(workflow.Snapshot), args.Error(1)
}

func (m *MockBookingService) SelectTrip(ctx context.Context, sessionID, tripID string) (workflow.Snapshot, error) {
	args := m.Called(ctx, sessionID, tripID)
	return args.Get(0).(workflow.Snapshot), args.Error(1)
}

func (m *MockBookingService) Back(sessionID string) (workflow.Snapshot, error) {
	args := m.Called(sessionID)
	return args.Get(0).(workflow.Snapshot), args.Error(1)
}

func (m *MockBookingService) SelectSeats(ctx context.Context, sessionID string, seatIDs []string, passengers []models.Passenger) (workflow.Snapshot, error) {
	args := m.Called(ctx, sessionID, seatIDs, passengers)
	return args.Get(0).(workflow.Snapshot), args.Error(1)
}

func (m *MockBookingService) StartPayment(ctx context.Context, sessionID string) (*server.PaymentLaunch, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*server.PaymentLaunch), args.Error(1)
}

func (m *MockBookingService) PaymentCallback(sessionID string, ev payment.CheckoutEvent) error {
	args := m.Called(sessionID, ev)
	return args.Error(0)
}

func (m *MockBookingService) DismissPayment(sessionID, orderRef string) error {
	args := m.Called(sessionID, orderRef)
	return args.Error(0)
}

func (m *MockBookingService) Reset(sessionID string) (workflow.Snapshot, error) {
	args := m.Called(sessionID)
	return args.Get(0).(workflow.Snapshot), args.Error(1)
}

func (m *MockBookingService) Bookings(ctx context.Context, limit int) ([]models.BookingRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingRecord), args.Error(1)
}

func (m *MockBookingService) Ticket(ctx context.Context, code string) ([]byte, string, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockBookingService) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) error {
	args := m.Called(w, r, sessionID)
	return args.Error(0)
}

func (m *MockBookingService) Janitor(ctx context.Context, interval time.Duration) {
	m.Called(ctx, interval)
}
