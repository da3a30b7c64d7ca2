package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/ticketing"
)

// MockTripSearcher is a mock implementation of workflow.TripSearcher
type MockTripSearcher struct {
	mock.Mock
}

func (m *MockTripSearcher) SearchTrips(ctx context.Context, criteria models.SearchCriteria) ([]models.Trip, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Trip), args.Error(1)
}

func (m *MockTripSearcher) FetchPromotions(ctx context.Context) ([]models.Promotion, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Promotion), args.Error(1)
}

// MockLayoutFetcher is a mock implementation of workflow.LayoutFetcher
type MockLayoutFetcher struct {
	mock.Mock
}

func (m *MockLayoutFetcher) SeatMap(ctx context.Context, tripID string) ([]models.Seat, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Seat), args.Error(1)
}

// MockHoldPlacer is a mock implementation of workflow.HoldPlacer
type MockHoldPlacer struct {
	mock.Mock
}

func (m *MockHoldPlacer) RequestHold(ctx context.Context, tripID string, seatIDs []string, passengers []models.Passenger) (*models.Hold, error) {
	args := m.Called(ctx, tripID, seatIDs, passengers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Hold), args.Error(1)
}

// MockPaymentAuthorizer is a mock implementation of workflow.PaymentAuthorizer
type MockPaymentAuthorizer struct {
	mock.Mock
}

func (m *MockPaymentAuthorizer) Authorize(ctx context.Context, hold *models.Hold, amount int64, currency string, onUpdate func(models.PaymentAttempt)) (*models.PaymentAttempt, error) {
	args := m.Called(ctx, hold, amount, currency, onUpdate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentAttempt), args.Error(1)
}

// MockBookingConfirmer is a mock implementation of workflow.BookingConfirmer
type MockBookingConfirmer struct {
	mock.Mock
}

func (m *MockBookingConfirmer) Confirm(ctx context.Context, req ticketing.ConfirmRequest) (*models.BookingRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingRecord), args.Error(1)
}

// MockRecordArchiver is a mock implementation of workflow.RecordArchiver
type MockRecordArchiver struct {
	mock.Mock
}

func (m *MockRecordArchiver) Save(ctx context.Context, record *models.BookingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
