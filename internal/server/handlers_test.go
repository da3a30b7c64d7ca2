package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/archive"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/payment"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/server"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/server/mocks"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/workflow"
)

func newTestHandler() (*mocks.MockBookingService, http.Handler) {
	mockService := new(mocks.MockBookingService)
	return mockService, server.SetupRouter(server.NewHandler(mockService, nil))
}

func doJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateSession(t *testing.T) {
	mockService, router := newTestHandler()

	info := &server.SessionInfo{
		SessionID: "sess-1",
		State:     workflow.Snapshot{Stage: workflow.StageSearch},
	}
	mockService.On("CreateSession", mock.Anything, models.UserProfile{Name: "Asha"}).Return(info, nil)

	rec := doJSON(router, http.MethodPost, "/api/sessions", map[string]interface{}{
		"profile": map[string]string{"name": "Asha"},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got server.SessionInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, workflow.StageSearch, got.State.Stage)
	mockService.AssertExpectations(t)
}

func TestHandler_CreateSession_EmptyBodyAllowed(t *testing.T) {
	mockService, router := newTestHandler()
	mockService.On("CreateSession", mock.Anything, models.UserProfile{}).
		Return(&server.SessionInfo{SessionID: "sess-2", State: workflow.Snapshot{Stage: workflow.StageSearch}}, nil)

	rec := doJSON(router, http.MethodPost, "/api/sessions", nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	mockService.AssertExpectations(t)
}

func TestHandler_GetState(t *testing.T) {
	tests := []struct {
		name           string
		sessionID      string
		mockReturn     workflow.Snapshot
		mockError      error
		expectedStatus int
	}{
		{
			name:           "session found",
			sessionID:      "sess-1",
			mockReturn:     workflow.Snapshot{Stage: workflow.StageResults},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "session unknown",
			sessionID:      "ghost",
			mockReturn:     workflow.Snapshot{},
			mockError:      fault.Callerf(server.ReasonUnknownSession, "unknown session ghost"),
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler()
			mockService.On("State", tt.sessionID).Return(tt.mockReturn, tt.mockError)

			req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+tt.sessionID, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_Search(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]interface{}
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name: "valid search",
			body: map[string]interface{}{
				"origin": "Bengaluru", "destination": "Hyderabad",
				"date": "2025-11-20", "passengers": 2,
			},
			expectedStatus: http.StatusOK,
			shouldCallMock: true,
		},
		{
			name: "unparseable date",
			body: map[string]interface{}{
				"origin": "Bengaluru", "destination": "Hyderabad",
				"date": "next friday", "passengers": 2,
			},
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: false,
		},
		{
			name: "upstream search failure",
			body: map[string]interface{}{
				"origin": "Bengaluru", "destination": "Hyderabad",
				"date": "2025-11-20", "passengers": 2,
			},
			mockError:      fault.Transientf(fault.ReasonSearchFailed, "inventory service unreachable"),
			expectedStatus: http.StatusBadGateway,
			shouldCallMock: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler()
			if tt.shouldCallMock {
				mockService.On("Search", mock.Anything, "sess-1", mock.AnythingOfType("models.SearchCriteria")).
					Return(workflow.Snapshot{Stage: workflow.StageResults}, tt.mockError)
			}

			rec := doJSON(router, http.MethodPost, "/api/sessions/sess-1/search", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_SelectSeats(t *testing.T) {
	mockService, router := newTestHandler()

	rejection := fault.Rejectedf(fault.ReasonUnitsUnavailable, "requested seats are no longer available").
		WithUnits([]string{"L1", "L2"})
	mockService.On("SelectSeats", mock.Anything, "sess-1", []string{"L1", "L2"}, mock.Anything).
		Return(workflow.Snapshot{Stage: workflow.StageSeatSelection}, rejection)

	rec := doJSON(router, http.MethodPost, "/api/sessions/sess-1/seats", map[string]interface{}{
		"seatIds": []string{"L1", "L2"},
		"passengers": []map[string]interface{}{
			{"name": "Asha", "age": 30, "gender": "female"},
			{"name": "Ravi", "age": 32, "gender": "male"},
		},
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body server.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, fault.ReasonUnitsUnavailable, body.Code)
	assert.Equal(t, []string{"L1", "L2"}, body.UnavailableSeats)
	require.NotNil(t, body.State)
	assert.Equal(t, workflow.StageSeatSelection, body.State.Stage)
	mockService.AssertExpectations(t)
}

func TestHandler_SelectSeats_EmptySelectionRejectedLocally(t *testing.T) {
	mockService, router := newTestHandler()

	rec := doJSON(router, http.MethodPost, "/api/sessions/sess-1/seats", map[string]interface{}{
		"seatIds": []string{},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockService.AssertNotCalled(t, "SelectSeats")
}

func TestHandler_StartPayment(t *testing.T) {
	tests := []struct {
		name           string
		launch         *server.PaymentLaunch
		mockError      error
		expectedStatus int
	}{
		{
			name: "checkout opened",
			launch: &server.PaymentLaunch{
				Checkout: &payment.CheckoutSpec{OrderRef: "order_1", Amount: 210000, Currency: "INR"},
				State:    workflow.Snapshot{Stage: workflow.StagePayment},
			},
			expectedStatus: http.StatusAccepted,
		},
		{
			name: "re-confirm settled synchronously",
			launch: &server.PaymentLaunch{
				State:     workflow.Snapshot{Stage: workflow.StageConfirmation},
				Completed: true,
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "checkout dismissed earlier",
			mockError:      fault.PaymentNotCompletedf(fault.ReasonCheckoutDismissed, "checkout dismissed before paying"),
			expectedStatus: http.StatusPaymentRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler()
			mockService.On("StartPayment", mock.Anything, "sess-1").Return(tt.launch, tt.mockError)

			rec := doJSON(router, http.MethodPost, "/api/sessions/sess-1/payment", nil)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_StartPayment_AmbiguousConfirmationGuidance(t *testing.T) {
	mockService, router := newTestHandler()

	ambiguous := fault.Ambiguousf("payment pay_9 captured but confirmation did not complete")
	mockService.On("StartPayment", mock.Anything, "sess-1").Return(nil, ambiguous)

	rec := doJSON(router, http.MethodPost, "/api/sessions/sess-1/payment", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body server.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.FundsMayBeCaptured)
	assert.Contains(t, body.Guidance, "do not pay again")
	mockService.AssertExpectations(t)
}

func TestHandler_PaymentCallback(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]interface{}
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name: "valid callback",
			body: map[string]interface{}{
				"orderRef": "order_1", "paymentId": "pay_1", "signature": "abc",
			},
			expectedStatus: http.StatusAccepted,
			shouldCallMock: true,
		},
		{
			name: "schema rejects missing signature",
			body: map[string]interface{}{
				"orderRef": "order_1", "paymentId": "pay_1",
			},
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: false,
		},
		{
			name: "schema rejects empty payment id",
			body: map[string]interface{}{
				"orderRef": "order_1", "paymentId": "", "signature": "abc",
			},
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: false,
		},
		{
			name: "nobody waiting",
			body: map[string]interface{}{
				"orderRef": "order_stale", "paymentId": "pay_1", "signature": "abc",
			},
			mockError:      fault.Rejectedf(fault.ReasonGatewayError, "no checkout is awaiting an outcome for order order_stale"),
			expectedStatus: http.StatusConflict,
			shouldCallMock: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler()
			if tt.shouldCallMock {
				mockService.On("PaymentCallback", "sess-1", mock.AnythingOfType("payment.CheckoutEvent")).
					Return(tt.mockError)
			}

			rec := doJSON(router, http.MethodPost, "/api/sessions/sess-1/payment/callback", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if !tt.shouldCallMock {
				mockService.AssertNotCalled(t, "PaymentCallback")
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_DismissPayment(t *testing.T) {
	mockService, router := newTestHandler()
	mockService.On("DismissPayment", "sess-1", "order_1").Return(nil)

	rec := doJSON(router, http.MethodPost, "/api/sessions/sess-1/payment/dismiss", map[string]string{
		"orderRef": "order_1",
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	missing := doJSON(router, http.MethodPost, "/api/sessions/sess-1/payment/dismiss", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, missing.Code)
	mockService.AssertExpectations(t)
}

func TestHandler_Reset(t *testing.T) {
	mockService, router := newTestHandler()
	mockService.On("Reset", "sess-1").Return(workflow.Snapshot{Stage: workflow.StageSearch}, nil)

	rec := doJSON(router, http.MethodPost, "/api/sessions/sess-1/reset", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var snap workflow.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, workflow.StageSearch, snap.Stage)
	mockService.AssertExpectations(t)
}

func TestHandler_ListBookings(t *testing.T) {
	mockService, router := newTestHandler()
	mockService.On("Bookings", mock.Anything, 5).Return([]models.BookingRecord{
		{ConfirmationCode: "WSAB121234"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings?limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var records []models.BookingRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "WSAB121234", records[0].ConfirmationCode)
	mockService.AssertExpectations(t)
}

func TestHandler_Ticket(t *testing.T) {
	tests := []struct {
		name           string
		code           string
		mockPDF        []byte
		mockError      error
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "ticket rendered",
			code:           "WSAB121234",
			mockPDF:        []byte("%PDF-1.4 fake"),
			expectedStatus: http.StatusOK,
			expectedType:   "application/pdf",
		},
		{
			name:           "unknown code",
			code:           "NOPE",
			mockError:      archive.ErrNotFound,
			expectedStatus: http.StatusNotFound,
			expectedType:   "application/json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler()
			mockService.On("Ticket", mock.Anything, tt.code).Return(tt.mockPDF, "ticket-"+tt.code+".pdf", tt.mockError)

			req := httptest.NewRequest(http.MethodGet, "/api/bookings/"+tt.code+"/ticket", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.expectedType)
			mockService.AssertExpectations(t)
		})
	}
}

func TestStatusFor_ClassMapping(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{fault.Callerf(fault.ReasonInvalidInput, "bad"), http.StatusBadRequest},
		{fault.Callerf(server.ReasonUnknownSession, "unknown session x"), http.StatusNotFound},
		{fault.Rejectedf(fault.ReasonHoldRejected, "no"), http.StatusConflict},
		{fault.Transientf(fault.ReasonSearchFailed, "down"), http.StatusBadGateway},
		{fault.PaymentNotCompletedf(fault.ReasonCheckoutDismissed, "closed"), http.StatusPaymentRequired},
		{fault.Ambiguousf("paid but unconfirmed"), http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, server.StatusFor(tt.err), tt.err.Error())
	}
}
