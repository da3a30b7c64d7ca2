package ticketing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

func TestBuildTicketPDF_Success(t *testing.T) {
	record := &models.BookingRecord{
		ConfirmationCode: "WS-9X2A",
		HoldID:           "hold-1",
		PaymentID:        "pay-1",
		TripID:           "trip-1",
		SeatIDs:          []string{"1A", "1B"},
		Passengers: []models.Passenger{
			{Name: "Asha Rao", Age: 29, Gender: "female"},
			{Name: "Vikram Mehta", Age: 34, Gender: "male"},
		},
		AmountCharged: 170000,
		Currency:      "INR",
		IssuedAt:      time.Now(),
	}
	trip := &models.Trip{
		Operator:      "Neeta Travels",
		Origin:        "Pune",
		Destination:   "Mumbai",
		DepartureTime: time.Now().Add(48 * time.Hour),
	}

	data, filename, err := BuildTicketPDF(record, trip)

	require.NoError(t, err)
	assert.True(t, len(data) > 500)
	assert.Equal(t, "%PDF", string(data[:4]))
	assert.Equal(t, "ETICKET_WS-9X2A.pdf", filename)
}

func TestBuildTicketPDF_WithoutTrip(t *testing.T) {
	record := &models.BookingRecord{
		ConfirmationCode: "WS-9X2A",
		SeatIDs:          []string{"1A"},
		AmountCharged:    85000,
		Currency:         "INR",
		IssuedAt:         time.Now(),
	}

	data, _, err := BuildTicketPDF(record, nil)

	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestBuildTicketPDF_NoRecord(t *testing.T) {
	_, _, err := BuildTicketPDF(nil, nil)
	require.Error(t, err)

	_, _, err = BuildTicketPDF(&models.BookingRecord{}, nil)
	require.Error(t, err)
}
