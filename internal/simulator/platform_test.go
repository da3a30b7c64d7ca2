package simulator

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var testStart = time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

func newTestPlatform() (*Platform, *time.Time) {
	clock := testStart
	p := New(Config{
		HoldTTL:   5 * time.Minute,
		KeyID:     "sim_key",
		KeySecret: "sim_secret",
		Seed:      1,
		Now:       func() time.Time { return clock },
		Logger:    testLogger(),
	})
	p.AddTrip(models.Trip{
		ID:            "trip-1",
		Operator:      "Orange Tours",
		Origin:        "Bengaluru",
		Destination:   "Hyderabad",
		DepartureTime: testStart.Add(11 * time.Hour),
		ArrivalTime:   testStart.Add(18 * time.Hour),
		BasePrice:     100000,
		Currency:      "INR",
	}, 3)
	return p, &clock
}

func manifest(n int) []models.Passenger {
	out := make([]models.Passenger, n)
	for i := range out {
		out[i] = models.Passenger{Name: "Traveller", Age: 30, Gender: "female", Phone: "9000000000"}
	}
	return out
}

func TestAddTrip_GeneratesBothDecks(t *testing.T) {
	p, _ := newTestPlatform()

	seats, ok := p.SeatMap("trip-1")
	require.True(t, ok)
	require.Len(t, seats, 6)

	byID := make(map[string]models.Seat)
	for _, s := range seats {
		byID[s.ID] = s
	}
	assert.Equal(t, models.SeatCategorySleeperLower, byID["L1"].Category)
	assert.Equal(t, models.SeatCategorySleeperUpper, byID["U1"].Category)
	assert.Greater(t, byID["L1"].Price, byID["U1"].Price)
}

func TestSearchTrips_FiltersRouteAndDay(t *testing.T) {
	p, _ := newTestPlatform()
	p.AddTrip(models.Trip{
		ID: "trip-2", Origin: "Bengaluru", Destination: "Hyderabad",
		DepartureTime: testStart.AddDate(0, 0, 1), BasePrice: 90000, Currency: "INR",
	}, 2)
	p.AddTrip(models.Trip{
		ID: "trip-3", Origin: "Pune", Destination: "Mumbai",
		DepartureTime: testStart.Add(11 * time.Hour), BasePrice: 55000, Currency: "INR",
	}, 2)

	trips := p.SearchTrips("bengaluru", "HYDERABAD", testStart)
	require.Len(t, trips, 1)
	assert.Equal(t, "trip-1", trips[0].ID)
	assert.Equal(t, 6, trips[0].SeatsLeft)

	assert.Len(t, p.SearchTrips("Bengaluru", "Hyderabad", time.Time{}), 2)
	assert.Empty(t, p.SearchTrips("Bengaluru", "Chennai", testStart))
}

func TestPlaceHold_GrantsExclusiveTimeboxedHold(t *testing.T) {
	p, _ := newTestPlatform()

	result := p.PlaceHold("trip-1", []string{"L1", "U1"}, manifest(2))
	require.Empty(t, result.Code, result.Message)
	require.NotNil(t, result.Hold)
	assert.Equal(t, int64(110000+100000), result.Hold.Amount)
	assert.Equal(t, "INR", result.Hold.Currency)
	assert.Equal(t, testStart.Add(5*time.Minute), result.Hold.ExpiresAt)

	seats, _ := p.SeatMap("trip-1")
	held := 0
	for _, s := range seats {
		if s.Status == models.SeatStatusHeld {
			held++
		}
	}
	assert.Equal(t, 2, held)
}

func TestPlaceHold_AllOrNothing(t *testing.T) {
	p, _ := newTestPlatform()

	first := p.PlaceHold("trip-1", []string{"L1"}, manifest(1))
	require.Empty(t, first.Code)

	second := p.PlaceHold("trip-1", []string{"L1", "U1", "U2"}, manifest(3))
	assert.Equal(t, "units_unavailable", second.Code)
	assert.Equal(t, []string{"L1"}, second.Unavailable)
	assert.Nil(t, second.Hold)

	// The free seats of the failed request must not have been touched.
	seats, _ := p.SeatMap("trip-1")
	for _, s := range seats {
		if s.ID == "U1" || s.ID == "U2" {
			assert.Equal(t, models.SeatStatusAvailable, s.Status, s.ID)
		}
	}
}

func TestPlaceHold_RequiresAdult(t *testing.T) {
	p, _ := newTestPlatform()

	kids := []models.Passenger{{Name: "Kid", Age: 12, Gender: "male"}}
	result := p.PlaceHold("trip-1", []string{"L1"}, kids)
	assert.Equal(t, "hold_rejected", result.Code)
	assert.Contains(t, result.Message, "adult")
}

func TestHoldExpiry_SeatsReturnToPool(t *testing.T) {
	p, clock := newTestPlatform()

	result := p.PlaceHold("trip-1", []string{"L1"}, manifest(1))
	require.Empty(t, result.Code)

	*clock = clock.Add(5*time.Minute + time.Second)

	seats, _ := p.SeatMap("trip-1")
	for _, s := range seats {
		assert.Equal(t, models.SeatStatusAvailable, s.Status, s.ID)
	}

	retry := p.PlaceHold("trip-1", []string{"L1"}, manifest(1))
	assert.Empty(t, retry.Code)
}

func TestCheckout_ProducesVerifiableSignature(t *testing.T) {
	p, _ := newTestPlatform()

	order, problem := p.CreateOrder(210000, "INR", "hold_abc")
	require.Empty(t, problem)
	assert.Equal(t, "created", order.Status)

	checkout := p.CompleteCheckout(order.ID)
	require.True(t, checkout.OK, checkout.Message)
	assert.NotEmpty(t, checkout.PaymentID)
	assert.Equal(t, p.sign(order.ID, checkout.PaymentID), checkout.Signature)

	// Completing again returns the same payment instead of charging twice.
	again := p.CompleteCheckout(order.ID)
	require.True(t, again.OK)
	assert.Equal(t, checkout.PaymentID, again.PaymentID)
}

func TestCheckout_DismissThenCompleteRefused(t *testing.T) {
	p, _ := newTestPlatform()

	order, _ := p.CreateOrder(100000, "INR", "hold_abc")
	require.True(t, p.DismissCheckout(order.ID))

	checkout := p.CompleteCheckout(order.ID)
	assert.False(t, checkout.OK)

	// A paid order cannot be dismissed.
	order2, _ := p.CreateOrder(100000, "INR", "hold_def")
	p.CompleteCheckout(order2.ID)
	assert.False(t, p.DismissCheckout(order2.ID))
}

func paidHold(t *testing.T, p *Platform) (hold *models.Hold, order *Order, checkout CheckoutResult) {
	t.Helper()
	result := p.PlaceHold("trip-1", []string{"L1", "U1"}, manifest(2))
	require.Empty(t, result.Code)
	order, problem := p.CreateOrder(result.Hold.Amount, result.Hold.Currency, result.Hold.ID)
	require.Empty(t, problem)
	checkout = p.CompleteCheckout(order.ID)
	require.True(t, checkout.OK)
	return result.Hold, order, checkout
}

func TestConfirmBooking_IssuesRecordAndBooksSeats(t *testing.T) {
	p, _ := newTestPlatform()
	hold, order, checkout := paidHold(t, p)

	result := p.ConfirmBooking(ConfirmInput{
		HoldID:          hold.ID,
		PaymentID:       checkout.PaymentID,
		GatewayOrderRef: order.ID,
		Signature:       checkout.Signature,
		Amount:          hold.Amount,
		Currency:        "INR",
	})
	require.Empty(t, result.Code, result.Message)
	require.NotNil(t, result.Record)
	assert.NotEmpty(t, result.Record.ConfirmationCode)
	assert.Equal(t, hold.ID, result.Record.HoldID)
	assert.Equal(t, hold.Amount, result.Record.AmountCharged)

	seats, _ := p.SeatMap("trip-1")
	booked := 0
	for _, s := range seats {
		if s.Status == models.SeatStatusBooked {
			booked++
		}
	}
	assert.Equal(t, 2, booked)
}

func TestConfirmBooking_IdempotentOnPair(t *testing.T) {
	p, clock := newTestPlatform()
	hold, order, checkout := paidHold(t, p)

	in := ConfirmInput{
		HoldID: hold.ID, PaymentID: checkout.PaymentID,
		GatewayOrderRef: order.ID, Signature: checkout.Signature,
		Amount: hold.Amount, Currency: "INR",
	}
	first := p.ConfirmBooking(in)
	require.NotNil(t, first.Record)

	// A replay after the hold window has long passed still returns the
	// original record without touching inventory.
	*clock = clock.Add(time.Hour)
	second := p.ConfirmBooking(in)
	require.NotNil(t, second.Record)
	assert.Equal(t, first.Record.ConfirmationCode, second.Record.ConfirmationCode)
}

func TestConfirmBooking_ExpiredHoldDefinitive(t *testing.T) {
	p, clock := newTestPlatform()
	hold, order, checkout := paidHold(t, p)

	*clock = clock.Add(6 * time.Minute)

	result := p.ConfirmBooking(ConfirmInput{
		HoldID: hold.ID, PaymentID: checkout.PaymentID,
		GatewayOrderRef: order.ID, Signature: checkout.Signature,
		Amount: hold.Amount, Currency: "INR",
	})
	assert.Equal(t, "hold_expired", result.Code)
	assert.Nil(t, result.Record)
}

func TestConfirmBooking_VerifiesPaymentFacts(t *testing.T) {
	p, _ := newTestPlatform()
	hold, order, checkout := paidHold(t, p)

	base := ConfirmInput{
		HoldID: hold.ID, PaymentID: checkout.PaymentID,
		GatewayOrderRef: order.ID, Signature: checkout.Signature,
		Amount: hold.Amount, Currency: "INR",
	}

	tampered := base
	tampered.Signature = "deadbeef"
	assert.Equal(t, "signature_invalid", p.ConfirmBooking(tampered).Code)

	wrongAmount := base
	wrongAmount.Amount = 1
	assert.Equal(t, "amount_mismatch", p.ConfirmBooking(wrongAmount).Code)

	strayPayment := base
	strayPayment.PaymentID = "pay_unknown"
	assert.Equal(t, "payment_unknown", p.ConfirmBooking(strayPayment).Code)

	// The untampered pair still confirms after the rejected attempts.
	assert.Empty(t, p.ConfirmBooking(base).Code)
}

func TestConfirmBooking_InjectedTransientFailure(t *testing.T) {
	p, _ := newTestPlatform()
	hold, order, checkout := paidHold(t, p)
	p.FailNextConfirms(1)

	in := ConfirmInput{
		HoldID: hold.ID, PaymentID: checkout.PaymentID,
		GatewayOrderRef: order.ID, Signature: checkout.Signature,
		Amount: hold.Amount, Currency: "INR",
	}
	first := p.ConfirmBooking(in)
	assert.True(t, first.Transient)
	assert.Nil(t, first.Record)

	second := p.ConfirmBooking(in)
	require.NotNil(t, second.Record)
}

func TestReleaseHold_FreesSeatsEarly(t *testing.T) {
	p, _ := newTestPlatform()

	result := p.PlaceHold("trip-1", []string{"L2"}, manifest(1))
	require.Empty(t, result.Code)

	p.ReleaseHold(result.Hold.ID)

	retry := p.PlaceHold("trip-1", []string{"L2"}, manifest(1))
	assert.Empty(t, retry.Code)
}
