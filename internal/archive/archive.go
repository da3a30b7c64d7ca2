// Package archive persists confirmed bookings on the traveller's side so a
// finished flow can be listed and re-ticketed later. The archive is strictly
// downstream of confirmation: writes are best-effort and a write failure
// never un-confirms a booking.
package archive

import (
	"context"
	"errors"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

var ErrNotFound = errors.New("not found")

// Store is the booking archive. Save is idempotent on the confirmation code
// and on the (hold, payment) pair, so replaying a confirmed booking never
// produces a second row.
type Store interface {
	Save(ctx context.Context, record *models.BookingRecord) error
	ByCode(ctx context.Context, code string) (*models.BookingRecord, error)
	List(ctx context.Context, limit int) ([]models.BookingRecord, error)
}
