package models

import "time"

// SearchCriteria describes a trip search submitted by the traveller.
// A criteria value is immutable once submitted; refining a search means
// submitting a fresh one.
type SearchCriteria struct {
	Origin      string    `json:"origin" validate:"required"`
	Destination string    `json:"destination" validate:"required,nefield=Origin"`
	Date        time.Time `json:"date" validate:"required"`
	Passengers  int       `json:"passengers" validate:"required,min=1,max=6"`
}

// Trip represents a bookable scheduled run offered by an operator.
type Trip struct {
	ID            string    `json:"id"`
	Operator      string    `json:"operator"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	BasePrice     int64     `json:"basePrice"` // minor currency units
	Currency      string    `json:"currency"`
	Rating        float64   `json:"rating"`
	SeatsLeft     int       `json:"seatsLeft"`
}

// Seat represents one reservable unit on a trip's layout. A fetched layout is
// a best-effort snapshot: availability is settled only when a hold is placed.
type Seat struct {
	ID       string       `json:"id"`
	TripID   string       `json:"tripId"`
	Label    string       `json:"label"`
	Category SeatCategory `json:"category"`
	Status   SeatStatus   `json:"status"`
	Price    int64        `json:"price"`
}

type SeatCategory string

const (
	SeatCategorySeater       SeatCategory = "seater"
	SeatCategorySleeperLower SeatCategory = "sleeper_lower"
	SeatCategorySleeperUpper SeatCategory = "sleeper_upper"
)

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusHeld      SeatStatus = "held"
	SeatStatusBooked    SeatStatus = "booked"
)

// Promotion is display-only marketing content shown next to search results.
type Promotion struct {
	Code     string `json:"code"`
	Headline string `json:"headline"`
	Discount int64  `json:"discount"`
}
