package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Hold is a time-bounded exclusive claim on a set of seats prior to payment.
// It lives only in Redis: the per-seat lock keys enforce exclusivity and the
// key TTL is the authoritative expiry.
type Hold struct {
	ID         string     `json:"-"`
	ShowtimeID int64      `json:"showtime_id"`
	HolderID   string     `json:"holder_id"`
	Seats      []HeldSeat `json:"seats"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// HeldSeat carries the price snapshot taken at reserve time. A later change
// to the showtime multiplier does not touch an in-flight hold or booking.
type HeldSeat struct {
	SeatID   int64           `json:"seat_id"`
	Row      string          `json:"row"`
	Number   int             `json:"number"`
	Category SeatCategory    `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

func NewHold(showtimeID int64, holderID string, seatMap *SeatMap, ttl time.Duration) Hold {
	now := time.Now()
	seats := make([]HeldSeat, len(seatMap.Seats))

	for i, seat := range seatMap.Seats {
		seats[i] = HeldSeat{
			SeatID:   seat.ID,
			Row:      seat.Row,
			Number:   seat.Number,
			Category: seat.Category,
			Price:    seat.Price(seatMap.PriceMultiplier),
		}
	}

	return Hold{
		ID:         uuid.New().String(),
		ShowtimeID: showtimeID,
		HolderID:   holderID,
		Seats:      seats,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

func (h Hold) SeatIDs() []int64 {
	ids := make([]int64, len(h.Seats))
	for i, seat := range h.Seats {
		ids[i] = seat.SeatID
	}

	return ids
}

func (h Hold) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, seat := range h.Seats {
		subtotal = subtotal.Add(seat.Price)
	}

	return subtotal
}
