package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type SeatCategory string

const (
	SeatCategoryStandard   SeatCategory = "standard"
	SeatCategoryPremium    SeatCategory = "premium"
	SeatCategoryVIP        SeatCategory = "vip"
	SeatCategoryWheelchair SeatCategory = "wheelchair"
)

type Seat struct {
	ID        int64
	Row       string
	Number    int
	Category  SeatCategory
	BasePrice decimal.Decimal
	Available bool
}

// Price applies the showtime multiplier and rounds half-up to the minor unit.
func (s Seat) Price(multiplier decimal.Decimal) decimal.Decimal {
	return s.BasePrice.Mul(multiplier).Round(2)
}

// SeatMap is the full seat inventory of the screen a showtime runs on,
// ordered by (row, number). Availability is filled in by the caller from the
// live hold and booking state.
type SeatMap struct {
	ShowtimeID      int64
	ScreenID        int64
	ScreenName      string
	TheaterID       int64
	TheaterName     string
	MovieTitle      string
	StartsAt        time.Time
	PriceMultiplier decimal.Decimal
	Seats           []Seat
}

type SeatRepository interface {
	GetSeatMapByShowtime(ctx context.Context, showtimeID int64) (*SeatMap, error)
	GetSeatsByShowtimeAndSeatIds(ctx context.Context, showtimeID int64, seatIDs []int64) (*SeatMap, error)
}
