package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// Terminal reports whether no further transition exists out of the status.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusExpired
}

type Booking struct {
	ID          int64
	Reference   string
	UserID      int64
	ShowtimeID  int64
	Status      BookingStatus
	TotalAmount decimal.Decimal
	Seats       []BookingSeat
	Payment     *Payment
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   *time.Time

	MovieTitle  string
	TheaterName string
	ScreenName  string
	StartsAt    time.Time
}

type BookingSeat struct {
	SeatID   int64
	Row      string
	Number   int
	Category SeatCategory
	Price    decimal.Decimal
}

type BookingSummary struct {
	ID          int64
	Reference   string
	Status      BookingStatus
	TotalAmount decimal.Decimal
	SeatCount   int
	MovieTitle  string
	TheaterName string
	StartsAt    time.Time
	CreatedAt   time.Time
}

// NewBookingReference generates a human-shareable reference, e.g. BK20260830A1B2C3.
func NewBookingReference() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("BK%s%s", time.Now().Format("20060102"), suffix)
}

// NewBooking converts a live hold into a pending booking, carrying over the
// hold's price snapshot and pricing the total with the given policy.
func NewBooking(hold Hold, userID int64, pricing PricingPolicy, ttl time.Duration) Booking {
	seats := make([]BookingSeat, len(hold.Seats))
	for i, held := range hold.Seats {
		seats[i] = BookingSeat{
			SeatID:   held.SeatID,
			Row:      held.Row,
			Number:   held.Number,
			Category: held.Category,
			Price:    held.Price,
		}
	}

	expiresAt := time.Now().Add(ttl)

	return Booking{
		Reference:   NewBookingReference(),
		UserID:      userID,
		ShowtimeID:  hold.ShowtimeID,
		Status:      BookingStatusPending,
		TotalAmount: pricing.Total(len(seats), hold.Subtotal()),
		Seats:       seats,
		ExpiresAt:   &expiresAt,
	}
}

type BookingRepository interface {
	Create(ctx context.Context, booking *Booking) error
	GetById(ctx context.Context, bookingID int64) (*Booking, error)
	GetByReference(ctx context.Context, reference string) (*Booking, error)
	GetActiveSeatsByShowtimeId(ctx context.Context, showtimeID int64) ([]int64, error)
	GetSummariesByUserId(ctx context.Context, userID int64, pagination Pagination) ([]BookingSummary, *Metadata, error)
	ConfirmWithPayment(ctx context.Context, bookingID int64, payment *Payment) error
	RecordFailedPayment(ctx context.Context, payment *Payment) error
	Cancel(ctx context.Context, bookingID int64, refund *Refund) error
	ExpireDue(ctx context.Context, now time.Time) ([]int64, error)
}
